// Package availability models a team's weekly availability windows plus
// explicitly blocked calendar dates.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pbeckmann/matchplan/internal/interval"
)

// ErrValidation reports availability input that failed parsing.
var ErrValidation = errors.New("invalid availability")

const dateLayout = "2006-01-02"

var dayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// DayName returns the lowercase english name used in config and
// snapshot files.
func DayName(d time.Weekday) string {
	return map[time.Weekday]string{
		time.Monday:    "monday",
		time.Tuesday:   "tuesday",
		time.Wednesday: "wednesday",
		time.Thursday:  "thursday",
		time.Friday:    "friday",
		time.Saturday:  "saturday",
		time.Sunday:    "sunday",
	}[d]
}

// ParseDay resolves a lowercase day name to its weekday.
func ParseDay(name string) (time.Weekday, error) {
	d, ok := dayNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown day %q", ErrValidation, name)
	}
	return d, nil
}

// Availability is one team's weekday windows and blocked dates. Windows
// within a weekday are kept sorted and non-overlapping (merged on set).
type Availability struct {
	week    map[time.Weekday][]interval.Interval
	blocked map[string]struct{} // "2006-01-02"
}

// New returns an empty availability: no windows, nothing blocked.
func New() *Availability {
	return &Availability{
		week:    make(map[time.Weekday][]interval.Interval),
		blocked: make(map[string]struct{}),
	}
}

// SetDay replaces the weekday's window set with the parsed and merged
// specs. Any unparsable spec fails the whole call with ErrValidation and
// leaves the previous set untouched. An empty spec list clears the day.
func (a *Availability) SetDay(day time.Weekday, specs []string) error {
	var ivs []interval.Interval
	for _, s := range specs {
		iv, err := interval.Parse(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, DayName(day), err)
		}
		ivs = append(ivs, iv)
	}
	if len(ivs) == 0 {
		delete(a.week, day)
		return nil
	}
	a.week[day] = interval.Merge(ivs)
	return nil
}

// Block marks a calendar date as unavailable regardless of weekday windows.
func (a *Availability) Block(date time.Time) {
	a.blocked[date.Format(dateLayout)] = struct{}{}
}

// Unblock removes a previously blocked date.
func (a *Availability) Unblock(date time.Time) {
	delete(a.blocked, date.Format(dateLayout))
}

// IsBlocked reports whether the calendar date is explicitly blocked.
func (a *Availability) IsBlocked(date time.Time) bool {
	_, ok := a.blocked[date.Format(dateLayout)]
	return ok
}

// Windows returns the ordered windows effective on the given date:
// the date's weekday windows, or nothing when the date is blocked.
func (a *Availability) Windows(date time.Time) []interval.Interval {
	if a.IsBlocked(date) {
		return nil
	}
	return a.week[date.Weekday()]
}

// HasAny reports whether at least one weekday carries a window.
func (a *Availability) HasAny() bool {
	return len(a.week) > 0
}

// Day returns the window set configured for the weekday itself,
// ignoring blocked dates.
func (a *Availability) Day(day time.Weekday) []interval.Interval {
	return a.week[day]
}

// Overlap computes the common availability of two teams restricted to
// the given days: per day, the intersection of both window sets. Days
// with no common window are absent from the result.
func Overlap(a, b *Availability, days []time.Weekday) *Availability {
	out := New()
	for _, day := range days {
		common := interval.IntersectSets(a.Day(day), b.Day(day))
		if len(common) > 0 {
			out.week[day] = common
		}
	}
	for d := range a.blocked {
		out.blocked[d] = struct{}{}
	}
	for d := range b.blocked {
		out.blocked[d] = struct{}{}
	}
	return out
}

// spec is the serialized shape shared by config and snapshot files.
type spec struct {
	Days    map[string][]string `yaml:"days"`
	Blocked []string            `yaml:"blocked,omitempty"`
}

// MarshalYAML serializes windows as day-name → ["HH:MM-HH:MM", ...].
func (a *Availability) MarshalYAML() (interface{}, error) {
	s := spec{Days: make(map[string][]string)}
	for day, ivs := range a.week {
		specs := make([]string, len(ivs))
		for i, iv := range ivs {
			specs[i] = iv.String()
		}
		s.Days[DayName(day)] = specs
	}
	dates := make([]string, 0, len(a.blocked))
	for d := range a.blocked {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	s.Blocked = dates
	return s, nil
}

// UnmarshalYAML parses the config shape, validating every window and date.
func (a *Availability) UnmarshalYAML(value *yaml.Node) error {
	var s spec
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	*a = *New()
	for name, specs := range s.Days {
		day, err := ParseDay(name)
		if err != nil {
			return err
		}
		if err := a.SetDay(day, specs); err != nil {
			return err
		}
	}
	for _, d := range s.Blocked {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return fmt.Errorf("%w: blocked date %q", ErrValidation, d)
		}
		a.Block(t)
	}
	return nil
}
