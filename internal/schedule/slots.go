package schedule

import (
	"time"

	"github.com/pbeckmann/matchplan/internal/interval"
)

// DateLayout is the calendar-date format used in slot keys, snapshots
// and config files.
const DateLayout = "2006-01-02"

// Slot is one bookable (date, start-time) unit drawn from the global
// slot matrix. Dates are midnight UTC, starts are minutes from midnight.
type Slot struct {
	Date  time.Time
	Start int
}

// Key identifies the slot, e.g. "2026-03-07 14:00". At most one match
// may claim a key.
func (s Slot) Key() string {
	return s.Date.Format(DateLayout) + " " + interval.Clock(s.Start)
}

// At returns the slot's start as an instant.
func (s Slot) At() time.Time {
	return s.Date.Add(time.Duration(s.Start) * time.Minute)
}

// Clock returns the start time as "HH:MM".
func (s Slot) Clock() string {
	return interval.Clock(s.Start)
}

// BuildMatrix expands the tournament-wide active windows into discrete
// bookable slots: one slot every slotWidth minutes within each day's
// window, covering every date in [start, end] whose weekday has a
// window. Trailing slots that cannot fit a full match are dropped.
//
// The matrix is rebuilt whenever the tournament window changes; it is
// never cached across an extension.
func BuildMatrix(windows map[time.Weekday]interval.Interval, start, end time.Time, slotWidth, matchDuration int) []Slot {
	var slots []Slot
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		w, ok := windows[d.Weekday()]
		if !ok {
			continue
		}
		for st := w.Start; st+matchDuration <= w.End; st += slotWidth {
			slots = append(slots, Slot{Date: d, Start: st})
		}
	}
	return slots
}
