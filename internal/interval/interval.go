// Package interval implements half-open wall-clock time ranges within a
// single day. Times are minutes from midnight, so an interval is just a
// pair of ints and all the algebra is integer comparison.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrFormat reports malformed interval text.
var ErrFormat = errors.New("invalid time range")

// Interval is a half-open [Start, End) range of minutes from midnight.
// End is exclusive so back-to-back intervals pack without overlap.
type Interval struct {
	Start int
	End   int
}

// Parse accepts "HH:MM-HH:MM" with hours in [0,23], minutes in [0,59]
// and start strictly before end.
func Parse(s string) (Interval, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	start, err := parseClock(strings.TrimSpace(parts[0]))
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	end, err := parseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	if start >= end {
		return Interval{}, fmt.Errorf("%w: %q: start must be before end", ErrFormat, s)
	}
	return Interval{Start: start, End: end}, nil
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
func MustParse(s string) Interval {
	iv, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return iv
}

func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrFormat
	}
	h, err := parseDigits(s[:2])
	if err != nil {
		return 0, err
	}
	m, err := parseDigits(s[3:])
	if err != nil {
		return 0, err
	}
	if h > 23 || m > 59 {
		return 0, ErrFormat
	}
	return h*60 + m, nil
}

func parseDigits(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, ErrFormat
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// ParseClock parses a single "HH:MM" time into minutes from midnight.
func ParseClock(s string) (int, error) {
	m, err := parseClock(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	return m, nil
}

// Clock formats minutes from midnight as "HH:MM".
func Clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// String formats the interval as "HH:MM-HH:MM", round-tripping Parse.
func (iv Interval) String() string {
	return Clock(iv.Start) + "-" + Clock(iv.End)
}

// Minutes returns the interval length.
func (iv Interval) Minutes() int {
	return iv.End - iv.Start
}

// Contains reports whether [start, start+length) fits inside the interval.
func (iv Interval) Contains(start, length int) bool {
	return start >= iv.Start && start+length <= iv.End
}

// Overlaps reports whether the two half-open intervals share any minute.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.End && o.Start < iv.End
}

// Intersect returns the overlapping sub-interval, or false when disjoint.
// It is commutative and associative when folded over a set of intervals.
func Intersect(a, b Interval) (Interval, bool) {
	start := max(a.Start, b.Start)
	end := min(a.End, b.End)
	if start >= end {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// IntersectAll folds Intersect over the given intervals, bailing out as
// soon as the running intersection is empty.
func IntersectAll(first Interval, rest ...Interval) (Interval, bool) {
	acc := first
	for _, iv := range rest {
		var ok bool
		if acc, ok = Intersect(acc, iv); !ok {
			return Interval{}, false
		}
	}
	return acc, true
}

// IntersectSets intersects two ordered window sets, producing the common
// sub-windows of every pair that overlaps. The result is sorted and
// non-overlapping when the inputs are.
func IntersectSets(a, b []Interval) []Interval {
	var out []Interval
	for _, x := range a {
		for _, y := range b {
			if iv, ok := Intersect(x, y); ok {
				out = append(out, iv)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Merge sorts the given intervals and coalesces any that overlap or
// touch, returning an ordered non-overlapping set.
func Merge(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}
