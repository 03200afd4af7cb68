package schedule

import (
	"github.com/google/uuid"

	"github.com/pbeckmann/matchplan/internal/bracket"
)

// Status is a match's lifecycle state.
type Status string

const (
	StatusUnscheduled Status = "unscheduled"
	StatusScheduled   Status = "scheduled"
	StatusRescue      Status = "rescue-scheduled"
	StatusCompleted   Status = "completed"
	StatusVoided      Status = "voided"
)

// Match owns one non-bye pairing, the slot it was assigned (nil until
// resolved), and the reported result.
type Match struct {
	ID      uuid.UUID
	Round   int
	Pairing bracket.Pairing
	Slot    *Slot
	Status  Status
	Winner  string
}

// OnCalendar reports whether the match currently holds a slot that
// counts against the timetable (scheduled or rescue-scheduled).
func (m *Match) OnCalendar() bool {
	return m.Status == StatusScheduled || m.Status == StatusRescue
}

// Rules are the assignment constraints: how long a match blocks its
// teams, the minimum gap between a team's consecutive matches, and the
// per-team daily cap on scheduled play time.
type Rules struct {
	MatchDurationMinutes     int
	PauseDurationMinutes     int
	MaxTimeBudgetHoursPerDay float64
}

// BudgetMinutes is the daily cap expressed in minutes.
func (r Rules) BudgetMinutes() int {
	return int(r.MaxTimeBudgetHoursPerDay*60 + 0.5)
}
