package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pbeckmann/matchplan/internal/roster"
)

// rejection categorizes why a slot was rejected for a pairing.
type rejection int

const (
	rejectSlotUsed rejection = iota
	rejectUnavailable
	rejectOverlap
	rejectPause
	rejectBudget
)

func (r rejection) String() string {
	switch r {
	case rejectSlotUsed:
		return "occupied"
	case rejectUnavailable:
		return "outside availability"
	case rejectOverlap:
		return "double-booking"
	case rejectPause:
		return "pause"
	case rejectBudget:
		return "budget"
	}
	return "unknown"
}

type span struct {
	start int
	end   int
}

type teamDay struct {
	team string
	date string
}

// Board tracks the committed state of a timetable: which slots are
// claimed, each team's occupancy spans per day, and each team's daily
// time-budget ledger. Placements and removals keep all three in sync so
// eligibility checks stay cheap.
type Board struct {
	rules     Rules
	used      map[string]uuid.UUID
	occupancy map[teamDay][]span
	ledger    map[teamDay]int
}

// NewBoard returns an empty board for the given rules.
func NewBoard(rules Rules) *Board {
	return &Board{
		rules:     rules,
		used:      make(map[string]uuid.UUID),
		occupancy: make(map[teamDay][]span),
		ledger:    make(map[teamDay]int),
	}
}

// SlotFree reports whether no match has claimed the slot.
func (b *Board) SlotFree(s Slot) bool {
	_, taken := b.used[s.Key()]
	return !taken
}

// MinutesOn returns the team's assigned match minutes on the date.
func (b *Board) MinutesOn(team string, date time.Time) int {
	return b.ledger[teamDay{team, date.Format(DateLayout)}]
}

// Place claims the match's slot and books both teams' occupancy and
// ledgers. The match must hold a slot.
func (b *Board) Place(m *Match) {
	s := *m.Slot
	b.used[s.Key()] = m.ID
	dur := b.rules.MatchDurationMinutes
	for _, team := range m.Pairing.Teams() {
		td := teamDay{team, s.Date.Format(DateLayout)}
		spans := append(b.occupancy[td], span{start: s.Start, end: s.Start + dur})
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		b.occupancy[td] = spans
		b.ledger[td] += dur
	}
}

// Remove releases the match's slot and unbooks both teams. It is the
// exact inverse of Place.
func (b *Board) Remove(m *Match) {
	s := *m.Slot
	delete(b.used, s.Key())
	dur := b.rules.MatchDurationMinutes
	for _, team := range m.Pairing.Teams() {
		td := teamDay{team, s.Date.Format(DateLayout)}
		spans := b.occupancy[td]
		for i, sp := range spans {
			if sp.start == s.Start && sp.end == s.Start+dur {
				b.occupancy[td] = append(spans[:i], spans[i+1:]...)
				break
			}
		}
		if len(b.occupancy[td]) == 0 {
			delete(b.occupancy, td)
		}
		b.ledger[td] -= dur
		if b.ledger[td] <= 0 {
			delete(b.ledger, td)
		}
	}
}

// check tests a slot against the board for the two teams of a pairing.
// Availability (including blocked dates), slot exclusivity and team
// overlap are always hard; relaxed mode drops only the pause and budget
// constraints.
func (b *Board) check(teams [2]*roster.Team, s Slot, relaxed bool) (rejection, bool) {
	if !b.SlotFree(s) {
		return rejectSlotUsed, false
	}

	dur := b.rules.MatchDurationMinutes
	for _, t := range teams {
		fits := false
		for _, w := range t.Availability.Windows(s.Date) {
			if w.Contains(s.Start, dur) {
				fits = true
				break
			}
		}
		if !fits {
			return rejectUnavailable, false
		}
	}

	newStart, newEnd := s.Start, s.Start+dur
	for _, t := range teams {
		td := teamDay{t.Name, s.Date.Format(DateLayout)}
		for _, sp := range b.occupancy[td] {
			if newStart < sp.end && sp.start < newEnd {
				return rejectOverlap, false
			}
		}
	}

	if relaxed {
		return 0, true
	}

	pause := b.rules.PauseDurationMinutes
	for _, t := range teams {
		td := teamDay{t.Name, s.Date.Format(DateLayout)}
		for _, sp := range b.occupancy[td] {
			// Gap to the adjacent earlier match, then to the later one.
			if sp.end <= newStart && newStart-sp.end < pause {
				return rejectPause, false
			}
			if newEnd <= sp.start && sp.start-newEnd < pause {
				return rejectPause, false
			}
		}
	}

	budget := b.rules.BudgetMinutes()
	for _, t := range teams {
		if b.MinutesOn(t.Name, s.Date)+dur > budget {
			return rejectBudget, false
		}
	}

	return 0, true
}
