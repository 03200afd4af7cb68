// Package schedule turns tournament-wide active windows into bookable
// slots and assigns bracket pairings to them under availability, pause
// and time-budget constraints.
package schedule

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pbeckmann/matchplan/internal/bracket"
	"github.com/pbeckmann/matchplan/internal/roster"
)

// ErrNoSlotAvailable reports a pairing for which no eligible slot
// exists, even after the rescue pass.
var ErrNoSlotAvailable = errors.New("no slot available")

// ErrUnknownTeam reports a pairing that references a team missing from
// the roster.
var ErrUnknownTeam = errors.New("unknown team")

// Failure names a pairing the assigner could not place and why.
type Failure struct {
	Round   int
	Pairing bracket.Pairing
	Err     error
}

// Result is the assigner's output: one Match per non-bye pairing in
// bracket order (unresolved ones keep StatusUnscheduled), the failures
// surfaced for them, and the board holding the committed state.
type Result struct {
	Matches  []*Match
	Failures []Failure
	Board    *Board
}

// Assign places every non-bye pairing of the bracket into the earliest
// eligible slot, in bracket order. Pairings the primary pass cannot
// place are retried in a rescue pass that ignores the pause and budget
// constraints but never availability or blocked dates; matches placed
// that way are tagged rescue-scheduled. Pairings still unresolved are
// reported as failures naming the blocking teams, never dropped.
//
// Each pairing is committed or failed independently; a failure leaves
// every other pairing's assignment intact.
func Assign(rounds []bracket.Round, teams map[string]*roster.Team, slots []Slot, rules Rules) (*Result, error) {
	board := NewBoard(rules)
	result := &Result{Board: board}

	type pending struct {
		match      *Match
		sides      [2]*roster.Team
		rejections map[rejection]int
	}
	var unresolved []*pending

	for r, round := range rounds {
		for _, p := range round {
			if p.HasBye() {
				continue
			}
			sides, err := resolveTeams(teams, p)
			if err != nil {
				return nil, err
			}
			m := &Match{
				ID:      uuid.New(),
				Round:   r + 1,
				Pairing: p,
				Status:  StatusUnscheduled,
			}
			result.Matches = append(result.Matches, m)

			pd := &pending{match: m, sides: sides, rejections: make(map[rejection]int)}
			if placeEarliest(board, pd.match, pd.sides, slots, false, pd.rejections) {
				m.Status = StatusScheduled
				continue
			}
			unresolved = append(unresolved, pd)
		}
	}

	for _, pd := range unresolved {
		if placeEarliest(board, pd.match, pd.sides, slots, true, pd.rejections) {
			pd.match.Status = StatusRescue
			continue
		}
		result.Failures = append(result.Failures, Failure{
			Round:   pd.match.Round,
			Pairing: pd.match.Pairing,
			Err:     failureError(pd.match.Pairing, len(slots), pd.rejections),
		})
	}

	return result, nil
}

// placeEarliest commits the match to the first slot passing the
// eligibility check. Slots come pre-sorted by date then start time, so
// first hit is the deterministic earliest.
func placeEarliest(board *Board, m *Match, sides [2]*roster.Team, slots []Slot, relaxed bool, rejections map[rejection]int) bool {
	for _, s := range slots {
		if reason, ok := board.check(sides, s, relaxed); !ok {
			rejections[reason]++
			continue
		}
		slot := s
		m.Slot = &slot
		board.Place(m)
		return true
	}
	return false
}

func resolveTeams(teams map[string]*roster.Team, p bracket.Pairing) ([2]*roster.Team, error) {
	var sides [2]*roster.Team
	for i, name := range p.Teams() {
		t, ok := teams[name]
		if !ok {
			return sides, fmt.Errorf("%w: %q in pairing %s", ErrUnknownTeam, name, p.ID())
		}
		sides[i] = t
	}
	return sides, nil
}

func failureError(p bracket.Pairing, total int, rejections map[rejection]int) error {
	return fmt.Errorf("%w for %s vs %s: %d slots checked (%d occupied, %d outside availability, %d double-booking, %d pause, %d budget)",
		ErrNoSlotAvailable, p.TeamA, p.TeamB, total,
		rejections[rejectSlotUsed],
		rejections[rejectUnavailable],
		rejections[rejectOverlap],
		rejections[rejectPause],
		rejections[rejectBudget])
}

// FindSlot searches the matrix for the earliest slot eligible for the
// match under the primary-pass rules, skipping any key in exclude. The
// reschedule negotiator re-enters the assigner through this: the match
// must already be removed from the board so its own occupancy does not
// block candidates.
func FindSlot(board *Board, m *Match, teams map[string]*roster.Team, slots []Slot, exclude map[string]bool) (Slot, error) {
	sides, err := resolveTeams(teams, m.Pairing)
	if err != nil {
		return Slot{}, err
	}
	rejections := make(map[rejection]int)
	for _, s := range slots {
		if exclude[s.Key()] {
			continue
		}
		if reason, ok := board.check(sides, s, false); !ok {
			rejections[reason]++
			continue
		}
		return s, nil
	}
	return Slot{}, failureError(m.Pairing, len(slots), rejections)
}

// Eligible tests a single slot for a match under the primary-pass
// rules. The match must already be removed from the board, like in
// FindSlot. A nil error means the slot can be committed; otherwise the
// error names the violated constraint.
func Eligible(board *Board, m *Match, teams map[string]*roster.Team, s Slot) error {
	sides, err := resolveTeams(teams, m.Pairing)
	if err != nil {
		return err
	}
	if reason, ok := board.check(sides, s, false); !ok {
		return fmt.Errorf("%w: slot %s rejected for %s vs %s (%s)",
			ErrNoSlotAvailable, s.Key(), m.Pairing.TeamA, m.Pairing.TeamB, reason)
	}
	return nil
}
