// Package verify re-checks a schedule against the constraint set,
// independently of the assigner's bookkeeping. Hard invariants surface
// as errors; pause and budget violations on rescue-scheduled matches
// are expected and surface as warnings.
package verify

import (
	"fmt"
	"sort"

	"github.com/pbeckmann/matchplan/internal/roster"
	"github.com/pbeckmann/matchplan/internal/schedule"
)

// Violation is one finding. Kind is "error" or "warning".
type Violation struct {
	Kind    string
	Message string
}

type placed struct {
	match schedule.Match
	start int
	end   int
}

// Check audits every match holding a slot. It recomputes slot
// exclusivity, availability fit, team overlap, pause gaps and daily
// budgets from scratch rather than trusting the board that produced
// the schedule.
func Check(matches []schedule.Match, teams map[string]*roster.Team, rules schedule.Rules) []Violation {
	var violations []Violation

	dur := rules.MatchDurationMinutes
	bySlot := make(map[string]int)
	byTeamDay := make(map[string][]placed)

	for _, m := range matches {
		if m.Slot == nil || !m.OnCalendar() {
			continue
		}
		bySlot[m.Slot.Key()]++
		for _, team := range m.Pairing.Teams() {
			key := team + "|" + m.Slot.Date.Format(schedule.DateLayout)
			byTeamDay[key] = append(byTeamDay[key], placed{
				match: m,
				start: m.Slot.Start,
				end:   m.Slot.Start + dur,
			})
		}
		violations = append(violations, checkAvailability(m, teams, dur)...)
	}

	slotKeys := sortedKeys(bySlot)
	for _, key := range slotKeys {
		if n := bySlot[key]; n > 1 {
			violations = append(violations, Violation{
				Kind:    "error",
				Message: fmt.Sprintf("slot %s claimed by %d matches", key, n),
			})
		}
	}

	dayKeys := make([]string, 0, len(byTeamDay))
	for key := range byTeamDay {
		dayKeys = append(dayKeys, key)
	}
	sort.Strings(dayKeys)
	for _, key := range dayKeys {
		violations = append(violations, checkTeamDay(key, byTeamDay[key], rules)...)
	}

	return violations
}

// checkAvailability flags matches outside a team's effective windows,
// which includes matches landing on a blocked date. Never a warning:
// not even the rescue pass may ignore availability.
func checkAvailability(m schedule.Match, teams map[string]*roster.Team, dur int) []Violation {
	var violations []Violation
	for _, name := range m.Pairing.Teams() {
		tm, ok := teams[name]
		if !ok {
			violations = append(violations, Violation{
				Kind:    "error",
				Message: fmt.Sprintf("match %s: unknown team %q", m.Pairing.ID(), name),
			})
			continue
		}
		fits := false
		for _, w := range tm.Availability.Windows(m.Slot.Date) {
			if w.Contains(m.Slot.Start, dur) {
				fits = true
				break
			}
		}
		if !fits {
			violations = append(violations, Violation{
				Kind: "error",
				Message: fmt.Sprintf("match %s at %s is outside %s's availability",
					m.Pairing.ID(), m.Slot.Key(), name),
			})
		}
	}
	return violations
}

func checkTeamDay(key string, games []placed, rules schedule.Rules) []Violation {
	var violations []Violation
	sort.Slice(games, func(i, j int) bool { return games[i].start < games[j].start })

	for i := 1; i < len(games); i++ {
		prev, cur := games[i-1], games[i]
		if cur.start < prev.end {
			violations = append(violations, Violation{
				Kind: "error",
				Message: fmt.Sprintf("%s: %s overlaps %s",
					key, cur.match.Pairing.ID(), prev.match.Pairing.ID()),
			})
			continue
		}
		if gap := cur.start - prev.end; gap < rules.PauseDurationMinutes {
			violations = append(violations, Violation{
				Kind: kindFor(prev.match, cur.match),
				Message: fmt.Sprintf("%s: only %d min pause between %s and %s (need %d)",
					key, gap, prev.match.Pairing.ID(), cur.match.Pairing.ID(),
					rules.PauseDurationMinutes),
			})
		}
	}

	total := 0
	rescued := false
	for _, g := range games {
		total += g.end - g.start
		if g.match.Status == schedule.StatusRescue {
			rescued = true
		}
	}
	if budget := rules.BudgetMinutes(); total > budget {
		kind := "error"
		if rescued {
			kind = "warning"
		}
		violations = append(violations, Violation{
			Kind: kind,
			Message: fmt.Sprintf("%s: %d min scheduled, budget is %d",
				key, total, budget),
		})
	}
	return violations
}

// kindFor grades a pause violation: expected (warning) when either
// match came out of the rescue pass, an invariant breach otherwise.
func kindFor(a, b schedule.Match) string {
	if a.Status == schedule.StatusRescue || b.Status == schedule.StatusRescue {
		return "warning"
	}
	return "error"
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
