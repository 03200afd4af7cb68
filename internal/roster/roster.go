// Package roster holds the tournament participants: registered teams,
// the solo queue, and the pairing logic that turns compatible solo
// players into teams.
package roster

import (
	"errors"
	"fmt"
	"time"

	"github.com/pbeckmann/matchplan/internal/availability"
)

// ErrRoster reports invalid roster input.
var ErrRoster = errors.New("invalid roster")

// Team is a named set of members with a shared availability. Name is
// unique within a tournament.
type Team struct {
	Name         string
	Members      []string
	Availability *availability.Availability
}

// Solo is an individual registrant waiting to be paired into a team.
type Solo struct {
	Player       string
	Availability *availability.Availability
}

// Validate checks invariants shared by config input and snapshots:
// non-empty unique names, at least one member per team.
func Validate(teams []*Team) error {
	seen := make(map[string]struct{}, len(teams))
	for _, t := range teams {
		if t.Name == "" {
			return fmt.Errorf("%w: team with empty name", ErrRoster)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: duplicate team name %q", ErrRoster, t.Name)
		}
		seen[t.Name] = struct{}{}
		if len(t.Members) == 0 {
			return fmt.Errorf("%w: team %q has no members", ErrRoster, t.Name)
		}
	}
	return nil
}

// PairSolo pairs solo players into two-member teams wherever their
// availability overlaps on at least one of the given days. Players are
// considered in input order and greedily matched with the first later
// compatible player, so the result is deterministic. Players left
// without a partner stay in the returned solo queue.
func PairSolo(solo []Solo, days []time.Weekday, taken map[string]struct{}) ([]*Team, []Solo) {
	paired := make([]bool, len(solo))
	var teams []*Team
	var remaining []Solo

	for i := range solo {
		if paired[i] {
			continue
		}
		matched := false
		for j := i + 1; j < len(solo); j++ {
			if paired[j] {
				continue
			}
			common := availability.Overlap(solo[i].Availability, solo[j].Availability, days)
			if !common.HasAny() {
				continue
			}
			name := teamName(solo[i].Player, solo[j].Player, taken)
			teams = append(teams, &Team{
				Name:         name,
				Members:      []string{solo[i].Player, solo[j].Player},
				Availability: common,
			})
			if taken != nil {
				taken[name] = struct{}{}
			}
			paired[i], paired[j] = true, true
			matched = true
			break
		}
		if !matched {
			remaining = append(remaining, solo[i])
		}
	}
	return teams, remaining
}

// DissolveOrphans removes single-member teams after registration closes
// and returns their players to the solo queue.
func DissolveOrphans(teams []*Team) ([]*Team, []Solo) {
	var kept []*Team
	var rescued []Solo
	for _, t := range teams {
		if len(t.Members) == 1 {
			rescued = append(rescued, Solo{Player: t.Members[0], Availability: t.Availability})
			continue
		}
		kept = append(kept, t)
	}
	return kept, rescued
}

func teamName(a, b string, taken map[string]struct{}) string {
	name := fmt.Sprintf("%s & %s", a, b)
	if taken == nil {
		return name
	}
	for n := 2; ; n++ {
		if _, dup := taken[name]; !dup {
			return name
		}
		name = fmt.Sprintf("%s & %s (%d)", a, b, n)
	}
}
