// Package bracket generates round-robin pairings with the classic
// circle method. Output order is a pure function of input order, which
// golden-output tests rely on.
package bracket

import (
	"errors"
	"fmt"
)

// ErrInsufficientTeams reports a roster too small to build a bracket.
var ErrInsufficientTeams = errors.New("not enough teams")

// Bye is the placeholder opponent inserted when the team count is odd.
// A pairing against Bye produces no match.
const Bye = "BYE"

// Pairing is an unordered pair of team names produced by the bracket.
type Pairing struct {
	TeamA string
	TeamB string
}

// HasBye reports whether either side is the bye sentinel.
func (p Pairing) HasBye() bool {
	return p.TeamA == Bye || p.TeamB == Bye
}

// ID is the pairing's order-independent identity, with the
// lexicographically smaller team first.
func (p Pairing) ID() string {
	a, b := p.TeamA, p.TeamB
	if b < a {
		a, b = b, a
	}
	return a + " vs " + b
}

// Teams returns both sides in declaration order.
func (p Pairing) Teams() [2]string {
	return [2]string{p.TeamA, p.TeamB}
}

// Round is an ordered set of pairings played in the same bracket round.
type Round []Pairing

// Generate builds the round-robin rounds for the given team names using
// the circle method: one team fixed, the rest rotating one position per
// round. With an even count of n entries it yields n-1 rounds; an odd
// count gets a Bye entry first, yielding n rounds with one bye pairing
// each.
func Generate(teams []string) ([]Round, error) {
	if len(teams) < 2 {
		return nil, fmt.Errorf("%w: need at least 2, have %d", ErrInsufficientTeams, len(teams))
	}

	circle := make([]string, len(teams))
	copy(circle, teams)
	if len(circle)%2 == 1 {
		circle = append(circle, Bye)
	}
	n := len(circle)

	rounds := make([]Round, 0, n-1)
	for r := 0; r < n-1; r++ {
		round := make(Round, 0, n/2)
		for i := 0; i < n/2; i++ {
			round = append(round, Pairing{TeamA: circle[i], TeamB: circle[n-1-i]})
		}
		rounds = append(rounds, round)

		// Rotate all positions but the first: last element moves to
		// index 1, everything else shifts right.
		last := circle[n-1]
		copy(circle[2:], circle[1:n-1])
		circle[1] = last
	}
	return rounds, nil
}
