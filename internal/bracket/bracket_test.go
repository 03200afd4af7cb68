package bracket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEvenCount(t *testing.T) {
	rounds, err := Generate([]string{"A", "B", "C", "D"})
	require.NoError(t, err)

	require.Len(t, rounds, 3, "n teams play n-1 rounds")
	for _, round := range rounds {
		assert.Len(t, round, 2)
		for _, p := range round {
			assert.False(t, p.HasBye())
		}
	}
	assertEveryPairOnce(t, rounds, []string{"A", "B", "C", "D"})
}

func TestGenerateOddCountInsertsBye(t *testing.T) {
	teams := []string{"A", "B", "C", "D", "E"}
	rounds, err := Generate(teams)
	require.NoError(t, err)

	require.Len(t, rounds, 5, "odd count rounds up to n rounds")
	for _, round := range rounds {
		byes := 0
		for _, p := range round {
			if p.HasBye() {
				byes++
			}
		}
		assert.Equal(t, 1, byes, "exactly one team sits out per round")
	}
	assertEveryPairOnce(t, rounds, teams)
}

func TestGenerateTwoTeams(t *testing.T) {
	rounds, err := Generate([]string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	require.Len(t, rounds[0], 1)
	assert.Equal(t, "A vs B", rounds[0][0].ID())
}

func TestGenerateInsufficientTeams(t *testing.T) {
	_, err := Generate([]string{"A"})
	require.ErrorIs(t, err, ErrInsufficientTeams)

	_, err = Generate(nil)
	require.ErrorIs(t, err, ErrInsufficientTeams)
}

func TestGenerateDeterministic(t *testing.T) {
	teams := []string{"A", "B", "C", "D", "E"}
	first, err := Generate(teams)
	require.NoError(t, err)
	second, err := Generate(teams)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPairingID(t *testing.T) {
	assert.Equal(t, "A vs B", Pairing{TeamA: "B", TeamB: "A"}.ID(), "identity is order-independent")
	assert.Equal(t, "A vs B", Pairing{TeamA: "A", TeamB: "B"}.ID())
}

// assertEveryPairOnce checks the defining round-robin property: every
// unordered pair of real teams meets exactly once across all rounds.
func assertEveryPairOnce(t *testing.T, rounds []Round, teams []string) {
	t.Helper()

	seen := make(map[string]int)
	for _, round := range rounds {
		for _, p := range round {
			if p.HasBye() {
				continue
			}
			seen[p.ID()]++
		}
	}

	want := len(teams) * (len(teams) - 1) / 2
	assert.Len(t, seen, want)
	for id, count := range seen {
		assert.Equal(t, 1, count, "pairing %s repeated", id)
	}
}
