package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbeckmann/matchplan/internal/availability"
)

func sampleSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	a := availability.New()
	require.NoError(t, a.SetDay(time.Saturday, []string{"10:00-18:00"}))
	a.Block(time.Date(2026, time.September, 12, 0, 0, 0, 0, time.UTC))

	return &Snapshot{
		SavedAt: time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC),
		Start:   "2026-09-05",
		End:     "2026-10-04",
		Teams: []TeamRecord{
			{Name: "Rocket Pandas", Members: []string{"lena", "marek"}, Availability: a},
		},
		Solo: []SoloRecord{
			{Player: "nadia", Availability: a},
		},
		Matches: []MatchRecord{
			{
				ID:     "7e57ab1e-0000-4000-8000-000000000001",
				Round:  1,
				TeamA:  "Rocket Pandas",
				TeamB:  "Night Owls",
				Status: "scheduled",
				Date:   "2026-09-05",
				Start:  "10:00",
			},
		},
		Requests: []RequestRecord{
			{
				ID:           "7e57ab1e-0000-4000-8000-000000000002",
				MatchID:      "7e57ab1e-0000-4000-8000-000000000001",
				Requester:    "Rocket Pandas",
				Date:         "2026-09-05",
				Start:        "14:00",
				Participants: []string{"lena", "marek", "sofia", "jules"},
				Votes: []VoteRecord{
					{Participant: "lena", Decision: "accept", At: time.Date(2026, time.September, 1, 13, 0, 0, 0, time.UTC)},
				},
				CreatedAt: time.Date(2026, time.September, 1, 12, 30, 0, 0, time.UTC),
				ExpiresAt: time.Date(2026, time.September, 2, 12, 30, 0, 0, time.UTC),
				State:     "pending",
			},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament.yaml")
	fs := NewFileStore(path)

	snap := sampleSnapshot(t)
	require.NoError(t, fs.Save(snap))

	loaded, err := fs.Load()
	require.NoError(t, err)

	assert.Equal(t, snap.Start, loaded.Start)
	assert.Equal(t, snap.End, loaded.End)
	assert.Equal(t, snap.Matches, loaded.Matches)

	require.Len(t, loaded.Requests, 1)
	gotReq, wantReq := loaded.Requests[0], snap.Requests[0]
	assert.Equal(t, wantReq.ID, gotReq.ID)
	assert.Equal(t, wantReq.MatchID, gotReq.MatchID)
	assert.Equal(t, wantReq.Participants, gotReq.Participants)
	assert.Equal(t, wantReq.State, gotReq.State)
	assert.True(t, gotReq.CreatedAt.Equal(wantReq.CreatedAt))
	assert.True(t, gotReq.ExpiresAt.Equal(wantReq.ExpiresAt))

	require.Len(t, loaded.Teams, 1)
	assert.Equal(t, snap.Teams[0].Name, loaded.Teams[0].Name)
	assert.Equal(t, snap.Teams[0].Members, loaded.Teams[0].Members)
	require.NotNil(t, loaded.Teams[0].Availability)
	assert.Equal(t,
		snap.Teams[0].Availability.Day(time.Saturday),
		loaded.Teams[0].Availability.Day(time.Saturday))
}

func TestFileStoreSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tournament.yaml")
	fs := NewFileStore(path)

	snap := sampleSnapshot(t)
	require.NoError(t, fs.Save(snap))

	snap.End = "2026-10-06"
	require.NoError(t, fs.Save(snap))

	loaded, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, "2026-10-06", loaded.End)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStoreLoadMissing(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := fs.Load()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0644))

	_, err := NewFileStore(path).Load()
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestVoteRecordTimesSurviveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament.yaml")
	fs := NewFileStore(path)

	snap := sampleSnapshot(t)
	require.NoError(t, fs.Save(snap))
	loaded, err := fs.Load()
	require.NoError(t, err)

	require.Len(t, loaded.Requests, 1)
	require.Len(t, loaded.Requests[0].Votes, 1)
	assert.True(t, loaded.Requests[0].Votes[0].At.Equal(snap.Requests[0].Votes[0].At))
}
