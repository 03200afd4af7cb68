package tournament

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbeckmann/matchplan/internal/clock"
	"github.com/pbeckmann/matchplan/internal/config"
	"github.com/pbeckmann/matchplan/internal/notify"
	"github.com/pbeckmann/matchplan/internal/reschedule"
	"github.com/pbeckmann/matchplan/internal/schedule"
)

const threeTeamConfig = `
tournament:
  start_date: "2026-09-05"
  end_date: "2026-09-13"

active_windows:
  saturday: "10:00-18:00"

rules:
  match_duration_minutes: 60
  pause_duration_minutes: 60
  max_time_budget_hours_per_day: 3
  slot_interval_minutes: 60
  reschedule_timeout_hours: 24
  extension_days: 7

teams:
  - name: A
    members: [a1, a2]
    availability:
      days:
        saturday: ["10:00-18:00"]
  - name: B
    members: [b1, b2]
    availability:
      days:
        saturday: ["10:00-18:00"]
  - name: C
    members: [c1, c2]
    availability:
      days:
        saturday: ["10:00-18:00"]
`

type fixture struct {
	t        *Tournament
	clk      *clock.Fake
	recorder *notify.Recorder
}

func newFixture(t *testing.T, configYAML string) *fixture {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte(configYAML))
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC))
	rec := &notify.Recorder{}
	tour, err := FromConfig(cfg, Options{Clock: clk, Notifier: rec})
	require.NoError(t, err)
	return &fixture{t: tour, clk: clk, recorder: rec}
}

func (f *fixture) generate(t *testing.T) *Report {
	t.Helper()
	report, err := f.t.GenerateSchedule()
	require.NoError(t, err)
	return report
}

func (f *fixture) matchBetween(t *testing.T, a, b string) schedule.Match {
	t.Helper()
	for _, m := range f.t.Matches() {
		if (m.Pairing.TeamA == a && m.Pairing.TeamB == b) || (m.Pairing.TeamA == b && m.Pairing.TeamB == a) {
			return m
		}
	}
	t.Fatalf("no match between %s and %s", a, b)
	return schedule.Match{}
}

func TestGenerateSchedule(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	report := f.generate(t)

	assert.Equal(t, 3, report.Rounds)
	assert.Equal(t, 3, report.Scheduled)
	assert.Zero(t, report.Rescued)
	assert.Empty(t, report.Failures)

	// Earliest-slot assignment in bracket order with the 60 minute
	// pause of the shared team between consecutive placements.
	assert.Equal(t, "2026-09-05 10:00", f.matchBetween(t, "B", "C").Slot.Key())
	assert.Equal(t, "2026-09-05 12:00", f.matchBetween(t, "A", "C").Slot.Key())
	assert.Equal(t, "2026-09-05 14:00", f.matchBetween(t, "A", "B").Slot.Key())

	assert.Equal(t, []notify.Kind{
		notify.KindMatchScheduled,
		notify.KindMatchScheduled,
		notify.KindMatchScheduled,
	}, f.recorder.Kinds())
}

func TestGenerateScheduleReportsFailures(t *testing.T) {
	disjoint := `
tournament:
  start_date: "2026-09-05"
  end_date: "2026-09-05"
active_windows:
  saturday: "10:00-14:00"
rules:
  match_duration_minutes: 60
  pause_duration_minutes: 30
  max_time_budget_hours_per_day: 3
  slot_interval_minutes: 30
teams:
  - name: A
    members: [a1]
    availability: {days: {saturday: ["10:00-12:00"]}}
  - name: B
    members: [b1]
    availability: {days: {saturday: ["12:00-14:00"]}}
`
	f := newFixture(t, disjoint)
	report := f.generate(t)

	require.Len(t, report.Failures, 1)
	require.ErrorIs(t, report.Failures[0].Err, schedule.ErrNoSlotAvailable)
	assert.Equal(t, []notify.Kind{notify.KindMatchUnschedulable}, f.recorder.Kinds())
	assert.Equal(t, schedule.StatusUnscheduled, f.matchBetween(t, "A", "B").Status)
}

func TestRequestRescheduleProposesEarliestFutureSlot(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)

	m := f.matchBetween(t, "A", "B")
	req, err := f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)

	// 15:00 is the earliest slot clearing the pause against both
	// teams' earlier matches once the match's own slot is excluded.
	assert.Equal(t, "2026-09-05 15:00", req.Proposed.Key())
	assert.Equal(t, []string{"a1", "a2", "b1", "b2"}, req.Participants)
	assert.Equal(t, reschedule.StatePending, req.State)
	assert.Equal(t, f.clk.Now().Add(24*time.Hour), req.ExpiresAt)

	// The match itself has not moved yet.
	assert.Equal(t, "2026-09-05 14:00", f.matchBetween(t, "A", "B").Slot.Key())
	assert.Equal(t, notify.KindRescheduleProposed, f.recorder.Kinds()[len(f.recorder.Kinds())-1])
}

func TestRequestRescheduleGuards(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "A", "B")

	_, err := f.t.RequestReschedule(m.ID, "C")
	require.ErrorIs(t, err, ErrInvalidState, "requester must be a team of the match")

	_, err = f.t.RequestReschedule(uuid.New(), "A")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)
	_, err = f.t.RequestReschedule(m.ID, "B")
	require.ErrorIs(t, err, ErrInvalidState, "one pending request per match")
}

func TestUnanimousAcceptMovesMatch(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "A", "B")

	req, err := f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)

	for _, p := range []string{"a1", "a2", "b1"} {
		require.NoError(t, f.t.CastVote(req.ID, p, reschedule.DecisionAccept))
		assert.Equal(t, "2026-09-05 14:00", f.matchBetween(t, "A", "B").Slot.Key())
	}
	require.NoError(t, f.t.CastVote(req.ID, "b2", reschedule.DecisionAccept))

	moved := f.matchBetween(t, "A", "B")
	assert.Equal(t, "2026-09-05 15:00", moved.Slot.Key())
	assert.Equal(t, schedule.StatusScheduled, moved.Status, "a committed move keeps the match status")

	kinds := f.recorder.Kinds()
	assert.Equal(t, notify.KindRescheduleCommitted, kinds[len(kinds)-1])

	// The old slot is free again: a follow-up proposal may claim it.
	req2, err := f.t.RequestReschedule(moved.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-05 14:00", req2.Proposed.Key())
}

func TestSingleRejectKeepsMatch(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "A", "C")

	req, err := f.t.RequestReschedule(m.ID, "C")
	require.NoError(t, err)

	require.NoError(t, f.t.CastVote(req.ID, "a1", reschedule.DecisionAccept))
	require.NoError(t, f.t.CastVote(req.ID, "c1", reschedule.DecisionReject))

	assert.Equal(t, "2026-09-05 12:00", f.matchBetween(t, "A", "C").Slot.Key())
	for _, r := range f.t.Requests() {
		if r.ID == req.ID {
			assert.Equal(t, reschedule.StateRejected, r.State)
		}
	}

	// A rejected request does not pin the match: a new one may open.
	_, err = f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)
}

func TestTickExpiresOverdueRequests(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "A", "B")

	req, err := f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)
	require.NoError(t, f.t.CastVote(req.ID, "a1", reschedule.DecisionAccept))

	f.clk.Advance(25 * time.Hour)
	assert.Equal(t, 1, f.t.Tick())
	assert.Zero(t, f.t.Tick(), "expiry is idempotent")

	kinds := f.recorder.Kinds()
	assert.Equal(t, notify.KindRescheduleExpired, kinds[len(kinds)-1])

	err = f.t.CastVote(req.ID, "a2", reschedule.DecisionAccept)
	require.ErrorIs(t, err, reschedule.ErrInvalidState)
	assert.Equal(t, "2026-09-05 14:00", f.matchBetween(t, "A", "B").Slot.Key())
}

func TestVoteOnOverdueRequestExpiresLazily(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "A", "B")

	req, err := f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)

	f.clk.Advance(24 * time.Hour)
	err = f.t.CastVote(req.ID, "a1", reschedule.DecisionAccept)
	require.ErrorIs(t, err, reschedule.ErrInvalidState)

	kinds := f.recorder.Kinds()
	assert.Equal(t, notify.KindRescheduleExpired, kinds[len(kinds)-1])
}

func TestRequestRescheduleExtendsWindow(t *testing.T) {
	tight := `
tournament:
  start_date: "2026-09-05"
  end_date: "2026-09-05"
active_windows:
  saturday: "10:00-11:00"
rules:
  match_duration_minutes: 60
  pause_duration_minutes: 30
  max_time_budget_hours_per_day: 2
  slot_interval_minutes: 60
  extension_days: 7
teams:
  - name: A
    members: [a1]
    availability: {days: {saturday: ["10:00-11:00"]}}
  - name: B
    members: [b1]
    availability: {days: {saturday: ["10:00-11:00"]}}
`
	f := newFixture(t, tight)
	f.generate(t)
	m := f.matchBetween(t, "A", "B")
	require.Equal(t, "2026-09-05 10:00", m.Slot.Key())

	req, err := f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)

	assert.Equal(t, "2026-09-12 10:00", req.Proposed.Key(), "the only eligible slot sits in the extension")
	assert.Equal(t, time.Date(2026, time.September, 12, 0, 0, 0, 0, time.UTC), f.t.EndDate())
}

func TestReportResult(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "B", "C")

	require.ErrorIs(t, f.t.ReportResult(m.ID, "A"), ErrInvalidState, "winner must be a team of the match")
	require.NoError(t, f.t.ReportResult(m.ID, "B"))

	done := f.matchBetween(t, "B", "C")
	assert.Equal(t, schedule.StatusCompleted, done.Status)
	assert.Equal(t, "B", done.Winner)

	require.ErrorIs(t, f.t.ReportResult(m.ID, "C"), ErrInvalidState, "results are final")
	_, err := f.t.RequestReschedule(m.ID, "B")
	require.ErrorIs(t, err, ErrInvalidState, "completed matches cannot move")
}

func TestReportResultVoidsPendingRequest(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "A", "B")

	req, err := f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)
	require.NoError(t, f.t.ReportResult(m.ID, "A"))

	err = f.t.CastVote(req.ID, "a1", reschedule.DecisionAccept)
	require.ErrorIs(t, err, reschedule.ErrInvalidState)
}

func TestReportForfeitFreesSlot(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "B", "C")

	require.NoError(t, f.t.ReportForfeit(m.ID, "C"))

	voided := f.matchBetween(t, "B", "C")
	assert.Equal(t, schedule.StatusVoided, voided.Status)
	assert.Equal(t, "C", voided.Winner)

	// The 10:00 slot is bookable again.
	other := f.matchBetween(t, "A", "C")
	req, err := f.t.RequestReschedule(other.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-05 10:00", req.Proposed.Key())
}

func TestVoidRequest(t *testing.T) {
	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "A", "B")

	req, err := f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)
	require.NoError(t, f.t.VoidRequest(req.ID))

	err = f.t.CastVote(req.ID, "a1", reschedule.DecisionAccept)
	require.ErrorIs(t, err, reschedule.ErrInvalidState)
	require.ErrorIs(t, f.t.VoidRequest(uuid.New()), ErrNotFound)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(threeTeamConfig))
	require.NoError(t, err)

	f := newFixture(t, threeTeamConfig)
	f.generate(t)
	m := f.matchBetween(t, "A", "B")
	require.NoError(t, f.t.ReportResult(f.matchBetween(t, "B", "C").ID, "B"))

	req, err := f.t.RequestReschedule(m.ID, "A")
	require.NoError(t, err)
	require.NoError(t, f.t.CastVote(req.ID, "a1", reschedule.DecisionAccept))

	snap := f.t.Snapshot()
	restored, err := Restore(cfg, snap, Options{Clock: f.clk})
	require.NoError(t, err)

	assert.Equal(t, f.t.Teams(), restored.Teams())
	require.Equal(t, len(f.t.Matches()), len(restored.Matches()))
	for i, want := range f.t.Matches() {
		got := restored.Matches()[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Winner, got.Winner)
		if want.Slot != nil {
			require.NotNil(t, got.Slot)
			assert.Equal(t, want.Slot.Key(), got.Slot.Key())
		}
	}

	// The restored vote log picks up exactly where it left off.
	for _, p := range []string{"a2", "b1", "b2"} {
		require.NoError(t, restored.CastVote(req.ID, p, reschedule.DecisionAccept))
	}
	assert.Equal(t, "2026-09-05 15:00", restoredMatch(t, restored, "A", "B").Slot.Key())
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(threeTeamConfig))
	require.NoError(t, err)

	f := newFixture(t, threeTeamConfig)
	f.generate(t)

	snap := f.t.Snapshot()
	snap.Matches[0].Status = "limbo"
	_, err = Restore(cfg, snap, Options{})
	require.Error(t, err)

	snap = f.t.Snapshot()
	snap.Matches[0].TeamA = "Ghosts"
	_, err = Restore(cfg, snap, Options{})
	require.ErrorIs(t, err, schedule.ErrUnknownTeam)

	snap = f.t.Snapshot()
	snap.Matches[0].ID = "not-a-uuid"
	_, err = Restore(cfg, snap, Options{})
	require.Error(t, err)

	// A scheduled match must carry a slot, or the replayed board would
	// diverge from the saved one.
	snap = f.t.Snapshot()
	snap.Matches[0].Date = ""
	snap.Matches[0].Start = ""
	_, err = Restore(cfg, snap, Options{})
	require.ErrorContains(t, err, "without a slot")
}

func TestFromConfigPairsSolo(t *testing.T) {
	withSolo := threeTeamConfig + `
solo:
  - player: nadia
    availability: {days: {saturday: ["10:00-14:00"]}}
  - player: piotr
    availability: {days: {saturday: ["12:00-16:00"]}}
  - player: loner
    availability: {days: {sunday: ["10:00-18:00"]}}
`
	f := newFixture(t, withSolo)

	teams := f.t.Teams()
	assert.Contains(t, teams, "nadia & piotr")
	assert.Equal(t, "nadia & piotr", teams[len(teams)-1], "paired teams register after configured ones")

	queue := f.t.SoloQueue()
	require.Len(t, queue, 1)
	assert.Equal(t, "loner", queue[0].Player, "no overlap on an active day leaves the player queued")
}

func restoredMatch(t *testing.T, tour *Tournament, a, b string) schedule.Match {
	t.Helper()
	for _, m := range tour.Matches() {
		if (m.Pairing.TeamA == a && m.Pairing.TeamB == b) || (m.Pairing.TeamA == b && m.Pairing.TeamB == a) {
			return m
		}
	}
	t.Fatalf("no match between %s and %s", a, b)
	return schedule.Match{}
}

// On a 30 minute grid with hour-long matches, two pending requests on
// different matches of a shared team can propose slots whose keys
// differ but whose spans overlap.
const fineGridConfig = `
tournament:
  start_date: "2026-09-05"
  end_date: "2026-09-13"

active_windows:
  saturday: "10:00-18:00"

rules:
  match_duration_minutes: 60
  pause_duration_minutes: 0
  max_time_budget_hours_per_day: 3
  slot_interval_minutes: 30
  reschedule_timeout_hours: 24
  extension_days: 7

teams:
  - name: A
    members: [a1, a2]
    availability:
      days:
        saturday: ["10:00-18:00"]
  - name: B
    members: [b1, b2]
    availability:
      days:
        saturday: ["10:00-13:00", "13:30-18:00"]
  - name: C
    members: [c1, c2]
    availability:
      days:
        saturday: ["10:00-18:00"]
`

func TestCommitReverifiesAgainstEarlierCommits(t *testing.T) {
	f := newFixture(t, fineGridConfig)
	f.generate(t)

	ac := f.matchBetween(t, "A", "C")
	bc := f.matchBetween(t, "B", "C")
	require.Equal(t, "2026-09-05 10:00", bc.Slot.Key())
	require.Equal(t, "2026-09-05 11:00", ac.Slot.Key())

	reqAC, err := f.t.RequestReschedule(ac.ID, "A")
	require.NoError(t, err)
	require.Equal(t, "2026-09-05 13:00", reqAC.Proposed.Key())

	// B's split window pushes this proposal half an hour later, into a
	// span that still crosses the first proposal.
	reqBC, err := f.t.RequestReschedule(bc.ID, "B")
	require.NoError(t, err)
	require.Equal(t, "2026-09-05 13:30", reqBC.Proposed.Key())

	for _, p := range []string{"a1", "a2", "c1", "c2"} {
		require.NoError(t, f.t.CastVote(reqAC.ID, p, reschedule.DecisionAccept))
	}
	require.Equal(t, "2026-09-05 13:00", f.matchBetween(t, "A", "C").Slot.Key())

	// The first commit reshaped the board; booking 13:30 now would
	// double-book team C, so the final accept degrades the request.
	for _, p := range []string{"b1", "b2", "c1"} {
		require.NoError(t, f.t.CastVote(reqBC.ID, p, reschedule.DecisionAccept))
	}
	err = f.t.CastVote(reqBC.ID, "c2", reschedule.DecisionAccept)
	require.ErrorIs(t, err, schedule.ErrNoSlotAvailable)

	assert.Equal(t, "2026-09-05 10:00", f.matchBetween(t, "B", "C").Slot.Key())

	var found bool
	for _, r := range f.t.Requests() {
		if r.ID == reqBC.ID {
			found = true
			assert.Equal(t, reschedule.StateRejected, r.State)
		}
	}
	require.True(t, found)
}

func TestFromConfigReportsDissolvedTeams(t *testing.T) {
	withOrphan := threeTeamConfig + `
  - name: Lone Star
    members: [zoe]
    availability:
      days:
        saturday: ["10:00-18:00"]
`
	f := newFixture(t, withOrphan)

	assert.Equal(t, []string{"A", "B", "C"}, f.t.Teams())
	assert.Equal(t, []string{"Lone Star"}, f.t.Dissolved())

	queue := f.t.SoloQueue()
	require.Len(t, queue, 1)
	assert.Equal(t, "zoe", queue[0].Player, "the remaining member re-enters the solo pool")
}
