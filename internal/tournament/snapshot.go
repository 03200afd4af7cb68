package tournament

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pbeckmann/matchplan/internal/bracket"
	"github.com/pbeckmann/matchplan/internal/config"
	"github.com/pbeckmann/matchplan/internal/interval"
	"github.com/pbeckmann/matchplan/internal/reschedule"
	"github.com/pbeckmann/matchplan/internal/roster"
	"github.com/pbeckmann/matchplan/internal/schedule"
	"github.com/pbeckmann/matchplan/internal/store"
)

// Snapshot serializes the full tournament state into store records.
func (t *Tournament) Snapshot() *store.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := &store.Snapshot{
		SavedAt: t.clk.Now(),
		Start:   t.start.Format(schedule.DateLayout),
		End:     t.end.Format(schedule.DateLayout),
	}
	for _, name := range t.order {
		tm := t.teams[name]
		snap.Teams = append(snap.Teams, store.TeamRecord{
			Name:         tm.Name,
			Members:      tm.Members,
			Availability: tm.Availability,
		})
	}
	for _, s := range t.solo {
		snap.Solo = append(snap.Solo, store.SoloRecord{
			Player:       s.Player,
			Availability: s.Availability,
		})
	}
	for _, m := range t.matches {
		rec := store.MatchRecord{
			ID:     m.ID.String(),
			Round:  m.Round,
			TeamA:  m.Pairing.TeamA,
			TeamB:  m.Pairing.TeamB,
			Status: string(m.Status),
			Winner: m.Winner,
		}
		if m.Slot != nil {
			rec.Date = m.Slot.Date.Format(schedule.DateLayout)
			rec.Start = m.Slot.Clock()
		}
		snap.Matches = append(snap.Matches, rec)
	}
	for _, r := range t.requests {
		rec := store.RequestRecord{
			ID:           r.ID.String(),
			MatchID:      r.MatchID.String(),
			Requester:    r.Requester,
			Date:         r.Proposed.Date.Format(schedule.DateLayout),
			Start:        r.Proposed.Clock(),
			Participants: r.Participants,
			CreatedAt:    r.CreatedAt,
			ExpiresAt:    r.ExpiresAt,
			State:        string(r.State),
		}
		for _, v := range r.Votes {
			rec.Votes = append(rec.Votes, store.VoteRecord{
				Participant: v.Participant,
				Decision:    string(v.Decision),
				At:          v.At,
			})
		}
		snap.Requests = append(snap.Requests, rec)
	}
	return snap
}

// Restore rebuilds a tournament from a snapshot. Rules and active
// windows come from the config; roster, matches, requests and the
// possibly extended end date come from the snapshot. The board is
// reconstructed by replaying every placement that still counts.
func Restore(cfg *config.Config, snap *store.Snapshot, opts Options) (*Tournament, error) {
	opts = opts.withDefaults()

	end, err := time.Parse(schedule.DateLayout, snap.End)
	if err != nil {
		return nil, fmt.Errorf("snapshot end date: %w", err)
	}
	start, err := time.Parse(schedule.DateLayout, snap.Start)
	if err != nil {
		return nil, fmt.Errorf("snapshot start date: %w", err)
	}

	rules := schedule.Rules{
		MatchDurationMinutes:     cfg.Rules.MatchDurationMinutes,
		PauseDurationMinutes:     cfg.Rules.PauseDurationMinutes,
		MaxTimeBudgetHoursPerDay: cfg.Rules.MaxTimeBudgetHoursPerDay,
	}
	t := &Tournament{
		start:         start,
		end:           end,
		windows:       cfg.Windows(),
		rules:         rules,
		slotWidth:     cfg.Rules.SlotIntervalMinutes,
		timeout:       time.Duration(cfg.Rules.RescheduleTimeoutHours) * time.Hour,
		extensionDays: cfg.Rules.ExtensionDays,
		teams:         make(map[string]*roster.Team, len(snap.Teams)),
		board:         schedule.NewBoard(rules),
		clk:           opts.Clock,
		notifier:      opts.Notifier,
		log:           opts.Logger,
	}

	for _, rec := range snap.Teams {
		tm := &roster.Team{Name: rec.Name, Members: rec.Members, Availability: rec.Availability}
		t.order = append(t.order, tm.Name)
		t.teams[tm.Name] = tm
	}
	if err := roster.Validate(rosterTeams(t)); err != nil {
		return nil, fmt.Errorf("snapshot roster: %w", err)
	}
	for _, rec := range snap.Solo {
		t.solo = append(t.solo, roster.Solo{Player: rec.Player, Availability: rec.Availability})
	}

	for _, rec := range snap.Matches {
		m, err := restoreMatch(t, rec)
		if err != nil {
			return nil, err
		}
		t.matches = append(t.matches, m)
		// Completed matches keep their slot booked so the replayed
		// board matches the one the snapshot was taken from.
		if m.Slot != nil && (m.OnCalendar() || m.Status == schedule.StatusCompleted) {
			t.board.Place(m)
		}
	}

	for _, rec := range snap.Requests {
		r, err := restoreRequest(rec)
		if err != nil {
			return nil, err
		}
		if _, err := t.findMatchLocked(r.MatchID); err != nil {
			return nil, fmt.Errorf("snapshot request %s: %w", r.ID, err)
		}
		t.requests = append(t.requests, r)
	}

	return t, nil
}

func restoreMatch(t *Tournament, rec store.MatchRecord) (*schedule.Match, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("snapshot match id %q: %w", rec.ID, err)
	}
	status := schedule.Status(rec.Status)
	switch status {
	case schedule.StatusUnscheduled, schedule.StatusScheduled, schedule.StatusRescue,
		schedule.StatusCompleted, schedule.StatusVoided:
	default:
		return nil, fmt.Errorf("snapshot match %s: unknown status %q", rec.ID, rec.Status)
	}
	for _, name := range []string{rec.TeamA, rec.TeamB} {
		if _, ok := t.teams[name]; !ok {
			return nil, fmt.Errorf("snapshot match %s: %w: %q", rec.ID, schedule.ErrUnknownTeam, name)
		}
	}

	m := &schedule.Match{
		ID:      id,
		Round:   rec.Round,
		Pairing: bracket.Pairing{TeamA: rec.TeamA, TeamB: rec.TeamB},
		Status:  status,
		Winner:  rec.Winner,
	}
	if rec.Date != "" {
		slot, err := parseSlot(rec.Date, rec.Start)
		if err != nil {
			return nil, fmt.Errorf("snapshot match %s: %w", rec.ID, err)
		}
		m.Slot = &slot
	}
	// Scheduled and completed matches occupy a board slot; a record
	// claiming such a status without one cannot be replayed.
	if m.Slot == nil && (m.OnCalendar() || status == schedule.StatusCompleted) {
		return nil, fmt.Errorf("snapshot match %s: status %s without a slot", rec.ID, status)
	}
	return m, nil
}

func restoreRequest(rec store.RequestRecord) (*reschedule.Request, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("snapshot request id %q: %w", rec.ID, err)
	}
	matchID, err := uuid.Parse(rec.MatchID)
	if err != nil {
		return nil, fmt.Errorf("snapshot request %s: match id %q: %w", rec.ID, rec.MatchID, err)
	}
	state := reschedule.State(rec.State)
	switch state {
	case reschedule.StatePending, reschedule.StateCommitted,
		reschedule.StateRejected, reschedule.StateExpired:
	default:
		return nil, fmt.Errorf("snapshot request %s: unknown state %q", rec.ID, rec.State)
	}
	slot, err := parseSlot(rec.Date, rec.Start)
	if err != nil {
		return nil, fmt.Errorf("snapshot request %s: %w", rec.ID, err)
	}

	r := &reschedule.Request{
		ID:           id,
		MatchID:      matchID,
		Requester:    rec.Requester,
		Proposed:     slot,
		Participants: rec.Participants,
		CreatedAt:    rec.CreatedAt,
		ExpiresAt:    rec.ExpiresAt,
		State:        state,
	}
	for _, v := range rec.Votes {
		r.Votes = append(r.Votes, reschedule.Vote{
			Participant: v.Participant,
			Decision:    reschedule.Decision(v.Decision),
			At:          v.At,
		})
	}
	return r, nil
}

func parseSlot(date, start string) (schedule.Slot, error) {
	d, err := time.Parse(schedule.DateLayout, date)
	if err != nil {
		return schedule.Slot{}, fmt.Errorf("slot date %q: %w", date, err)
	}
	st, err := interval.ParseClock(start)
	if err != nil {
		return schedule.Slot{}, fmt.Errorf("slot start: %w", err)
	}
	return schedule.Slot{Date: d, Start: st}, nil
}

func rosterTeams(t *Tournament) []*roster.Team {
	out := make([]*roster.Team, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.teams[name])
	}
	return out
}
