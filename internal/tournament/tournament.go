// Package tournament is the engine's aggregate root. It owns the
// roster, the generated matches, the board and all open reschedule
// requests, and serializes every operation behind one lock so the
// no-overlap and one-match-per-slot invariants hold under concurrent
// callers.
package tournament

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pbeckmann/matchplan/internal/bracket"
	"github.com/pbeckmann/matchplan/internal/clock"
	"github.com/pbeckmann/matchplan/internal/config"
	"github.com/pbeckmann/matchplan/internal/interval"
	"github.com/pbeckmann/matchplan/internal/notify"
	"github.com/pbeckmann/matchplan/internal/reschedule"
	"github.com/pbeckmann/matchplan/internal/roster"
	"github.com/pbeckmann/matchplan/internal/schedule"
)

// ErrNotFound reports a match or request ID unknown to the tournament.
var ErrNotFound = errors.New("not found")

// ErrInvalidState reports an operation that the target's current
// lifecycle state does not permit.
var ErrInvalidState = errors.New("invalid tournament state")

// Options carries the injectable collaborators. Zero values fall back
// to the system clock, a no-op notifier and a no-op logger.
type Options struct {
	Clock    clock.Clock
	Notifier notify.Notifier
	Logger   *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.System()
	}
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type nopNotifier struct{}

func (nopNotifier) Publish(notify.Event) error { return nil }

// Tournament holds all mutable scheduling state. Every exported method
// takes the lock; reads copy out, so callers never alias internals.
type Tournament struct {
	mu sync.RWMutex

	start         time.Time
	end           time.Time
	windows       map[time.Weekday]interval.Interval
	rules         schedule.Rules
	slotWidth     int
	timeout       time.Duration
	extensionDays int

	order     []string
	teams     map[string]*roster.Team
	solo      []roster.Solo
	dissolved []string
	matches   []*schedule.Match
	requests  []*reschedule.Request
	board     *schedule.Board

	clk      clock.Clock
	notifier notify.Notifier
	log      *zap.Logger
}

// FromConfig builds a tournament from a validated config: registered
// teams first, then solo players paired into teams where their
// availability overlaps on an active day. Players left unpaired stay in
// the solo queue and take no part in the bracket.
func FromConfig(cfg *config.Config, opts Options) (*Tournament, error) {
	opts = opts.withDefaults()

	registered := cfg.RosterTeams()
	teams, rescued := roster.DissolveOrphans(registered)
	solo := append(cfg.RosterSolo(), rescued...)

	taken := make(map[string]struct{}, len(teams))
	for _, t := range teams {
		taken[t.Name] = struct{}{}
	}
	var dissolved []string
	for _, tm := range registered {
		if _, ok := taken[tm.Name]; !ok {
			dissolved = append(dissolved, tm.Name)
			opts.Logger.Warn("single-member team dissolved into the solo pool",
				zap.String("team", tm.Name),
				zap.String("player", tm.Members[0]))
		}
	}
	paired, remaining := roster.PairSolo(solo, cfg.ActiveDays(), taken)
	teams = append(teams, paired...)

	rules := schedule.Rules{
		MatchDurationMinutes:     cfg.Rules.MatchDurationMinutes,
		PauseDurationMinutes:     cfg.Rules.PauseDurationMinutes,
		MaxTimeBudgetHoursPerDay: cfg.Rules.MaxTimeBudgetHoursPerDay,
	}
	t := &Tournament{
		start:         cfg.Tournament.StartDate.Time,
		end:           cfg.Tournament.EndDate.Time,
		windows:       cfg.Windows(),
		rules:         rules,
		slotWidth:     cfg.Rules.SlotIntervalMinutes,
		timeout:       time.Duration(cfg.Rules.RescheduleTimeoutHours) * time.Hour,
		extensionDays: cfg.Rules.ExtensionDays,
		teams:         make(map[string]*roster.Team, len(teams)),
		solo:          remaining,
		dissolved:     dissolved,
		board:         schedule.NewBoard(rules),
		clk:           opts.Clock,
		notifier:      opts.Notifier,
		log:           opts.Logger,
	}
	for _, tm := range teams {
		t.order = append(t.order, tm.Name)
		t.teams[tm.Name] = tm
	}
	return t, nil
}

// Teams returns the team names in registration order, paired solo teams
// last.
func (t *Tournament) Teams() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// SoloQueue returns the players still waiting for a partner.
func (t *Tournament) SoloQueue() []roster.Solo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]roster.Solo, len(t.solo))
	copy(out, t.solo)
	return out
}

// Dissolved returns the names of registered teams that were dissolved
// into the solo pool because only one member remained.
func (t *Tournament) Dissolved() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.dissolved))
	copy(out, t.dissolved)
	return out
}

// Roster returns the team objects keyed by name. Callers must treat
// them as read-only.
func (t *Tournament) Roster() map[string]*roster.Team {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*roster.Team, len(t.teams))
	for name, tm := range t.teams {
		out[name] = tm
	}
	return out
}

// Rules returns the assignment constraints in force.
func (t *Tournament) Rules() schedule.Rules {
	return t.rules
}

// EndDate returns the current tournament end, including any extension
// granted while searching reschedule slots.
func (t *Tournament) EndDate() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.end
}

// Matches returns a copy of every match in bracket order.
func (t *Tournament) Matches() []schedule.Match {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]schedule.Match, len(t.matches))
	for i, m := range t.matches {
		out[i] = *m
		if m.Slot != nil {
			s := *m.Slot
			out[i].Slot = &s
		}
	}
	return out
}

// Requests returns a copy of every reschedule request, oldest first.
func (t *Tournament) Requests() []reschedule.Request {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]reschedule.Request, len(t.requests))
	for i, r := range t.requests {
		out[i] = *r
		out[i].Participants = append([]string(nil), r.Participants...)
		out[i].Votes = append([]reschedule.Vote(nil), r.Votes...)
	}
	return out
}

// Report summarizes a schedule generation run.
type Report struct {
	Rounds    int
	Scheduled int
	Rescued   int
	Failures  []schedule.Failure
}

// GenerateSchedule builds the round-robin bracket, expands the slot
// matrix over the tournament window and assigns every pairing. It
// replaces any previously generated schedule wholesale, so it is meant
// to run once after registration closes.
func (t *Tournament) GenerateSchedule() (*Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rounds, err := bracket.Generate(t.order)
	if err != nil {
		return nil, err
	}

	slots := schedule.BuildMatrix(t.windows, t.start, t.end, t.slotWidth, t.rules.MatchDurationMinutes)
	result, err := schedule.Assign(rounds, t.teams, slots, t.rules)
	if err != nil {
		return nil, err
	}
	t.matches = result.Matches
	t.board = result.Board
	t.requests = nil

	report := &Report{Rounds: len(rounds), Failures: result.Failures}
	for _, m := range t.matches {
		switch m.Status {
		case schedule.StatusScheduled:
			report.Scheduled++
		case schedule.StatusRescue:
			report.Rescued++
		}
		if m.OnCalendar() {
			t.emit(notify.Event{
				Kind:    notify.KindMatchScheduled,
				MatchID: m.ID,
				Teams:   pairingTeams(m.Pairing),
				Date:    m.Slot.Date.Format(schedule.DateLayout),
				Time:    m.Slot.Clock(),
			})
		}
	}
	for _, f := range result.Failures {
		t.emit(notify.Event{
			Kind:   notify.KindMatchUnschedulable,
			Teams:  pairingTeams(f.Pairing),
			Detail: f.Err.Error(),
		})
	}

	t.log.Info("schedule generated",
		zap.Int("rounds", report.Rounds),
		zap.Int("scheduled", report.Scheduled),
		zap.Int("rescued", report.Rescued),
		zap.Int("failed", len(report.Failures)))
	return report, nil
}

// RequestReschedule opens a vote on moving the match to the earliest
// future slot that satisfies the primary-pass rules, excluding its
// current one. If the remaining window holds no such slot the end date
// is extended by the configured number of days and the search retried
// once; the extension sticks regardless of the vote's outcome.
//
// A match may carry at most one pending request at a time, and the
// requester must be one of its teams.
func (t *Tournament) RequestReschedule(matchID uuid.UUID, requester string) (reschedule.Request, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepExpiredLocked()

	m, err := t.findMatchLocked(matchID)
	if err != nil {
		return reschedule.Request{}, err
	}
	if !m.OnCalendar() {
		return reschedule.Request{}, fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.ID, m.Status)
	}
	if requester != m.Pairing.TeamA && requester != m.Pairing.TeamB {
		return reschedule.Request{}, fmt.Errorf("%w: %q is not a team of match %s", ErrInvalidState, requester, m.ID)
	}
	if open := t.openRequestLocked(m.ID); open != nil {
		return reschedule.Request{}, fmt.Errorf("%w: match %s already has pending request %s", ErrInvalidState, m.ID, open.ID)
	}

	slot, err := t.searchSlotLocked(m)
	if err != nil {
		return reschedule.Request{}, err
	}

	req := reschedule.New(m.ID, requester, slot, t.participantsOf(m), t.clk.Now(), t.timeout)
	t.requests = append(t.requests, req)

	t.emit(notify.Event{
		Kind:      notify.KindRescheduleProposed,
		MatchID:   m.ID,
		RequestID: req.ID,
		Teams:     pairingTeams(m.Pairing),
		Date:      slot.Date.Format(schedule.DateLayout),
		Time:      slot.Clock(),
	})
	t.log.Info("reschedule proposed",
		zap.String("match", m.ID.String()),
		zap.String("request", req.ID.String()),
		zap.String("slot", slot.Key()))
	return t.copyRequest(req), nil
}

// searchSlotLocked finds a new slot for the match under the strict
// rules. The match is lifted off the board for the duration of the
// search so its own occupancy cannot block candidates, and always put
// back: the move itself only happens when the vote commits.
func (t *Tournament) searchSlotLocked(m *schedule.Match) (schedule.Slot, error) {
	t.board.Remove(m)
	defer t.board.Place(m)

	exclude := map[string]bool{m.Slot.Key(): true}
	now := t.clk.Now()

	slot, err := schedule.FindSlot(t.board, m, t.teams, t.futureSlots(now, t.end), exclude)
	if err == nil {
		return slot, nil
	}

	extended := t.end.AddDate(0, 0, t.extensionDays)
	slot, retryErr := schedule.FindSlot(t.board, m, t.teams, t.futureSlots(now, extended), exclude)
	if retryErr != nil {
		return schedule.Slot{}, fmt.Errorf("even after extending to %s: %w",
			extended.Format(schedule.DateLayout), retryErr)
	}
	t.end = extended
	t.log.Info("tournament window extended",
		zap.String("end", extended.Format(schedule.DateLayout)),
		zap.Int("days", t.extensionDays))
	return slot, nil
}

// futureSlots builds the matrix up to the given end and drops slots
// that start at or before now.
func (t *Tournament) futureSlots(now, end time.Time) []schedule.Slot {
	all := schedule.BuildMatrix(t.windows, t.start, end, t.slotWidth, t.rules.MatchDurationMinutes)
	var future []schedule.Slot
	for _, s := range all {
		if s.At().After(now) {
			future = append(future, s)
		}
	}
	return future
}

// CastVote records one participant's decision on a request. A reject
// resolves the request immediately; the final accept commits the move,
// re-placing the match on the proposed slot. If the board changed while
// the vote ran and the proposed slot is no longer eligible, the request
// degrades to rejected instead of corrupting the board.
func (t *Tournament) CastVote(requestID uuid.UUID, participant string, d reschedule.Decision) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, err := t.findRequestLocked(requestID)
	if err != nil {
		return err
	}
	now := t.clk.Now()
	if req.ExpireIfDue(now) {
		t.emitExpiredLocked(req)
	}
	if err := req.Cast(participant, d, now); err != nil {
		return err
	}
	if req.State != reschedule.StateCommitted {
		return nil
	}
	return t.commitLocked(req)
}

// commitLocked moves the request's match onto the proposed slot.
func (t *Tournament) commitLocked(req *reschedule.Request) error {
	m, err := t.findMatchLocked(req.MatchID)
	if err != nil {
		return err
	}
	if !m.OnCalendar() {
		req.State = reschedule.StateRejected
		return fmt.Errorf("%w: match %s is %s, cannot commit request %s",
			ErrInvalidState, m.ID, m.Status, req.ID)
	}
	// Other commits may have reshaped the board since the slot was
	// proposed. Re-verify full eligibility with the match lifted off,
	// or concurrent requests sharing a team could collide.
	t.board.Remove(m)
	if err := schedule.Eligible(t.board, m, t.teams, req.Proposed); err != nil {
		t.board.Place(m)
		req.State = reschedule.StateRejected
		return fmt.Errorf("request %s: %w", req.ID, err)
	}

	slot := req.Proposed
	m.Slot = &slot
	t.board.Place(m)

	t.emit(notify.Event{
		Kind:      notify.KindRescheduleCommitted,
		MatchID:   m.ID,
		RequestID: req.ID,
		Teams:     pairingTeams(m.Pairing),
		Date:      slot.Date.Format(schedule.DateLayout),
		Time:      slot.Clock(),
	})
	t.log.Info("reschedule committed",
		zap.String("match", m.ID.String()),
		zap.String("request", req.ID.String()),
		zap.String("slot", slot.Key()))
	return nil
}

// VoidRequest cancels a pending request administratively. The match
// keeps its current slot.
func (t *Tournament) VoidRequest(requestID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, err := t.findRequestLocked(requestID)
	if err != nil {
		return err
	}
	now := t.clk.Now()
	if req.ExpireIfDue(now) {
		t.emitExpiredLocked(req)
	}
	return req.Void(now)
}

// ReportResult marks a scheduled match completed with the given winner.
// The match keeps its slot on the board, so the day's occupancy and
// ledger still reflect the played time. A pending reschedule request
// for the match is voided.
func (t *Tournament) ReportResult(matchID uuid.UUID, winner string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.findMatchLocked(matchID)
	if err != nil {
		return err
	}
	if !m.OnCalendar() {
		return fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.ID, m.Status)
	}
	if winner != m.Pairing.TeamA && winner != m.Pairing.TeamB {
		return fmt.Errorf("%w: %q is not a team of match %s", ErrInvalidState, winner, m.ID)
	}
	m.Status = schedule.StatusCompleted
	m.Winner = winner
	t.voidOpenRequestLocked(m.ID)
	return nil
}

// ReportForfeit voids a scheduled match and frees its slot. Winner may
// name the non-forfeiting team or stay empty for a double forfeit.
func (t *Tournament) ReportForfeit(matchID uuid.UUID, winner string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.findMatchLocked(matchID)
	if err != nil {
		return err
	}
	if !m.OnCalendar() {
		return fmt.Errorf("%w: match %s is %s", ErrInvalidState, m.ID, m.Status)
	}
	if winner != "" && winner != m.Pairing.TeamA && winner != m.Pairing.TeamB {
		return fmt.Errorf("%w: %q is not a team of match %s", ErrInvalidState, winner, m.ID)
	}
	t.board.Remove(m)
	m.Status = schedule.StatusVoided
	m.Winner = winner
	t.voidOpenRequestLocked(m.ID)
	return nil
}

// Tick sweeps every pending request past its deadline and returns how
// many expired. It is safe to call from a background loop at any
// frequency.
func (t *Tournament) Tick() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepExpiredLocked()
}

func (t *Tournament) sweepExpiredLocked() int {
	now := t.clk.Now()
	expired := 0
	for _, req := range t.requests {
		if req.ExpireIfDue(now) {
			expired++
			t.emitExpiredLocked(req)
		}
	}
	return expired
}

func (t *Tournament) emitExpiredLocked(req *reschedule.Request) {
	ev := notify.Event{
		Kind:      notify.KindRescheduleExpired,
		MatchID:   req.MatchID,
		RequestID: req.ID,
	}
	if m, err := t.findMatchLocked(req.MatchID); err == nil {
		ev.Teams = pairingTeams(m.Pairing)
	}
	t.emit(ev)
	t.log.Info("reschedule expired", zap.String("request", req.ID.String()))
}

func (t *Tournament) voidOpenRequestLocked(matchID uuid.UUID) {
	if req := t.openRequestLocked(matchID); req != nil {
		req.State = reschedule.StateRejected
	}
}

func (t *Tournament) findMatchLocked(id uuid.UUID) (*schedule.Match, error) {
	for _, m := range t.matches {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: match %s", ErrNotFound, id)
}

func (t *Tournament) findRequestLocked(id uuid.UUID) (*reschedule.Request, error) {
	for _, r := range t.requests {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: request %s", ErrNotFound, id)
}

func (t *Tournament) openRequestLocked(matchID uuid.UUID) *reschedule.Request {
	now := t.clk.Now()
	for _, r := range t.requests {
		if r.MatchID != matchID {
			continue
		}
		if r.ExpireIfDue(now) {
			t.emitExpiredLocked(r)
			continue
		}
		if r.Open() {
			return r
		}
	}
	return nil
}

// participantsOf lists every member of both teams, team A's first.
func (t *Tournament) participantsOf(m *schedule.Match) []string {
	var out []string
	for _, name := range m.Pairing.Teams() {
		if tm, ok := t.teams[name]; ok {
			out = append(out, tm.Members...)
		}
	}
	return out
}

func (t *Tournament) copyRequest(req *reschedule.Request) reschedule.Request {
	out := *req
	out.Participants = append([]string(nil), req.Participants...)
	out.Votes = append([]reschedule.Vote(nil), req.Votes...)
	return out
}

func (t *Tournament) emit(ev notify.Event) {
	if err := t.notifier.Publish(ev); err != nil {
		t.log.Error("publishing event", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

func pairingTeams(p bracket.Pairing) []string {
	teams := p.Teams()
	return []string{teams[0], teams[1]}
}
