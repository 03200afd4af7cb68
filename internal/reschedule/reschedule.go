// Package reschedule implements the voting state machine that moves an
// already-assigned match to a new slot. A request stays immutable apart
// from its append-only vote log; consensus is recomputed from the log,
// and expiry is evaluated against whatever clock the caller injects.
package reschedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pbeckmann/matchplan/internal/schedule"
)

// ErrInvalidState reports an operation against a request in an
// incompatible state, or a vote from a non-participant. Always a caller
// bug, never swallowed.
var ErrInvalidState = errors.New("invalid reschedule state")

// Decision is a participant's vote.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// State is the request lifecycle: pending until committed, rejected or
// expired, all terminal.
type State string

const (
	StatePending   State = "pending"
	StateCommitted State = "committed"
	StateRejected  State = "rejected"
	StateExpired   State = "expired"
)

// Vote is one append-only log entry.
type Vote struct {
	Participant string
	Decision    Decision
	At          time.Time
}

// Request proposes moving one match to a new slot, subject to unanimous
// accept by every member of both teams before the deadline.
type Request struct {
	ID           uuid.UUID
	MatchID      uuid.UUID
	Requester    string
	Proposed     schedule.Slot
	Participants []string
	Votes        []Vote
	CreatedAt    time.Time
	ExpiresAt    time.Time
	State        State
}

// New opens a pending request. The proposed slot must already have been
// searched and found eligible by the caller.
func New(matchID uuid.UUID, requester string, proposed schedule.Slot, participants []string, now time.Time, timeout time.Duration) *Request {
	return &Request{
		ID:           uuid.New(),
		MatchID:      matchID,
		Requester:    requester,
		Proposed:     proposed,
		Participants: participants,
		CreatedAt:    now,
		ExpiresAt:    now.Add(timeout),
		State:        StatePending,
	}
}

// Open reports whether the request still awaits resolution.
func (r *Request) Open() bool {
	return r.State == StatePending
}

// ExpireIfDue transitions a pending request past its deadline to
// expired. It is called lazily before every other operation and
// proactively by the background tick, and is idempotent.
func (r *Request) ExpireIfDue(now time.Time) bool {
	if r.State == StatePending && !now.Before(r.ExpiresAt) {
		r.State = StateExpired
		return true
	}
	return false
}

// Cast records a participant's vote and resolves the request when the
// log reaches a terminal consensus. A reject is terminal immediately;
// commit requires an accept from every participant.
func (r *Request) Cast(participant string, d Decision, now time.Time) error {
	r.ExpireIfDue(now)
	if r.State != StatePending {
		return fmt.Errorf("%w: request %s is %s", ErrInvalidState, r.ID, r.State)
	}
	if !r.isParticipant(participant) {
		return fmt.Errorf("%w: %q is not a participant of request %s", ErrInvalidState, participant, r.ID)
	}
	if d != DecisionAccept && d != DecisionReject {
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidState, d)
	}
	r.Votes = append(r.Votes, Vote{Participant: participant, Decision: d, At: now})
	r.State = r.Consensus()
	return nil
}

// Void degrades a pending request to the rejected terminal state, used
// for administrative cancellation before commit.
func (r *Request) Void(now time.Time) error {
	r.ExpireIfDue(now)
	if r.State != StatePending {
		return fmt.Errorf("%w: request %s is %s", ErrInvalidState, r.ID, r.State)
	}
	r.State = StateRejected
	return nil
}

// Consensus recomputes the request's state as a pure function of the
// vote log: any reject is terminal, unanimous accept commits, anything
// else stays pending.
func (r *Request) Consensus() State {
	accepted := make(map[string]bool, len(r.Participants))
	for _, v := range r.Votes {
		if v.Decision == DecisionReject {
			return StateRejected
		}
		accepted[v.Participant] = true
	}
	for _, p := range r.Participants {
		if !accepted[p] {
			return StatePending
		}
	}
	return StateCommitted
}

func (r *Request) isParticipant(name string) bool {
	for _, p := range r.Participants {
		if p == name {
			return true
		}
	}
	return false
}
