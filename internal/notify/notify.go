// Package notify carries scheduling events out of the engine. The
// engine only sees the Notifier interface; Bus implements it over an
// in-process watermill Pub/Sub so delivery (DM, channel post, mention)
// stays entirely external.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topic is the single stream all scheduling events are published on.
const Topic = "matchplan.events"

// Kind discriminates event payloads.
type Kind string

const (
	KindMatchScheduled      Kind = "match.scheduled"
	KindMatchUnschedulable  Kind = "match.unschedulable"
	KindRescheduleProposed  Kind = "reschedule.proposed"
	KindRescheduleCommitted Kind = "reschedule.committed"
	KindRescheduleExpired   Kind = "reschedule.expired"
)

// Event names the affected match and teams; rendering is not our job.
type Event struct {
	Kind      Kind      `json:"kind"`
	MatchID   uuid.UUID `json:"match_id"`
	RequestID uuid.UUID `json:"request_id,omitempty"`
	Teams     []string  `json:"teams"`
	Date      string    `json:"date,omitempty"`
	Time      string    `json:"time,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Notifier is the engine's outbound edge. Publish must not block on
// delivery; the engine calls it while holding the tournament lock.
type Notifier interface {
	Publish(ev Event) error
}

// Bus publishes events as JSON messages on an in-process Pub/Sub.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus builds the bus with a buffered output channel so publishing
// never waits on consumers.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			zapAdapter{z: logger},
		),
	}
}

// Publish marshals the event and puts it on the topic.
func (b *Bus) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(ev.Kind))
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// Subscribe returns the event stream for an external consumer.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, Topic)
}

// Close shuts down the Pub/Sub, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// Decode unmarshals a bus message back into an Event.
func Decode(msg *message.Message) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	return ev, nil
}

// Recorder collects events in memory, for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(ev Event) error {
	r.Events = append(r.Events, ev)
	return nil
}

// Kinds returns the recorded event kinds in publish order.
func (r *Recorder) Kinds() []Kind {
	kinds := make([]Kind, len(r.Events))
	for i, ev := range r.Events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// zapAdapter bridges watermill's logger to zap.
type zapAdapter struct {
	z *zap.Logger
}

func (a zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.z.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (a zapAdapter) Info(msg string, fields watermill.LogFields) {
	a.z.Info(msg, zapFields(fields)...)
}

func (a zapAdapter) Debug(msg string, fields watermill.LogFields) {
	a.z.Debug(msg, zapFields(fields)...)
}

func (a zapAdapter) Trace(msg string, fields watermill.LogFields) {
	a.z.Debug(msg, zapFields(fields)...)
}

func (a zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zapAdapter{z: a.z.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
