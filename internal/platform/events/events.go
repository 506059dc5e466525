// Package events carries domain events from the state machines to their
// consumers: the in-process notification dispatcher and, when configured, an
// AMQP exchange or Kafka topic.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Type names a domain event.
type Type string

const (
	RequestCreated   Type = "request.created"
	RequestApproved  Type = "request.approved"
	RequestRejected  Type = "request.rejected"
	RequestCancelled Type = "request.cancelled"
	RequestInTransit Type = "request.in_transit"
	RequestDelivered Type = "request.delivered"

	BatchCreated     Type = "batch.created"
	BatchTransferred Type = "batch.transferred"
	BatchDelivered   Type = "batch.delivered"

	// InventorySyncFailed reports that local stock could not be brought in
	// line with the ledger and needs operator attention.
	InventorySyncFailed Type = "inventory.sync_failed"
)

// Event is a fact that already happened. Attributes carry the fields the
// consumers need so they never read back into the emitting component.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	SubjectID  string            `json:"subject_id"`
	ActorID    string            `json:"actor_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New returns an event with a fresh id.
func New(t Type, subjectID, actorID string, at time.Time, attrs map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: at,
		SubjectID:  subjectID,
		ActorID:    actorID,
		Attributes: attrs,
	}
}

func (e Event) Attr(key string) string {
	return e.Attributes[key]
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Bus fans each event out to every subscriber. Subscriber failures are logged
// and never returned: emitting an event must not fail the operation that
// produced it.
type Bus struct {
	mu     sync.RWMutex
	subs   []Publisher
	logger zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger.With().Str("component", "events").Logger()}
}

func (b *Bus) Subscribe(p Publisher) {
	b.mu.Lock()
	b.subs = append(b.subs, p)
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	subs := append([]Publisher(nil), b.subs...)
	b.mu.RUnlock()

	b.logger.Debug().Str("event_type", string(e.Type)).Str("subject_id", e.SubjectID).Msg("publish")
	for _, s := range subs {
		if err := s.Publish(ctx, e); err != nil {
			b.logger.Error().Err(err).
				Str("event_id", e.ID).
				Str("event_type", string(e.Type)).
				Str("subject_id", e.SubjectID).
				Msg("event delivery failed")
		}
	}
	return nil
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
