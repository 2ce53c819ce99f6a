// Package events publishes back-office domain events to a message broker.
package events

import (
	"context"
	"sync"
	"time"

	"supplydesk/backend/internal/xid"
)

const (
	TypeLowStock      = "inventory.low_stock"
	TypePeriodPayment = "billing.period_payment"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

func New(eventType string, payload any) Event {
	return Event{
		ID:         xid.New("evt"),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) OfType(eventType string) []Event {
	out := []Event{}
	for _, ev := range r.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
