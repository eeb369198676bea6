// Package outbox records domain events in the same transaction as the write
// that caused them. A worker later publishes pending entries to the broker.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"accounting/pkg/requestcontext"
)

// Event is a domain event waiting to be published.
type Event struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	Type          string
	Payload       json.RawMessage
	RequestID     string
	CreatedAt     time.Time
}

// Entry is an event as stored in the outbox.
type Entry struct {
	Event
	PublishedAt *time.Time
}

// NewEvent builds an event, stamping it with the request id and time carried
// by ctx.
func NewEvent(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       raw,
		RequestID:     requestcontext.RequestID(ctx),
		CreatedAt:     requestcontext.Now(ctx).UTC(),
	}, nil
}

// Recorder appends events. Implementations join the transaction carried by ctx.
type Recorder interface {
	Append(ctx context.Context, event Event) error
}

// Store is the worker's view of the outbox.
type Store interface {
	Recorder
	// FetchPending returns up to limit unpublished entries, oldest first,
	// locking them for the surrounding transaction.
	FetchPending(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Publisher delivers one entry to the broker.
type Publisher interface {
	Publish(ctx context.Context, entry Entry) error
}
