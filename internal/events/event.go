package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/billbook/internal/actorcontext"
)

const (
	TopicInvoiceCreated     = "invoice.created"
	TopicInvoiceDeleted     = "invoice.deleted"
	TopicLedgerEntryCreated = "ledger_entry.created"
	TopicCustomerUpdated    = "customer.updated"

	// TopicAll receives every published event.
	TopicAll = "*"
)

// Event is a committed change announced to live subscribers.
type Event struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    string    `json:"actor_id"`
	Payload    any       `json:"payload"`
}

// Publisher receives events after the change they describe has committed.
// Implementations must not block the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// New stamps an event with a sortable id and the caller identity.
func New(ctx context.Context, topic string, occurredAt time.Time, payload any) Event {
	return Event{
		ID:         ulid.Make().String(),
		Topic:      topic,
		OccurredAt: occurredAt.UTC(),
		ActorID:    actorcontext.ActorOrSystem(ctx),
		Payload:    payload,
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
