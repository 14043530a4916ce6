package ledger

import (
	"context"

	"efrn/pkg/platform/audit"
	"efrn/pkg/requestcontext"
)

// Enqueuer accepts events without blocking.
type Enqueuer interface {
	Enqueue(event audit.Event)
}

// EventPublisher adapts committed entries into audit events.
type EventPublisher struct {
	queue Enqueuer
}

func NewEventPublisher(queue Enqueuer) *EventPublisher {
	return &EventPublisher{queue: queue}
}

// Publish implements Publisher.
func (p *EventPublisher) Publish(ctx context.Context, entry Entry) {
	p.queue.Enqueue(EventFrom(ctx, entry))
}

// EventFrom builds the wire event for a sealed entry.
func EventFrom(ctx context.Context, entry Entry) audit.Event {
	return audit.Event{
		Kind:          audit.KindLedgerAppended,
		Sequence:      entry.Sequence,
		TransactionID: entry.TransactionID.String(),
		Employee:      entry.Employee.String(),
		Amount:        entry.Amount.String(),
		Currency:      entry.Currency.String(),
		Status:        entry.Status.String(),
		Reason:        entry.Reason,
		Hash:          entry.Hash,
		Timestamp:     entry.Timestamp,
		RequestID:     requestcontext.RequestID(ctx),
	}
}
