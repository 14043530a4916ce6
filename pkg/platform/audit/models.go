// Package audit fans ledger events out to downstream sinks without blocking
// the request path. Events are buffered in memory and delivered in batches.
package audit

import (
	"context"
	"time"
)

// EventKind names what happened to the ledger.
type EventKind string

const (
	// KindLedgerAppended is emitted once per sealed ledger entry.
	KindLedgerAppended EventKind = "ledger.appended"
)

// Event is the transport-agnostic shape delivered to sinks. Amount is the
// decimal string as stored in the ledger.
type Event struct {
	Kind          EventKind `json:"kind"`
	Sequence      int64     `json:"sequence"`
	TransactionID string    `json:"transaction_id"`
	Employee      string    `json:"employee"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	Hash          string    `json:"hash"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Sink receives batches in append order. A returned error counts the whole
// batch as failed.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, events []Event) error
}
