// Package eventstore persists the action-stack journal: one event per
// transaction phase, queryable by transaction id or time range.
package eventstore

import (
	"context"
	"time"
)

// Store is an append-only journal.
type Store interface {
	Append(ctx context.Context, e *Event) error
	// GetByTxnID returns one transaction's events in append order.
	GetByTxnID(ctx context.Context, txnID string) ([]*Event, error)
	// GetRange returns events with start <= At <= end in append order.
	GetRange(ctx context.Context, start, end time.Time) ([]*Event, error)
	Close() error
}
