package store

import (
	"context"
	"time"

	"github.com/serolabs/immunet/ledger"
)

// AuditEntry is one persisted ledger event.
type AuditEntry struct {
	Kind       ledger.EventKind `json:"kind"`
	Payload    []byte           `json:"payload"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// EventStore is an append-only audit log of ledger events.
type EventStore interface {
	ledger.Sink

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)

	// Close flushes buffered events and releases resources.
	Close() error
}
