package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/serolabs/immunet/ledger"
)

// MemoryStore implements EventStore without a database, for tests and
// single-node runs.
type MemoryStore struct {
	now func() time.Time

	mu      sync.Mutex
	entries []AuditEntry
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Publish implements ledger.Sink.
func (s *MemoryStore) Publish(event ledger.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.entries = append(s.entries, AuditEntry{
		Kind:       event.Kind(),
		Payload:    payload,
		RecordedAt: s.now(),
	})
	s.mu.Unlock()
}

// Recent implements EventStore.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]AuditEntry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Close implements EventStore.
func (s *MemoryStore) Close() error { return nil }
