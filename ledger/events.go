package ledger

import (
	"sync"
	"time"

	"github.com/serolabs/immunet/crypto"
)

// EventKind names an observable ledger notification.
type EventKind string

const (
	EventOwnershipTransferred EventKind = "ownership_transferred"
	EventProviderAdded        EventKind = "provider_added"
	EventProviderRemoved      EventKind = "provider_removed"
	EventPauseChanged         EventKind = "pause_changed"
	EventCooldownChanged      EventKind = "cooldown_changed"
	EventBatchOpened          EventKind = "batch_opened"
	EventBatchClosed          EventKind = "batch_closed"
	EventDataSubmitted        EventKind = "data_submitted"
	EventAnalysisRequested    EventKind = "analysis_requested"
	EventAnalysisCompleted    EventKind = "analysis_completed"
)

// Event is a notification emitted by a successful state-changing operation.
// Idempotent no-ops emit nothing: monitors rely on event absence to infer
// that no state change occurred.
type Event interface {
	Kind() EventKind
}

// OwnershipTransferred reports an ownership change.
type OwnershipTransferred struct {
	Previous crypto.PublicKey `json:"previous"`
	New      crypto.PublicKey `json:"new"`
}

// ProviderAdded reports a new provider membership.
type ProviderAdded struct {
	Provider crypto.PublicKey `json:"provider"`
}

// ProviderRemoved reports a revoked provider membership.
type ProviderRemoved struct {
	Provider crypto.PublicKey `json:"provider"`
}

// PauseChanged reports a pause gate toggle.
type PauseChanged struct {
	Paused bool `json:"paused"`
}

// CooldownChanged reports a new shared cooldown window.
type CooldownChanged struct {
	Cooldown time.Duration `json:"cooldown"`
}

// BatchOpened reports a newly allocated batch.
type BatchOpened struct {
	BatchID uint64 `json:"batch_id"`
}

// BatchClosed reports a batch freeze with its final record count.
type BatchClosed struct {
	BatchID     uint64 `json:"batch_id"`
	RecordCount uint64 `json:"record_count"`
}

// DataSubmitted reports an accepted record submission. Count is always 1:
// batch submissions are not supported.
type DataSubmitted struct {
	Provider crypto.PublicKey `json:"provider"`
	BatchID  uint64           `json:"batch_id"`
	Count    uint64           `json:"count"`
}

// AnalysisRequested reports a dispatched decryption request.
type AnalysisRequested struct {
	RequestID   string        `json:"request_id"`
	BatchID     uint64        `json:"batch_id"`
	Fingerprint crypto.Digest `json:"fingerprint"`
}

// AnalysisCompleted reports a verified decryption callback.
type AnalysisCompleted struct {
	RequestID string  `json:"request_id"`
	BatchID   uint64  `json:"batch_id"`
	Results   Results `json:"results"`
}

func (OwnershipTransferred) Kind() EventKind { return EventOwnershipTransferred }
func (ProviderAdded) Kind() EventKind        { return EventProviderAdded }
func (ProviderRemoved) Kind() EventKind      { return EventProviderRemoved }
func (PauseChanged) Kind() EventKind         { return EventPauseChanged }
func (CooldownChanged) Kind() EventKind      { return EventCooldownChanged }
func (BatchOpened) Kind() EventKind          { return EventBatchOpened }
func (BatchClosed) Kind() EventKind          { return EventBatchClosed }
func (DataSubmitted) Kind() EventKind        { return EventDataSubmitted }
func (AnalysisRequested) Kind() EventKind    { return EventAnalysisRequested }
func (AnalysisCompleted) Kind() EventKind    { return EventAnalysisCompleted }

// Sink receives ledger events in emission order. Sinks are invoked under
// the ledger's serialization point, so event order matches the total order
// of operations; a sink must not call back into the Service.
type Sink interface {
	Publish(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event Event)

// Publish implements Sink.
func (f SinkFunc) Publish(event Event) { f(event) }

// MemorySink retains events in order, for queries and tests. It is safe
// for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Publish implements Sink.
func (s *MemorySink) Publish(event Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

// Events returns a snapshot of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfKind returns the retained events of one kind, in order.
func (s *MemorySink) OfKind(kind EventKind) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}
