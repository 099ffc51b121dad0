package ledger

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/serolabs/immunet/crypto"
)

// DefaultCooldown is the shared rate-limit window applied when the
// configuration does not set one.
const DefaultCooldown = 30 * time.Second

// Config carries the dependencies and initial state of a Service.
type Config struct {
	// Owner is the administrating actor, set at construction and
	// transferable afterwards.
	Owner crypto.PublicKey

	// Arithmetic is the homomorphic-encryption capability.
	Arithmetic Arithmetic

	// Oracle is the asynchronous decryption capability.
	Oracle Oracle

	// Identity is mixed into every state fingerprint so that fingerprints
	// from different service instances never collide.
	Identity []byte

	// Providers is the initial provider membership. Construction-time
	// state, so no events are emitted for these.
	Providers []crypto.PublicKey

	// Cooldown is the shared per-actor rate-limit window. Defaults to
	// DefaultCooldown when zero.
	Cooldown time.Duration

	// Sinks receive emitted events in operation order.
	Sinks []Sink

	// Log is the structured logger. Defaults to slog.Default.
	Log *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service owns all mutable ledger state behind a single serialization
// point: every state-changing operation runs to completion atomically with
// respect to all others. Validation happens before any mutation, so a
// failed call leaves no partial state.
type Service struct {
	arith    Arithmetic
	oracle   Oracle
	identity []byte
	sinks    []Sink
	log      *slog.Logger
	now      func() time.Time

	mu                  sync.Mutex
	owner               crypto.PublicKey
	providers           map[string]bool
	paused              bool
	cooldown            time.Duration
	lastSubmission      map[string]time.Time
	lastAnalysisRequest map[string]time.Time
	batches             []*batchState
	contexts            map[string]*AnalysisContext
}

// batchState is the ledger-internal batch arena entry: batch id i lives at
// index i-1 and owns its append-only record list.
type batchState struct {
	meta    Batch
	records []*Record
}

// NewService creates a ledger service with the provided configuration.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Owner) == 0 {
		return nil, errors.New("owner cannot be empty")
	}
	if cfg.Arithmetic == nil {
		return nil, errors.New("arithmetic capability cannot be nil")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("oracle capability cannot be nil")
	}

	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	providers := make(map[string]bool)
	for _, p := range cfg.Providers {
		providers[p.String()] = true
	}

	return &Service{
		arith:               cfg.Arithmetic,
		oracle:              cfg.Oracle,
		identity:            append([]byte(nil), cfg.Identity...),
		sinks:               cfg.Sinks,
		log:                 log,
		now:                 now,
		owner:               cfg.Owner,
		providers:           providers,
		paused:              false,
		cooldown:            cooldown,
		lastSubmission:      make(map[string]time.Time),
		lastAnalysisRequest: make(map[string]time.Time),
		contexts:            make(map[string]*AnalysisContext),
	}, nil
}

// AddSink registers an additional event sink. Events emitted before the
// sink was added are not replayed.
func (s *Service) AddSink(sink Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// emit publishes an event to every sink. Called with s.mu held, which
// keeps event order identical to operation order.
func (s *Service) emit(event Event) {
	for _, sink := range s.sinks {
		sink.Publish(event)
	}
}

func (s *Service) requireOwner(actor crypto.PublicKey) error {
	if !actor.Equal(s.owner) {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) requireNotPaused() error {
	if s.paused {
		return ErrPaused
	}
	return nil
}

// checkCooldown rejects an action when the actor's previous action of the
// same kind lies inside the cooldown window. It does not record the new
// timestamp; callers do that once all validation has passed.
func (s *Service) checkCooldown(last map[string]time.Time, actor crypto.PublicKey, at time.Time) error {
	if prev, ok := last[actor.String()]; ok && at.Sub(prev) < s.cooldown {
		return ErrCooldownActive
	}
	return nil
}

// TransferOwnership hands the owner role to newOwner. Owner-only.
func (s *Service) TransferOwnership(actor, newOwner crypto.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(actor); err != nil {
		return err
	}
	if len(newOwner) == 0 {
		return errors.New("new owner cannot be empty")
	}

	previous := s.owner
	s.owner = newOwner
	s.emit(OwnershipTransferred{Previous: previous, New: newOwner})
	s.log.Info("ownership transferred", "previous", previous.String(), "new", newOwner.String())
	return nil
}

// AddProvider grants submission rights to p. Owner-only. Re-adding an
// existing provider is a silent no-op: no event.
func (s *Service) AddProvider(actor, p crypto.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(actor); err != nil {
		return err
	}
	if s.providers[p.String()] {
		return nil
	}

	s.providers[p.String()] = true
	s.emit(ProviderAdded{Provider: p})
	s.log.Info("provider added", "provider", p.String())
	return nil
}

// RemoveProvider revokes submission rights from p. Owner-only. Removing a
// non-member is a silent no-op: no event.
func (s *Service) RemoveProvider(actor, p crypto.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(actor); err != nil {
		return err
	}
	if !s.providers[p.String()] {
		return nil
	}

	delete(s.providers, p.String())
	s.emit(ProviderRemoved{Provider: p})
	s.log.Info("provider removed", "provider", p.String())
	return nil
}

// SetPaused toggles the global write gate. Owner-only. Setting the gate to
// its current value is a silent no-op: no event.
func (s *Service) SetPaused(actor crypto.PublicKey, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(actor); err != nil {
		return err
	}
	if s.paused == paused {
		return nil
	}

	s.paused = paused
	s.emit(PauseChanged{Paused: paused})
	s.log.Info("pause gate changed", "paused", paused)
	return nil
}

// SetCooldown changes the shared rate-limit window. Owner-only. Setting the
// current value is a silent no-op, matching the other idempotent setters.
func (s *Service) SetCooldown(actor crypto.PublicKey, cooldown time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(actor); err != nil {
		return err
	}
	if cooldown < 0 {
		return errors.New("cooldown cannot be negative")
	}
	if s.cooldown == cooldown {
		return nil
	}

	s.cooldown = cooldown
	s.emit(CooldownChanged{Cooldown: cooldown})
	s.log.Info("cooldown changed", "cooldown", cooldown)
	return nil
}

// Owner returns the current owner.
func (s *Service) Owner() crypto.PublicKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// IsProvider reports whether p holds provider membership.
func (s *Service) IsProvider(p crypto.PublicKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providers[p.String()]
}

// Paused reports the pause gate state.
func (s *Service) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Cooldown returns the shared rate-limit window.
func (s *Service) Cooldown() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldown
}
