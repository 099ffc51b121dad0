package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/serolabs/immunet/crypto"
	"github.com/serolabs/immunet/ledger"
	"github.com/serolabs/immunet/oracle"
)

// MustKeyPair generates a key pair or fails the test.
func MustKeyPair(t *testing.T) (crypto.PublicKey, crypto.PrivateKey) {
	t.Helper()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return pub, priv
}

// Clock is a controllable time source for cooldown tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Fixture is a fully wired ledger service with an in-process oracle,
// controllable clock, and event capture.
type Fixture struct {
	Service  *ledger.Service
	Oracle   *oracle.LocalOracle
	Cipher   *crypto.PadCipher
	Clock    *Clock
	Events   *ledger.MemorySink
	Owner    crypto.PublicKey
	OwnerKey crypto.PrivateKey
}

// NewFixture builds a service with one owner, the given cooldown, and an
// attached local oracle. Callbacks are delivered on demand through
// Fixture.Oracle.DeliverPending.
func NewFixture(t *testing.T, cooldown time.Duration) *Fixture {
	t.Helper()

	ownerPub, ownerPriv := MustKeyPair(t)
	_, oraclePriv := MustKeyPair(t)

	padKey, err := crypto.GeneratePadKey()
	require.NoError(t, err)
	cipher, err := crypto.NewPadCipher(padKey)
	require.NoError(t, err)

	orc, err := oracle.NewLocalOracle(cipher, oraclePriv, nil)
	require.NoError(t, err)

	clock := NewClock()
	events := ledger.NewMemorySink()

	svc, err := ledger.NewService(ledger.Config{
		Owner:      ownerPub,
		Arithmetic: crypto.PadArithmetic{},
		Oracle:     orc,
		Identity:   []byte("immunet-test"),
		Cooldown:   cooldown,
		Sinks:      []ledger.Sink{events},
		Now:        clock.Now,
	})
	require.NoError(t, err)

	orc.Attach(oracle.TargetFunc(func(requestID string, cleartexts, proof []byte) error {
		_, err := svc.OnDecrypted(requestID, cleartexts, proof)
		return err
	}))

	return &Fixture{
		Service:  svc,
		Oracle:   orc,
		Cipher:   cipher,
		Clock:    clock,
		Events:   events,
		Owner:    ownerPub,
		OwnerKey: ownerPriv,
	}
}

// AddProvider registers a fresh provider key pair with the service.
func (f *Fixture) AddProvider(t *testing.T) (crypto.PublicKey, crypto.PrivateKey) {
	t.Helper()
	pub, priv := MustKeyPair(t)
	require.NoError(t, f.Service.AddProvider(f.Owner, pub))
	return pub, priv
}

// EncryptRecord builds a record from three plaintext measurements.
func (f *Fixture) EncryptRecord(t *testing.T, affinity, antibodies, effectiveness uint64) *ledger.Record {
	t.Helper()
	a, err := f.Cipher.Encrypt(affinity)
	require.NoError(t, err)
	b, err := f.Cipher.Encrypt(antibodies)
	require.NoError(t, err)
	c, err := f.Cipher.Encrypt(effectiveness)
	require.NoError(t, err)
	return &ledger.Record{AntigenAffinity: a, AntibodyCount: b, TCellEffectiveness: c}
}
