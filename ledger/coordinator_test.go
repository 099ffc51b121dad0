package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serolabs/immunet/crypto"
	"github.com/serolabs/immunet/ledger"
	"github.com/serolabs/immunet/testutil"
)

// scriptedOracle issues sequential request ids and accepts any proof equal
// to "proof:<request id>". It gives tests full control over callback
// payloads without running a real decryption.
type scriptedOracle struct {
	mu     sync.Mutex
	nextID int
}

func (o *scriptedOracle) RequestDecryption(_ context.Context, _ []*crypto.Ciphertext) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	return fmt.Sprintf("req-%d", o.nextID), nil
}

func (o *scriptedOracle) VerifySignatures(requestID string, _, proof []byte) bool {
	return string(proof) == "proof:"+requestID
}

func validProof(requestID string) []byte {
	return []byte("proof:" + requestID)
}

// skewArithmetic shifts the encrypted zero by a mutable offset. Flipping
// the offset between request and callback changes the re-derived aggregate
// the way an out-of-band state mutation would, without touching records.
type skewArithmetic struct {
	skew *uint64
}

func (s skewArithmetic) EncryptedZero() *crypto.Ciphertext {
	return &crypto.Ciphertext{Payload: *s.skew}
}

func (s skewArithmetic) Add(a, b *crypto.Ciphertext) (*crypto.Ciphertext, error) {
	return crypto.PadArithmetic{}.Add(a, b)
}

func (s skewArithmetic) IsInitialized(ct *crypto.Ciphertext) bool {
	return crypto.PadArithmetic{}.IsInitialized(ct)
}

// coordinatorFixture wires a service around the scripted oracle with a
// closed, single-record batch ready for analysis.
type coordinatorFixture struct {
	svc     *ledger.Service
	events  *ledger.MemorySink
	clock   *testutil.Clock
	owner   crypto.PublicKey
	batchID uint64
	skew    *uint64
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	owner, _ := testutil.MustKeyPair(t)
	provider, _ := testutil.MustKeyPair(t)
	clock := testutil.NewClock()
	events := ledger.NewMemorySink()
	skew := new(uint64)

	svc, err := ledger.NewService(ledger.Config{
		Owner:      owner,
		Arithmetic: skewArithmetic{skew: skew},
		Oracle:     &scriptedOracle{},
		Identity:   []byte("coordinator-test"),
		Providers:  []crypto.PublicKey{provider},
		Cooldown:   time.Second,
		Sinks:      []ledger.Sink{events},
		Now:        clock.Now,
	})
	require.NoError(t, err)

	padKey, err := crypto.GeneratePadKey()
	require.NoError(t, err)
	cipher, err := crypto.NewPadCipher(padKey)
	require.NoError(t, err)

	batchID, err := svc.OpenBatch(owner)
	require.NoError(t, err)
	a, err := cipher.Encrypt(1)
	require.NoError(t, err)
	b, err := cipher.Encrypt(2)
	require.NoError(t, err)
	c, err := cipher.Encrypt(3)
	require.NoError(t, err)
	_, err = svc.SubmitRecord(provider, &ledger.Record{
		AntigenAffinity:    a,
		AntibodyCount:      b,
		TCellEffectiveness: c,
	})
	require.NoError(t, err)
	require.NoError(t, svc.CloseBatch(owner, batchID))

	return &coordinatorFixture{
		svc:     svc,
		events:  events,
		clock:   clock,
		owner:   owner,
		batchID: batchID,
		skew:    skew,
	}
}

func (f *coordinatorFixture) request(t *testing.T) string {
	t.Helper()
	f.clock.Advance(time.Minute)
	requestID, err := f.svc.RequestBatchAnalysis(context.Background(), f.owner, f.batchID)
	require.NoError(t, err)
	return requestID
}

func TestRequestBatchAnalysisValidation(t *testing.T) {
	f := testutil.NewFixture(t, time.Second)
	ctx := context.Background()
	stranger, _ := testutil.MustKeyPair(t)
	provider, _ := f.AddProvider(t)

	// Open, non-empty batch: not analyzable until closed.
	id, err := f.Service.OpenBatch(f.Owner)
	require.NoError(t, err)
	_, err = f.Service.SubmitRecord(provider, f.EncryptRecord(t, 1, 1, 1))
	require.NoError(t, err)
	_, err = f.Service.RequestBatchAnalysis(ctx, f.Owner, id)
	require.ErrorIs(t, err, ledger.ErrInvalidBatch)

	// Closed empty batch.
	empty, err := f.Service.OpenBatch(f.Owner)
	require.NoError(t, err)
	require.NoError(t, f.Service.CloseBatch(f.Owner, empty))
	_, err = f.Service.RequestBatchAnalysis(ctx, f.Owner, empty)
	require.ErrorIs(t, err, ledger.ErrInvalidBatch)

	// Owner-only.
	require.NoError(t, f.Service.CloseBatch(f.Owner, id))
	_, err = f.Service.RequestBatchAnalysis(ctx, stranger, id)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	// Pause gate.
	require.NoError(t, f.Service.SetPaused(f.Owner, true))
	_, err = f.Service.RequestBatchAnalysis(ctx, f.Owner, id)
	require.ErrorIs(t, err, ledger.ErrPaused)
	require.NoError(t, f.Service.SetPaused(f.Owner, false))

	// No events were emitted for any rejected request.
	assert.Empty(t, f.Events.OfKind(ledger.EventAnalysisRequested))
}

func TestRequestCooldown(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestBatchAnalysis(ctx, f.owner, f.batchID)
	require.NoError(t, err)

	// Second request inside the window fails; the batch is frozen so a
	// re-request is otherwise permitted.
	_, err = f.svc.RequestBatchAnalysis(ctx, f.owner, f.batchID)
	require.ErrorIs(t, err, ledger.ErrCooldownActive)

	f.clock.Advance(time.Minute)
	_, err = f.svc.RequestBatchAnalysis(ctx, f.owner, f.batchID)
	require.NoError(t, err)
}

func TestCallbackCompletesOnceAndRejectsReplay(t *testing.T) {
	f := newCoordinatorFixture(t)
	requestID := f.request(t)

	cleartexts := ledger.EncodeCleartexts(ledger.Results{
		AntigenAffinity:    1,
		AntibodyCount:      2,
		TCellEffectiveness: 3,
	})
	results, err := f.svc.OnDecrypted(requestID, cleartexts, validProof(requestID))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), results.AntigenAffinity)
	assert.Equal(t, uint64(2), results.AntibodyCount)
	assert.Equal(t, uint64(3), results.TCellEffectiveness)

	status, err := f.svc.AnalysisStatus(requestID)
	require.NoError(t, err)
	assert.True(t, status.Processed)
	require.NotNil(t, status.Results)

	// Replaying the same request id fails and leaves stored results
	// unchanged, even with a different payload.
	altered := ledger.EncodeCleartexts(ledger.Results{AntigenAffinity: 99})
	_, err = f.svc.OnDecrypted(requestID, altered, validProof(requestID))
	require.ErrorIs(t, err, ledger.ErrReplayAttempt)

	status, err = f.svc.AnalysisStatus(requestID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), status.Results.AntigenAffinity)

	assert.Len(t, f.events.OfKind(ledger.EventAnalysisCompleted), 1)
}

func TestCallbackUnknownRequest(t *testing.T) {
	f := newCoordinatorFixture(t)

	_, err := f.svc.OnDecrypted("never-issued", nil, nil)
	require.ErrorIs(t, err, ledger.ErrUnknownRequest)
}

func TestCallbackStateMismatchLeavesContextPending(t *testing.T) {
	f := newCoordinatorFixture(t)
	requestID := f.request(t)
	cleartexts := ledger.EncodeCleartexts(ledger.Results{AntigenAffinity: 1})

	// Shift the re-derived aggregate after the request was issued.
	*f.skew = 7
	_, err := f.svc.OnDecrypted(requestID, cleartexts, validProof(requestID))
	require.ErrorIs(t, err, ledger.ErrStateMismatch)

	status, err := f.svc.AnalysisStatus(requestID)
	require.NoError(t, err)
	assert.False(t, status.Processed)

	// Once the state matches again, a corrected callback completes.
	*f.skew = 0
	_, err = f.svc.OnDecrypted(requestID, cleartexts, validProof(requestID))
	require.NoError(t, err)
}

func TestCallbackInvalidProofLeavesContextPending(t *testing.T) {
	f := newCoordinatorFixture(t)
	requestID := f.request(t)
	cleartexts := ledger.EncodeCleartexts(ledger.Results{AntigenAffinity: 1})

	_, err := f.svc.OnDecrypted(requestID, cleartexts, []byte("forged"))
	require.ErrorIs(t, err, ledger.ErrInvalidProof)

	status, err := f.svc.AnalysisStatus(requestID)
	require.NoError(t, err)
	assert.False(t, status.Processed)

	_, err = f.svc.OnDecrypted(requestID, cleartexts, validProof(requestID))
	require.NoError(t, err)
}

func TestCallbackMalformedCleartexts(t *testing.T) {
	f := newCoordinatorFixture(t)
	requestID := f.request(t)

	// Proof is valid but the payload is not three fixed-width results.
	short := make([]byte, 23)
	_, err := f.svc.OnDecrypted(requestID, short, validProof(requestID))
	require.ErrorIs(t, err, ledger.ErrMalformedCleartexts)

	status, err := f.svc.AnalysisStatus(requestID)
	require.NoError(t, err)
	assert.False(t, status.Processed)
}

func TestCallbackValidationOrder(t *testing.T) {
	f := newCoordinatorFixture(t)
	requestID := f.request(t)
	cleartexts := ledger.EncodeCleartexts(ledger.Results{AntigenAffinity: 1})

	// Integrity is checked before authenticity: with both a state mismatch
	// and a forged proof, the mismatch wins.
	*f.skew = 7
	_, err := f.svc.OnDecrypted(requestID, cleartexts, []byte("forged"))
	require.ErrorIs(t, err, ledger.ErrStateMismatch)
	*f.skew = 0

	// Replay is checked before everything: after completion, a replay with
	// a skewed state and a forged proof still reports replay.
	_, err = f.svc.OnDecrypted(requestID, cleartexts, validProof(requestID))
	require.NoError(t, err)
	*f.skew = 7
	_, err = f.svc.OnDecrypted(requestID, cleartexts, []byte("forged"))
	require.ErrorIs(t, err, ledger.ErrReplayAttempt)
}

func TestReRequestOnClosedBatch(t *testing.T) {
	f := newCoordinatorFixture(t)

	first := f.request(t)
	second := f.request(t)
	require.NotEqual(t, first, second)

	cleartexts := ledger.EncodeCleartexts(ledger.Results{AntigenAffinity: 1})

	// Contexts are independent: completing one does not complete the other.
	_, err := f.svc.OnDecrypted(first, cleartexts, validProof(first))
	require.NoError(t, err)

	status, err := f.svc.AnalysisStatus(second)
	require.NoError(t, err)
	assert.False(t, status.Processed)

	_, err = f.svc.OnDecrypted(second, cleartexts, validProof(second))
	require.NoError(t, err)
}

func TestEndToEndDecryptionRoundTrip(t *testing.T) {
	f := testutil.NewFixture(t, time.Millisecond)
	provider, _ := f.AddProvider(t)

	// Open batch 1 and submit records with known plaintexts.
	id, err := f.Service.OpenBatch(f.Owner)
	require.NoError(t, err)
	inputs := [][3]uint64{{5, 50, 500}, {6, 60, 600}}
	for _, in := range inputs {
		f.Clock.Advance(time.Second)
		_, err := f.Service.SubmitRecord(provider, f.EncryptRecord(t, in[0], in[1], in[2]))
		require.NoError(t, err)
	}
	require.NoError(t, f.Service.CloseBatch(f.Owner, id))

	// Request analysis and deliver the oracle callback.
	requestID, err := f.Service.RequestBatchAnalysis(context.Background(), f.Owner, id)
	require.NoError(t, err)
	require.Equal(t, 1, f.Oracle.DeliverPending())

	status, err := f.Service.AnalysisStatus(requestID)
	require.NoError(t, err)
	require.True(t, status.Processed)
	require.NotNil(t, status.Results)
	assert.Equal(t, uint64(11), status.Results.AntigenAffinity)
	assert.Equal(t, uint64(110), status.Results.AntibodyCount)
	assert.Equal(t, uint64(1100), status.Results.TCellEffectiveness)

	completed := f.Events.OfKind(ledger.EventAnalysisCompleted)
	require.Len(t, completed, 1)
	event := completed[0].(ledger.AnalysisCompleted)
	assert.Equal(t, requestID, event.RequestID)
	assert.Equal(t, id, event.BatchID)
	assert.Equal(t, uint64(11), event.Results.AntigenAffinity)

	// Replaying the delivered callback fails.
	_, err = f.Service.OnDecrypted(requestID, ledger.EncodeCleartexts(*status.Results), nil)
	require.ErrorIs(t, err, ledger.ErrReplayAttempt)
}
