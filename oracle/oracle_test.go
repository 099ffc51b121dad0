package oracle_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serolabs/immunet/crypto"
	"github.com/serolabs/immunet/oracle"
	"github.com/serolabs/immunet/testutil"
)

type capturedCallback struct {
	requestID  string
	cleartexts []byte
	proof      []byte
}

func newTestOracle(t *testing.T) (*oracle.LocalOracle, *crypto.PadCipher) {
	t.Helper()
	padKey, err := crypto.GeneratePadKey()
	require.NoError(t, err)
	cipher, err := crypto.NewPadCipher(padKey)
	require.NoError(t, err)
	_, signingKey := testutil.MustKeyPair(t)
	orc, err := oracle.NewLocalOracle(cipher, signingKey, nil)
	require.NoError(t, err)
	return orc, cipher
}

func TestDeliverPendingDecryptsAndProves(t *testing.T) {
	orc, cipher := newTestOracle(t)

	var got []capturedCallback
	orc.Attach(oracle.TargetFunc(func(requestID string, cleartexts, proof []byte) error {
		got = append(got, capturedCallback{requestID, cleartexts, proof})
		return nil
	}))

	a, err := cipher.Encrypt(7)
	require.NoError(t, err)
	b, err := cipher.Encrypt(9)
	require.NoError(t, err)

	requestID, err := orc.RequestDecryption(context.Background(), []*crypto.Ciphertext{a, b})
	require.NoError(t, err)
	require.NotEmpty(t, requestID)

	require.Equal(t, 1, orc.DeliverPending())
	require.Len(t, got, 1)
	assert.Equal(t, requestID, got[0].requestID)

	require.Len(t, got[0].cleartexts, 16)
	assert.Equal(t, uint64(7), binary.BigEndian.Uint64(got[0].cleartexts[0:8]))
	assert.Equal(t, uint64(9), binary.BigEndian.Uint64(got[0].cleartexts[8:16]))

	assert.True(t, orc.VerifySignatures(requestID, got[0].cleartexts, got[0].proof))

	// The queue is now drained.
	assert.Equal(t, 0, orc.DeliverPending())
}

func TestVerifySignaturesRejectsForgeries(t *testing.T) {
	orc, cipher := newTestOracle(t)

	var got capturedCallback
	orc.Attach(oracle.TargetFunc(func(requestID string, cleartexts, proof []byte) error {
		got = capturedCallback{requestID, cleartexts, proof}
		return nil
	}))

	ct, err := cipher.Encrypt(42)
	require.NoError(t, err)
	requestID, err := orc.RequestDecryption(context.Background(), []*crypto.Ciphertext{ct})
	require.NoError(t, err)
	require.Equal(t, 1, orc.DeliverPending())

	// Arbitrary bytes are not a proof.
	assert.False(t, orc.VerifySignatures(requestID, got.cleartexts, []byte("forged")))

	// Tampered cleartexts break the proof.
	tampered := append([]byte(nil), got.cleartexts...)
	tampered[0] ^= 0x01
	assert.False(t, orc.VerifySignatures(requestID, tampered, got.proof))

	// A proof is bound to its request id and cannot be replayed under
	// another one.
	assert.False(t, orc.VerifySignatures("other-request", got.cleartexts, got.proof))

	// A proof signed by a different key does not verify.
	other, _ := newTestOracle(t)
	assert.False(t, other.VerifySignatures(requestID, got.cleartexts, got.proof))
}

func TestRequestDecryptionCopiesCiphertexts(t *testing.T) {
	orc, cipher := newTestOracle(t)

	var got capturedCallback
	orc.Attach(oracle.TargetFunc(func(requestID string, cleartexts, proof []byte) error {
		got = capturedCallback{requestID, cleartexts, proof}
		return nil
	}))

	ct, err := cipher.Encrypt(5)
	require.NoError(t, err)
	_, err = orc.RequestDecryption(context.Background(), []*crypto.Ciphertext{ct})
	require.NoError(t, err)

	// Mutating the caller's ciphertext after dispatch must not affect the
	// queued copy.
	ct.Payload = 0
	ct.Nonces[0][0] ^= 0xff

	require.Equal(t, 1, orc.DeliverPending())
	assert.Equal(t, uint64(5), binary.BigEndian.Uint64(got.cleartexts))
}

func TestRequestDecryptionRejectsNilCiphertext(t *testing.T) {
	orc, _ := newTestOracle(t)
	_, err := orc.RequestDecryption(context.Background(), []*crypto.Ciphertext{nil})
	require.Error(t, err)
}

func TestDeliverWithoutTargetDropsJob(t *testing.T) {
	orc, cipher := newTestOracle(t)

	ct, err := cipher.Encrypt(1)
	require.NoError(t, err)
	_, err = orc.RequestDecryption(context.Background(), []*crypto.Ciphertext{ct})
	require.NoError(t, err)

	// No target attached: the job is consumed, not retried.
	assert.Equal(t, 1, orc.DeliverPending())

	delivered := false
	orc.Attach(oracle.TargetFunc(func(string, []byte, []byte) error {
		delivered = true
		return nil
	}))
	assert.Equal(t, 0, orc.DeliverPending())
	assert.False(t, delivered)
}
