package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCipher(t *testing.T) *PadCipher {
	t.Helper()
	key, err := GeneratePadKey()
	require.NoError(t, err)
	cipher, err := NewPadCipher(key)
	require.NoError(t, err)
	return cipher
}

func TestPadCipherRoundtrip(t *testing.T) {
	cipher := newCipher(t)

	for _, value := range []uint64{0, 1, 42, 1<<63 + 7} {
		ct, err := cipher.Encrypt(value)
		require.NoError(t, err)

		got, err := cipher.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, value, got)
	}
}

func TestHomomorphicAdd(t *testing.T) {
	cipher := newCipher(t)
	arith := PadArithmetic{}

	a, err := cipher.Encrypt(100)
	require.NoError(t, err)
	b, err := cipher.Encrypt(23)
	require.NoError(t, err)

	sum, err := arith.Add(a, b)
	require.NoError(t, err)

	got, err := cipher.Decrypt(sum)
	require.NoError(t, err)
	require.Equal(t, uint64(123), got)

	// Encrypted zero is the identity element.
	withZero, err := arith.Add(sum, arith.EncryptedZero())
	require.NoError(t, err)
	got, err = cipher.Decrypt(withZero)
	require.NoError(t, err)
	require.Equal(t, uint64(123), got)

	// Addition is associative.
	c, err := cipher.Encrypt(7)
	require.NoError(t, err)
	left, err := arith.Add(sum, c)
	require.NoError(t, err)
	bc, err := arith.Add(b, c)
	require.NoError(t, err)
	right, err := arith.Add(a, bc)
	require.NoError(t, err)

	lv, err := cipher.Decrypt(left)
	require.NoError(t, err)
	rv, err := cipher.Decrypt(right)
	require.NoError(t, err)
	require.Equal(t, lv, rv)
}

func TestAddDoesNotAliasInputs(t *testing.T) {
	cipher := newCipher(t)
	arith := PadArithmetic{}

	a, err := cipher.Encrypt(5)
	require.NoError(t, err)
	b, err := cipher.Encrypt(6)
	require.NoError(t, err)

	sum, err := arith.Add(a, b)
	require.NoError(t, err)

	// Mutating the sum's nonces must not corrupt the inputs.
	sum.Nonces[0][0] ^= 0xff
	got, err := cipher.Decrypt(a)
	require.NoError(t, err)
	require.Equal(t, uint64(5), got)
}

func TestIsInitialized(t *testing.T) {
	cipher := newCipher(t)
	arith := PadArithmetic{}

	ct, err := cipher.Encrypt(9)
	require.NoError(t, err)
	assert.True(t, arith.IsInitialized(ct))

	assert.False(t, arith.IsInitialized(nil))
	assert.False(t, arith.IsInitialized(&Ciphertext{}))
	assert.False(t, arith.IsInitialized(arith.EncryptedZero()))
	assert.False(t, arith.IsInitialized(&Ciphertext{Payload: 1, Nonces: [][]byte{{1, 2, 3}}}))
}

func TestFingerprintAggregate(t *testing.T) {
	cipher := newCipher(t)

	a, err := cipher.Encrypt(1)
	require.NoError(t, err)
	b, err := cipher.Encrypt(2)
	require.NoError(t, err)

	identity := []byte("service-a")
	fp := FingerprintAggregate([]*Ciphertext{a, b}, identity)

	// Deterministic over identical inputs.
	require.Equal(t, fp, FingerprintAggregate([]*Ciphertext{a, b}, identity))

	// Sensitive to ciphertext order, content, and identity.
	assert.NotEqual(t, fp, FingerprintAggregate([]*Ciphertext{b, a}, identity))
	assert.NotEqual(t, fp, FingerprintAggregate([]*Ciphertext{a, b}, []byte("service-b")))

	tampered := &Ciphertext{Payload: a.Payload + 1, Nonces: a.Nonces}
	assert.NotEqual(t, fp, FingerprintAggregate([]*Ciphertext{tampered, b}, identity))
}

func TestSignatureRoundtrip(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	message := []byte("callback payload")
	sig, err := Sign(priv, message)
	require.NoError(t, err)

	assert.True(t, sig.Verify(pub, message))
	assert.False(t, sig.Verify(pub, []byte("other payload")))

	otherPub, _, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.False(t, sig.Verify(otherPub, message))
}
