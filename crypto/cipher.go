package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/sha3"
)

// PadKeySize is the length in bytes of a PadCipher key.
const PadKeySize = 32

// PadCipher produces and opens pad-masked ciphertexts. Only the decryption
// oracle holds a PadCipher; the ledger operates on ciphertexts keylessly
// through PadArithmetic.
type PadCipher struct {
	key []byte
}

// NewPadCipher creates a cipher from a 32-byte key.
func NewPadCipher(key []byte) (*PadCipher, error) {
	if len(key) != PadKeySize {
		return nil, errors.New("pad key must be 32 bytes")
	}
	c := &PadCipher{key: make([]byte, PadKeySize)}
	copy(c.key, key)
	return c, nil
}

// GeneratePadKey returns a fresh random pad key.
func GeneratePadKey() ([]byte, error) {
	key := make([]byte, PadKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt masks value with a freshly derived pad.
func (c *PadCipher) Encrypt(value uint64) (*Ciphertext, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &Ciphertext{
		Payload: value + c.pad(nonce),
		Nonces:  [][]byte{nonce},
	}, nil
}

// Decrypt removes every pad named by the ciphertext's nonces and returns
// the plaintext sum.
func (c *PadCipher) Decrypt(ct *Ciphertext) (uint64, error) {
	if ct == nil || !wellFormed(ct) {
		return 0, errors.New("malformed ciphertext")
	}
	value := ct.Payload
	for _, nonce := range ct.Nonces {
		value -= c.pad(nonce)
	}
	return value, nil
}

// pad derives the PRF pad for a nonce: the leading 8 bytes of
// SHA3-256(key || nonce) as a big-endian integer.
func (c *PadCipher) pad(nonce []byte) uint64 {
	h := sha3.New256()
	h.Write(c.key)
	h.Write(nonce)
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}
