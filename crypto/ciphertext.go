package crypto

import (
	"encoding/binary"
	"errors"
)

// NonceSize is the length in bytes of a pad nonce.
const NonceSize = 16

// Ciphertext is an opaque, additively homomorphic encrypted value.
//
// The payload is the plaintext masked by one PRF pad per nonce, with
// addition carried out in Z_2^64. Adding two ciphertexts adds the payloads
// and concatenates the nonce lists; the holder of the pad key removes all
// pads at decryption time. A Ciphertext with no nonces carries no pad and
// is only valid as the encrypted-zero fold seed.
type Ciphertext struct {
	Payload uint64   `json:"payload"`
	Nonces  [][]byte `json:"nonces"`
}

// PadArithmetic implements the keyless ciphertext operations the ledger
// relies on: homomorphic addition, the encrypted-zero identity, and
// well-formedness checks. It holds no secrets.
type PadArithmetic struct{}

// EncryptedZero returns the additive identity ciphertext.
func (PadArithmetic) EncryptedZero() *Ciphertext {
	return &Ciphertext{Payload: 0, Nonces: nil}
}

// Add homomorphically adds two ciphertexts. The result decrypts to the sum
// of the two plaintexts. Addition is associative and EncryptedZero is its
// identity element.
func (PadArithmetic) Add(a, b *Ciphertext) (*Ciphertext, error) {
	if a == nil || b == nil {
		return nil, errors.New("nil ciphertext")
	}
	if !wellFormed(a) || !wellFormed(b) {
		return nil, errors.New("malformed ciphertext")
	}
	nonces := make([][]byte, 0, len(a.Nonces)+len(b.Nonces))
	for _, n := range a.Nonces {
		nonces = append(nonces, append([]byte(nil), n...))
	}
	for _, n := range b.Nonces {
		nonces = append(nonces, append([]byte(nil), n...))
	}
	return &Ciphertext{Payload: a.Payload + b.Payload, Nonces: nonces}, nil
}

// IsInitialized reports whether ct is a well-formed, externally produced
// ciphertext. The zero value (no nonces) is not initialized: every real
// encryption carries at least one pad.
func (PadArithmetic) IsInitialized(ct *Ciphertext) bool {
	return ct != nil && len(ct.Nonces) > 0 && wellFormed(ct)
}

func wellFormed(ct *Ciphertext) bool {
	for _, n := range ct.Nonces {
		if len(n) != NonceSize {
			return false
		}
	}
	return true
}

// Bytes returns the canonical serialization of the ciphertext: the
// big-endian payload followed by a nonce count and the nonces in order.
// Fingerprints are computed over this form.
func (ct *Ciphertext) Bytes() []byte {
	buf := make([]byte, 0, 12+len(ct.Nonces)*NonceSize)
	buf = binary.BigEndian.AppendUint64(buf, ct.Payload)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(ct.Nonces)))
	for _, n := range ct.Nonces {
		buf = append(buf, n...)
	}
	return buf
}
