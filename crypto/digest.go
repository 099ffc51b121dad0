package crypto

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Digest is a SHA3-256 summary of serialized ciphertexts.
type Digest [32]byte

// NewDigestFromString parses a hex-encoded digest.
func NewDigestFromString(data string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(data)
	if err != nil {
		return d, err
	}
	copy(d[:], raw)
	return d, nil
}

// String returns the hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Equal compares two digests.
func (d Digest) Equal(other Digest) bool {
	return d == other
}

// FingerprintAggregate digests the canonical bytes of each ciphertext in
// order, length-prefixed, followed by the service identity. Two fingerprints
// match iff the aggregates and the identity are byte-identical, which is
// what makes request/callback tamper detection sound.
func FingerprintAggregate(cts []*Ciphertext, identity []byte) Digest {
	h := sha3.New256()
	for _, ct := range cts {
		raw := ct.Bytes()
		h.Write(binary.BigEndian.AppendUint32(nil, uint32(len(raw))))
		h.Write(raw)
	}
	h.Write(identity)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
