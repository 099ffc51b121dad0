package ledger

import (
	"fmt"

	"github.com/serolabs/immunet/crypto"
)

// Aggregate computes the homomorphic sum over batch id's records for each
// of the three fields independently: a deterministic left-to-right fold
// starting from the encrypted zero. The result is re-derived from ledger
// state on every call, never memoized; recomputing from scratch is what
// makes the request/callback tamper detection sound.
//
// Fails with ErrInvalidBatch if the batch is unknown, still open, or has
// no records.
func (s *Service) Aggregate(id uint64) ([FieldCount]*crypto.Ciphertext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregateLocked(id)
}

// aggregateLocked is Aggregate without locking, for use inside the request
// and callback paths. Called with s.mu held.
func (s *Service) aggregateLocked(id uint64) ([FieldCount]*crypto.Ciphertext, error) {
	var sums [FieldCount]*crypto.Ciphertext

	if id == 0 || id > uint64(len(s.batches)) {
		return sums, ErrInvalidBatch
	}
	b := s.batches[id-1]
	if !b.meta.Closed || len(b.records) == 0 {
		return sums, ErrInvalidBatch
	}

	for i := range sums {
		sums[i] = s.arith.EncryptedZero()
	}
	for _, record := range b.records {
		for i, ct := range record.ciphertexts() {
			sum, err := s.arith.Add(sums[i], ct)
			if err != nil {
				return sums, fmt.Errorf("homomorphic add: %w", err)
			}
			sums[i] = sum
		}
	}
	return sums, nil
}

// fingerprintLocked derives the state fingerprint for an aggregate:
// a digest over the canonical ciphertext bytes and the service identity.
// Called with s.mu held.
func (s *Service) fingerprintLocked(sums [FieldCount]*crypto.Ciphertext) crypto.Digest {
	return crypto.FingerprintAggregate(sums[:], s.identity)
}
