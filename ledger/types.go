package ledger

import (
	"context"

	"github.com/serolabs/immunet/crypto"
)

// FieldCount is the number of encrypted fields in every record. The field
// order is fixed and matched by the oracle's cleartext encoding.
const FieldCount = 3

// Record is one provider submission: three independently encrypted
// immune-telemetry measurements. Records are immutable once appended.
type Record struct {
	AntigenAffinity    *crypto.Ciphertext `json:"antigen_affinity"`
	AntibodyCount      *crypto.Ciphertext `json:"antibody_count"`
	TCellEffectiveness *crypto.Ciphertext `json:"t_cell_effectiveness"`
}

// ciphertexts returns the record's fields in canonical order.
func (r *Record) ciphertexts() [FieldCount]*crypto.Ciphertext {
	return [FieldCount]*crypto.Ciphertext{r.AntigenAffinity, r.AntibodyCount, r.TCellEffectiveness}
}

// Results holds the decrypted aggregate for one completed analysis, in the
// same canonical field order as Record.
type Results struct {
	AntigenAffinity    uint64 `json:"antigen_affinity"`
	AntibodyCount      uint64 `json:"antibody_count"`
	TCellEffectiveness uint64 `json:"t_cell_effectiveness"`
}

// Batch is the metadata of one numbered record collection. Ids start at 1
// and increase strictly; the highest id is the current batch. A closed
// batch never accepts writes again and is never deleted.
type Batch struct {
	ID          uint64 `json:"id"`
	RecordCount uint64 `json:"record_count"`
	Closed      bool   `json:"closed"`
}

// AnalysisContext is the pending/completed state of one decryption
// round-trip, keyed by the oracle-issued request id. It transitions
// Processed false→true exactly once; a failed callback attempt leaves it
// pending and re-attemptable.
type AnalysisContext struct {
	RequestID   string        `json:"request_id"`
	BatchID     uint64        `json:"batch_id"`
	Fingerprint crypto.Digest `json:"fingerprint"`
	Processed   bool          `json:"processed"`
	Results     *Results      `json:"results,omitempty"`
}

// Arithmetic is the external homomorphic-encryption capability the ledger
// consumes. Add must be associative with EncryptedZero as identity;
// IsInitialized rejects malformed ciphertexts before they enter the ledger.
type Arithmetic interface {
	EncryptedZero() *crypto.Ciphertext
	Add(a, b *crypto.Ciphertext) (*crypto.Ciphertext, error)
	IsInitialized(ct *crypto.Ciphertext) bool
}

// Oracle is the external decryption capability. RequestDecryption is an
// asynchronous dispatch: it returns a fresh request id immediately and the
// result arrives later through Service.OnDecrypted. VerifySignatures checks
// the authenticity proof accompanying a callback.
//
// RequestDecryption is invoked under the ledger's serialization point and
// must not block on the decryption itself.
type Oracle interface {
	RequestDecryption(ctx context.Context, cts []*crypto.Ciphertext) (string, error)
	VerifySignatures(requestID string, cleartexts, proof []byte) bool
}
