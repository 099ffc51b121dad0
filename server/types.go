package server

import (
	"github.com/serolabs/immunet/ledger"
)

// TransferOwnershipRequest hands the owner role to another key.
type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"` // hex public key
}

// ProviderRequest adds or removes a provider membership.
type ProviderRequest struct {
	Provider string `json:"provider"` // hex public key
}

// PauseRequest sets the global write gate.
type PauseRequest struct {
	Paused bool `json:"paused"`
}

// CooldownRequest sets the shared rate-limit window in seconds.
type CooldownRequest struct {
	CooldownSeconds uint64 `json:"cooldown_seconds"`
}

// OpenBatchRequest opens the next batch. It carries no fields; the
// envelope's signer is the acting identity.
type OpenBatchRequest struct{}

// CloseBatchRequest freezes a batch.
type CloseBatchRequest struct {
	BatchID uint64 `json:"batch_id"`
}

// SubmitRecordRequest appends one encrypted record to the current batch.
type SubmitRecordRequest struct {
	Record *ledger.Record `json:"record"`
}

// AnalysisRequest dispatches a decryption round-trip for a closed batch.
type AnalysisRequest struct {
	BatchID uint64 `json:"batch_id"`
}

// DecryptionCallback is the oracle's inbound result delivery. It is
// authenticated by its proof, not by a Signed envelope.
type DecryptionCallback struct {
	RequestID  string `json:"request_id"`
	Cleartexts []byte `json:"cleartexts"`
	Proof      []byte `json:"proof"`
}

// BatchResponse returns batch metadata.
type BatchResponse struct {
	Batch ledger.Batch `json:"batch"`
}

// OpenBatchResponse returns the id of a freshly opened batch.
type OpenBatchResponse struct {
	BatchID uint64 `json:"batch_id"`
}

// SubmitRecordResponse returns the batch a record landed in.
type SubmitRecordResponse struct {
	BatchID uint64 `json:"batch_id"`
}

// AnalysisResponse returns the request id of a dispatched analysis.
type AnalysisResponse struct {
	RequestID string `json:"request_id"`
}

// CallbackResponse returns the decrypted results of an accepted callback.
type CallbackResponse struct {
	Results ledger.Results `json:"results"`
}

// StatusResponse is the service-level read surface.
type StatusResponse struct {
	Owner           string   `json:"owner"`
	Paused          bool     `json:"paused"`
	CooldownSeconds uint64   `json:"cooldown_seconds"`
	PendingRequests []string `json:"pending_requests,omitempty"`
}

// ProviderResponse reports one key's provider membership.
type ProviderResponse struct {
	Provider string `json:"provider"`
	Member   bool   `json:"member"`
}

// RecordsResponse returns a batch's record list.
type RecordsResponse struct {
	BatchID uint64           `json:"batch_id"`
	Records []*ledger.Record `json:"records"`
}

// ErrorResponse carries a ledger condition code alongside the message.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
