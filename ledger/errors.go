package ledger

import "errors"

// Ledger failures are distinct named conditions, never generic errors.
// ErrReplayAttempt, ErrStateMismatch and ErrInvalidProof are security
// critical: callers and auditors need to distinguish "already done" from
// "tampered" from "forged". None are retried internally.
var (
	// ErrUnauthorized is returned when the calling actor lacks the role an
	// operation requires.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPaused is returned when a write operation arrives while the
	// service is paused.
	ErrPaused = errors.New("service is paused")

	// ErrCooldownActive is returned when an actor repeats a rate-limited
	// action inside its cooldown window.
	ErrCooldownActive = errors.New("cooldown active")

	// ErrInvalidBatch is returned for batch ids that are zero, unknown,
	// or in the wrong lifecycle state for the operation.
	ErrInvalidBatch = errors.New("invalid batch id")

	// ErrBatchClosed is returned when a submission targets the current
	// batch but it is closed or no batch has been opened yet.
	ErrBatchClosed = errors.New("batch closed or invalid")

	// ErrNotInitialized is returned when a submitted record carries a
	// malformed or uninitialized ciphertext.
	ErrNotInitialized = errors.New("ciphertext not initialized")

	// ErrReplayAttempt is returned when a callback arrives for a request
	// that has already completed.
	ErrReplayAttempt = errors.New("replay attempt")

	// ErrStateMismatch is returned when the re-derived aggregate
	// fingerprint differs from the one stored at request time.
	ErrStateMismatch = errors.New("state fingerprint mismatch")

	// ErrInvalidProof is returned when the oracle's authenticity proof
	// does not verify.
	ErrInvalidProof = errors.New("invalid decryption proof")

	// ErrUnknownRequest is returned for callbacks whose request id was
	// never issued by this service.
	ErrUnknownRequest = errors.New("unknown request id")

	// ErrMalformedCleartexts is returned when the callback payload does
	// not decode to exactly three fixed-width results.
	ErrMalformedCleartexts = errors.New("malformed cleartexts")
)

// ErrorCode returns the stable wire code for a ledger error, or "internal"
// for anything else. HTTP handlers embed these codes in error payloads so
// monitors can distinguish conditions without parsing messages.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrCooldownActive):
		return "cooldown_active"
	case errors.Is(err, ErrInvalidBatch):
		return "invalid_batch_id"
	case errors.Is(err, ErrBatchClosed):
		return "batch_closed_or_invalid"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrReplayAttempt):
		return "replay_attempt"
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrInvalidProof):
		return "invalid_proof"
	case errors.Is(err, ErrUnknownRequest):
		return "unknown_request"
	case errors.Is(err, ErrMalformedCleartexts):
		return "malformed_cleartexts"
	default:
		return "internal"
	}
}
