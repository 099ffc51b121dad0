package ledger

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/serolabs/immunet/crypto"
)

// cleartextSize is the callback payload length: three big-endian uint64
// results in canonical field order.
const cleartextSize = FieldCount * 8

// EncodeCleartexts serializes decrypted results into the fixed-width wire
// form the callback expects. Used by oracle implementations.
func EncodeCleartexts(r Results) []byte {
	buf := make([]byte, 0, cleartextSize)
	buf = binary.BigEndian.AppendUint64(buf, r.AntigenAffinity)
	buf = binary.BigEndian.AppendUint64(buf, r.AntibodyCount)
	buf = binary.BigEndian.AppendUint64(buf, r.TCellEffectiveness)
	return buf
}

// DecodeCleartexts parses exactly three fixed-width numeric results in
// canonical field order.
func DecodeCleartexts(cleartexts []byte) (Results, error) {
	if len(cleartexts) != cleartextSize {
		return Results{}, ErrMalformedCleartexts
	}
	return Results{
		AntigenAffinity:    binary.BigEndian.Uint64(cleartexts[0:8]),
		AntibodyCount:      binary.BigEndian.Uint64(cleartexts[8:16]),
		TCellEffectiveness: binary.BigEndian.Uint64(cleartexts[16:24]),
	}, nil
}

// RequestBatchAnalysis aggregates a closed, non-empty batch, snapshots the
// state fingerprint, and dispatches a decryption request to the oracle.
// Owner-only, rejected while paused, cooldown-gated. Returns the oracle's
// request id, which keys the pending context until the callback arrives.
//
// The call returns immediately after dispatch; there is no cancellation
// for a pending request. A stuck request never completes and may be
// superseded by a fresh request with a new id.
func (s *Service) RequestBatchAnalysis(ctx context.Context, actor crypto.PublicKey, batchID uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(actor); err != nil {
		return "", err
	}
	if err := s.requireNotPaused(); err != nil {
		return "", err
	}
	at := s.now()
	if err := s.checkCooldown(s.lastAnalysisRequest, actor, at); err != nil {
		return "", err
	}

	sums, err := s.aggregateLocked(batchID)
	if err != nil {
		return "", err
	}
	fingerprint := s.fingerprintLocked(sums)

	requestID, err := s.oracle.RequestDecryption(ctx, sums[:])
	if err != nil {
		return "", fmt.Errorf("decryption dispatch: %w", err)
	}
	if _, exists := s.contexts[requestID]; exists {
		return "", fmt.Errorf("oracle reused request id %q", requestID)
	}

	s.lastAnalysisRequest[actor.String()] = at
	s.contexts[requestID] = &AnalysisContext{
		RequestID:   requestID,
		BatchID:     batchID,
		Fingerprint: fingerprint,
	}
	s.emit(AnalysisRequested{RequestID: requestID, BatchID: batchID, Fingerprint: fingerprint})
	s.log.Info("analysis requested",
		"request", requestID, "batch", batchID, "fingerprint", fingerprint.String())
	return requestID, nil
}

// OnDecrypted is the oracle callback. It validates in a fixed order —
// replay first, then integrity, then authenticity, cheap checks before
// expensive verification:
//
//  1. ErrUnknownRequest if the request id was never issued.
//  2. ErrReplayAttempt if the request already completed.
//  3. ErrStateMismatch if the fingerprint re-derived from current ledger
//     state differs from the one stored at request time.
//  4. ErrInvalidProof if the authenticity proof does not verify.
//  5. ErrMalformedCleartexts if the payload is not three fixed-width
//     results.
//
// A failed attempt mutates nothing: the context stays pending and a
// corrected callback may still complete it. On success the context
// transitions to processed exactly once and the decrypted results are
// stored and announced.
func (s *Service) OnDecrypted(requestID string, cleartexts, proof []byte) (Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.contexts[requestID]
	if !ok {
		return Results{}, ErrUnknownRequest
	}
	if pending.Processed {
		return Results{}, ErrReplayAttempt
	}

	sums, err := s.aggregateLocked(pending.BatchID)
	if err != nil {
		// The batch no longer aggregates to anything comparable; treat as
		// state drift between request and response.
		return Results{}, ErrStateMismatch
	}
	if !s.fingerprintLocked(sums).Equal(pending.Fingerprint) {
		return Results{}, ErrStateMismatch
	}
	if !s.oracle.VerifySignatures(requestID, cleartexts, proof) {
		return Results{}, ErrInvalidProof
	}
	results, err := DecodeCleartexts(cleartexts)
	if err != nil {
		return Results{}, err
	}

	pending.Processed = true
	pending.Results = &results
	s.emit(AnalysisCompleted{RequestID: requestID, BatchID: pending.BatchID, Results: results})
	s.log.Info("analysis completed", "request", requestID, "batch", pending.BatchID)
	return results, nil
}

// AnalysisStatus returns a copy of the context for requestID.
func (s *Service) AnalysisStatus(requestID string) (AnalysisContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.contexts[requestID]
	if !ok {
		return AnalysisContext{}, ErrUnknownRequest
	}
	out := *pending
	if pending.Results != nil {
		results := *pending.Results
		out.Results = &results
	}
	return out, nil
}

// PendingAnalyses lists the request ids still awaiting a callback.
func (s *Service) PendingAnalyses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for id, pending := range s.contexts {
		if !pending.Processed {
			out = append(out, id)
		}
	}
	return out
}
