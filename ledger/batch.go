package ledger

import (
	"github.com/serolabs/immunet/crypto"
)

// OpenBatch allocates the next batch id and marks it open. Owner-only,
// rejected while paused. The new batch becomes the current batch; any
// previous open batch stays readable but no longer receives submissions.
func (s *Service) OpenBatch(actor crypto.PublicKey) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(actor); err != nil {
		return 0, err
	}
	if err := s.requireNotPaused(); err != nil {
		return 0, err
	}

	id := uint64(len(s.batches)) + 1
	s.batches = append(s.batches, &batchState{meta: Batch{ID: id}})
	s.emit(BatchOpened{BatchID: id})
	s.log.Info("batch opened", "batch", id)
	return id, nil
}

// CloseBatch freezes batch id for writes. Owner-only, rejected while
// paused. Fails with ErrInvalidBatch if id is zero, unknown, or the batch
// is already closed.
func (s *Service) CloseBatch(actor crypto.PublicKey, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(actor); err != nil {
		return err
	}
	if err := s.requireNotPaused(); err != nil {
		return err
	}
	if id == 0 || id > uint64(len(s.batches)) {
		return ErrInvalidBatch
	}
	b := s.batches[id-1]
	if b.meta.Closed {
		return ErrInvalidBatch
	}

	b.meta.Closed = true
	s.emit(BatchClosed{BatchID: id, RecordCount: b.meta.RecordCount})
	s.log.Info("batch closed", "batch", id, "records", b.meta.RecordCount)
	return nil
}

// SubmitRecord appends a record to the current batch on behalf of actor.
// Provider-only, rejected while paused, cooldown-gated. The submission
// always targets the current batch; it fails with ErrBatchClosed if no
// batch exists yet or the current batch is closed, and with
// ErrNotInitialized if any of the record's ciphertexts is malformed.
// Returns the batch id the record was appended to.
func (s *Service) SubmitRecord(actor crypto.PublicKey, record *Record) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.providers[actor.String()] {
		return 0, ErrUnauthorized
	}
	if err := s.requireNotPaused(); err != nil {
		return 0, err
	}
	at := s.now()
	if err := s.checkCooldown(s.lastSubmission, actor, at); err != nil {
		return 0, err
	}
	current := s.currentBatch()
	if current == nil || current.meta.Closed {
		return 0, ErrBatchClosed
	}
	if record == nil {
		return 0, ErrNotInitialized
	}
	for _, ct := range record.ciphertexts() {
		if !s.arith.IsInitialized(ct) {
			return 0, ErrNotInitialized
		}
	}

	// All checks passed; mutate as one atomic effect.
	s.lastSubmission[actor.String()] = at
	current.records = append(current.records, cloneRecord(record))
	current.meta.RecordCount++
	s.emit(DataSubmitted{Provider: actor, BatchID: current.meta.ID, Count: 1})
	s.log.Info("record submitted", "provider", actor.String(), "batch", current.meta.ID)
	return current.meta.ID, nil
}

// currentBatch returns the highest-id batch, or nil before the first open.
// Called with s.mu held.
func (s *Service) currentBatch() *batchState {
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

// cloneRecord deep-copies a record so appended state never aliases caller
// memory.
func cloneRecord(r *Record) *Record {
	return &Record{
		AntigenAffinity:    cloneCiphertext(r.AntigenAffinity),
		AntibodyCount:      cloneCiphertext(r.AntibodyCount),
		TCellEffectiveness: cloneCiphertext(r.TCellEffectiveness),
	}
}

func cloneCiphertext(ct *crypto.Ciphertext) *crypto.Ciphertext {
	if ct == nil {
		return nil
	}
	nonces := make([][]byte, len(ct.Nonces))
	for i, n := range ct.Nonces {
		nonces[i] = append([]byte(nil), n...)
	}
	return &crypto.Ciphertext{Payload: ct.Payload, Nonces: nonces}
}

// CurrentBatch returns the metadata of the current batch, or false before
// the first batch is opened.
func (s *Service) CurrentBatch() (Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.currentBatch()
	if current == nil {
		return Batch{}, false
	}
	return current.meta, true
}

// BatchInfo returns the metadata of batch id.
func (s *Service) BatchInfo(id uint64) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || id > uint64(len(s.batches)) {
		return Batch{}, ErrInvalidBatch
	}
	return s.batches[id-1].meta, nil
}

// Records returns a copy of batch id's record list.
func (s *Service) Records(id uint64) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || id > uint64(len(s.batches)) {
		return nil, ErrInvalidBatch
	}
	records := s.batches[id-1].records
	out := make([]*Record, len(records))
	for i, r := range records {
		out[i] = cloneRecord(r)
	}
	return out, nil
}
