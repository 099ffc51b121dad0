package oracle

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/serolabs/immunet/crypto"
)

// CallbackTarget receives decryption results.
type CallbackTarget interface {
	OnDecrypted(requestID string, cleartexts, proof []byte) error
}

// TargetFunc adapts a function to the CallbackTarget interface.
type TargetFunc func(requestID string, cleartexts, proof []byte) error

// OnDecrypted implements CallbackTarget.
func (f TargetFunc) OnDecrypted(requestID string, cleartexts, proof []byte) error {
	return f(requestID, cleartexts, proof)
}

// job is one pending decryption request.
type job struct {
	requestID   string
	ciphertexts []*crypto.Ciphertext
}

// LocalOracle is an in-process decryption oracle. Dispatch enqueues and
// returns immediately; a worker (Run, or DeliverPending in tests) performs
// the decryption and invokes the callback target.
type LocalOracle struct {
	cipher     *crypto.PadCipher
	signingKey crypto.PrivateKey
	publicKey  crypto.PublicKey
	log        *slog.Logger

	jobs chan *job

	mu     sync.Mutex
	target CallbackTarget
}

// NewLocalOracle creates an oracle around a pad cipher and a signing key.
func NewLocalOracle(cipher *crypto.PadCipher, signingKey crypto.PrivateKey, log *slog.Logger) (*LocalOracle, error) {
	if cipher == nil {
		return nil, errors.New("cipher cannot be nil")
	}
	publicKey, err := signingKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive oracle public key: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &LocalOracle{
		cipher:     cipher,
		signingKey: signingKey,
		publicKey:  publicKey,
		log:        log,
		jobs:       make(chan *job, 256),
	}, nil
}

// PublicKey returns the oracle's proof-signing public key.
func (o *LocalOracle) PublicKey() crypto.PublicKey {
	return o.publicKey
}

// Attach sets the callback target. Must be called before any request is
// delivered; the ledger and oracle reference each other, so wiring happens
// after both are constructed.
func (o *LocalOracle) Attach(target CallbackTarget) {
	o.mu.Lock()
	o.target = target
	o.mu.Unlock()
}

// RequestDecryption enqueues a decryption job and returns its fresh
// request id. The ciphertexts are copied; the dispatch never blocks on the
// decryption itself.
func (o *LocalOracle) RequestDecryption(ctx context.Context, cts []*crypto.Ciphertext) (string, error) {
	requestID := uuid.NewString()

	copied := make([]*crypto.Ciphertext, len(cts))
	for i, ct := range cts {
		if ct == nil {
			return "", errors.New("nil ciphertext in decryption request")
		}
		nonces := make([][]byte, len(ct.Nonces))
		for j, n := range ct.Nonces {
			nonces[j] = append([]byte(nil), n...)
		}
		copied[i] = &crypto.Ciphertext{Payload: ct.Payload, Nonces: nonces}
	}

	select {
	case o.jobs <- &job{requestID: requestID, ciphertexts: copied}:
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", errors.New("oracle queue full")
	}

	o.log.Debug("decryption requested", "request", requestID, "ciphertexts", len(copied))
	return requestID, nil
}

// VerifySignatures checks the authenticity proof for a callback payload.
func (o *LocalOracle) VerifySignatures(requestID string, cleartexts, proof []byte) bool {
	return crypto.Signature(proof).Verify(o.publicKey, proofPayload(requestID, cleartexts))
}

// Run delivers queued decryptions until ctx is cancelled.
func (o *LocalOracle) Run(ctx context.Context) {
	for {
		select {
		case j := <-o.jobs:
			o.deliver(j)
		case <-ctx.Done():
			return
		}
	}
}

// DeliverPending synchronously delivers every queued job. Returns the
// number delivered. Intended for tests and single-shot tools that do not
// run the worker loop.
func (o *LocalOracle) DeliverPending() int {
	delivered := 0
	for {
		select {
		case j := <-o.jobs:
			o.deliver(j)
			delivered++
		default:
			return delivered
		}
	}
}

func (o *LocalOracle) deliver(j *job) {
	o.mu.Lock()
	target := o.target
	o.mu.Unlock()
	if target == nil {
		o.log.Error("no callback target attached, dropping result", "request", j.requestID)
		return
	}

	cleartexts, proof, err := o.decryptAndProve(j)
	if err != nil {
		o.log.Error("decryption failed", "request", j.requestID, "err", err)
		return
	}

	// The ledger revalidates everything; a rejected callback is surfaced
	// here but never retried by the oracle.
	if err := target.OnDecrypted(j.requestID, cleartexts, proof); err != nil {
		o.log.Warn("callback rejected", "request", j.requestID, "err", err)
	}
}

// decryptAndProve opens each ciphertext in order into a fixed-width
// big-endian result and signs the request id together with the cleartexts.
func (o *LocalOracle) decryptAndProve(j *job) (cleartexts, proof []byte, err error) {
	cleartexts = make([]byte, 0, len(j.ciphertexts)*8)
	for _, ct := range j.ciphertexts {
		value, err := o.cipher.Decrypt(ct)
		if err != nil {
			return nil, nil, err
		}
		cleartexts = binary.BigEndian.AppendUint64(cleartexts, value)
	}

	signature, err := crypto.Sign(o.signingKey, proofPayload(j.requestID, cleartexts))
	if err != nil {
		return nil, nil, err
	}
	return cleartexts, signature.Bytes(), nil
}

// proofPayload is the byte string a decryption proof signs: the request id
// followed by the cleartexts. Binding the id prevents replaying a proof
// under a different request.
func proofPayload(requestID string, cleartexts []byte) []byte {
	payload := make([]byte, 0, len(requestID)+len(cleartexts))
	payload = append(payload, requestID...)
	payload = append(payload, cleartexts...)
	return payload
}
