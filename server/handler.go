package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/serolabs/immunet/crypto"
	"github.com/serolabs/immunet/ledger"
	"github.com/serolabs/immunet/metrics"
	"github.com/serolabs/immunet/store"
)

// Handler exposes a ledger.Service over HTTP. Events and Metrics are
// optional; nil disables the corresponding endpoints and counters.
type Handler struct {
	svc     *ledger.Service
	events  store.EventStore
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHandler creates a handler around a ledger service.
func NewHandler(svc *ledger.Service, events store.EventStore, m *metrics.Metrics, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, events: events, metrics: m, log: log}
}

// RegisterRoutes registers the ledger routes with the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/admin/ownership", h.transferOwnership)
	r.Post("/admin/providers/add", h.addProvider)
	r.Post("/admin/providers/remove", h.removeProvider)
	r.Post("/admin/pause", h.setPaused)
	r.Post("/admin/cooldown", h.setCooldown)

	r.Post("/batches/open", h.openBatch)
	r.Post("/batches/close", h.closeBatch)
	r.Post("/records", h.submitRecord)
	r.Post("/analysis", h.requestAnalysis)
	r.Post("/oracle/callback", h.oracleCallback)

	r.Get("/status", h.status)
	r.Get("/providers/{key}", h.providerMembership)
	r.Get("/batches/current", h.currentBatch)
	r.Get("/batches/{id}", h.batchInfo)
	r.Get("/batches/{id}/records", h.batchRecords)
	r.Get("/analysis/{request_id}", h.analysisStatus)
	if h.events != nil {
		r.Get("/events", h.recentEvents)
	}
}

// recoverActor decodes a Signed envelope from the request body and returns
// the verified object and signer.
func recoverActor[T any](r *http.Request) (*T, crypto.PublicKey, error) {
	defer r.Body.Close()
	envelope, err := DecodeMessage[Signed[T]](r.Body)
	if err != nil {
		return nil, nil, err
	}
	return envelope.Recover()
}

func (h *Handler) transferOwnership(w http.ResponseWriter, r *http.Request) {
	req, actor, err := recoverActor[TransferOwnershipRequest](r)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	newOwner, err := crypto.NewPublicKeyFromString(req.NewOwner)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	if err := h.svc.TransferOwnership(actor, newOwner); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) addProvider(w http.ResponseWriter, r *http.Request) {
	req, actor, err := recoverActor[ProviderRequest](r)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	provider, err := crypto.NewPublicKeyFromString(req.Provider)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	if err := h.svc.AddProvider(actor, provider); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) removeProvider(w http.ResponseWriter, r *http.Request) {
	req, actor, err := recoverActor[ProviderRequest](r)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	provider, err := crypto.NewPublicKeyFromString(req.Provider)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	if err := h.svc.RemoveProvider(actor, provider); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) setPaused(w http.ResponseWriter, r *http.Request) {
	req, actor, err := recoverActor[PauseRequest](r)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	if err := h.svc.SetPaused(actor, req.Paused); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) setCooldown(w http.ResponseWriter, r *http.Request) {
	req, actor, err := recoverActor[CooldownRequest](r)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	cooldown := time.Duration(req.CooldownSeconds) * time.Second
	if err := h.svc.SetCooldown(actor, cooldown); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) openBatch(w http.ResponseWriter, r *http.Request) {
	_, actor, err := recoverActor[OpenBatchRequest](r)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	id, err := h.svc.OpenBatch(actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OpenBatchResponse{BatchID: id})
}

func (h *Handler) closeBatch(w http.ResponseWriter, r *http.Request) {
	req, actor, err := recoverActor[CloseBatchRequest](r)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	if err := h.svc.CloseBatch(actor, req.BatchID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) submitRecord(w http.ResponseWriter, r *http.Request) {
	req, actor, err := recoverActor[SubmitRecordRequest](r)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	batchID, err := h.svc.SubmitRecord(actor, req.Record)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitRecordResponse{BatchID: batchID})
}

func (h *Handler) requestAnalysis(w http.ResponseWriter, r *http.Request) {
	req, actor, err := recoverActor[AnalysisRequest](r)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	requestID, err := h.svc.RequestBatchAnalysis(r.Context(), actor, req.BatchID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{RequestID: requestID})
}

func (h *Handler) oracleCallback(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	req, err := DecodeMessage[DecryptionCallback](r.Body)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	results, err := h.svc.OnDecrypted(req.RequestID, req.Cleartexts, req.Proof)
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveCallbackFailure(err)
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CallbackResponse{Results: results})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Owner:           h.svc.Owner().String(),
		Paused:          h.svc.Paused(),
		CooldownSeconds: uint64(h.svc.Cooldown() / time.Second),
		PendingRequests: h.svc.PendingAnalyses(),
	})
}

func (h *Handler) providerMembership(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	provider, err := crypto.NewPublicKeyFromString(key)
	if err != nil {
		writeBadEnvelope(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProviderResponse{Provider: key, Member: h.svc.IsProvider(provider)})
}

func (h *Handler) currentBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.svc.CurrentBatch()
	if !ok {
		h.writeError(w, ledger.ErrInvalidBatch)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Batch: batch})
}

func (h *Handler) batchInfo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, ledger.ErrInvalidBatch)
		return
	}
	batch, err := h.svc.BatchInfo(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Batch: batch})
}

func (h *Handler) batchRecords(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, ledger.ErrInvalidBatch)
		return
	}
	records, err := h.svc.Records(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordsResponse{BatchID: id, Records: records})
}

func (h *Handler) analysisStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.AnalysisStatus(chi.URLParam(r, "request_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadEnvelope(w, errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	entries, err := h.events.Recent(ctx, limit)
	if err != nil {
		h.log.Error("querying audit events", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Code: "internal", Error: "event query failed"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeError maps a ledger condition to an HTTP status and a stable code.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrPaused):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrCooldownActive):
		status = http.StatusTooManyRequests
	case errors.Is(err, ledger.ErrInvalidBatch),
		errors.Is(err, ledger.ErrBatchClosed),
		errors.Is(err, ledger.ErrNotInitialized),
		errors.Is(err, ledger.ErrMalformedCleartexts):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrReplayAttempt),
		errors.Is(err, ledger.ErrStateMismatch):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidProof):
		status = http.StatusUnauthorized
	case errors.Is(err, ledger.ErrUnknownRequest):
		status = http.StatusNotFound
	}
	writeJSON(w, status, ErrorResponse{Code: ledger.ErrorCode(err), Error: err.Error()})
}

func writeBadEnvelope(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "bad_request", Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
