// Package client is a typed HTTP client for the immunet API. Mutating
// calls are signed with the caller's private key; read calls are plain
// GETs. Ledger conditions come back as the sentinel errors from the
// ledger package, so callers can errors.Is against them the same way
// in-process code does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/serolabs/immunet/crypto"
	"github.com/serolabs/immunet/ledger"
	"github.com/serolabs/immunet/server"
	"github.com/serolabs/immunet/store"
)

// APIError is a non-OK response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps the wire code back to the ledger sentinel, so
// errors.Is(err, ledger.ErrUnauthorized) works across the HTTP boundary.
func (e *APIError) Unwrap() error {
	return codeToError[e.Code]
}

var codeToError = map[string]error{
	"unauthorized":            ledger.ErrUnauthorized,
	"paused":                  ledger.ErrPaused,
	"cooldown_active":         ledger.ErrCooldownActive,
	"invalid_batch_id":        ledger.ErrInvalidBatch,
	"batch_closed_or_invalid": ledger.ErrBatchClosed,
	"not_initialized":         ledger.ErrNotInitialized,
	"replay_attempt":          ledger.ErrReplayAttempt,
	"state_mismatch":          ledger.ErrStateMismatch,
	"invalid_proof":           ledger.ErrInvalidProof,
	"unknown_request":         ledger.ErrUnknownRequest,
	"malformed_cleartexts":    ledger.ErrMalformedCleartexts,
}

// Client talks to one immunetd instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the service-level read surface.
func (c *Client) Status(ctx context.Context) (*server.StatusResponse, error) {
	return getJSON[server.StatusResponse](ctx, c, "/status")
}

// IsProvider reports whether key holds provider membership.
func (c *Client) IsProvider(ctx context.Context, key crypto.PublicKey) (bool, error) {
	resp, err := getJSON[server.ProviderResponse](ctx, c, "/providers/"+key.String())
	if err != nil {
		return false, err
	}
	return resp.Member, nil
}

// CurrentBatch returns the most recently opened batch.
func (c *Client) CurrentBatch(ctx context.Context) (ledger.Batch, error) {
	resp, err := getJSON[server.BatchResponse](ctx, c, "/batches/current")
	if err != nil {
		return ledger.Batch{}, err
	}
	return resp.Batch, nil
}

// BatchInfo returns metadata for one batch.
func (c *Client) BatchInfo(ctx context.Context, batchID uint64) (ledger.Batch, error) {
	resp, err := getJSON[server.BatchResponse](ctx, c, "/batches/"+strconv.FormatUint(batchID, 10))
	if err != nil {
		return ledger.Batch{}, err
	}
	return resp.Batch, nil
}

// AnalysisStatus returns the context of a pending or completed analysis.
func (c *Client) AnalysisStatus(ctx context.Context, requestID string) (*ledger.AnalysisContext, error) {
	return getJSON[ledger.AnalysisContext](ctx, c, "/analysis/"+requestID)
}

// RecentEvents returns up to limit audit entries, newest first.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	entries, err := getJSON[[]store.AuditEntry](ctx, c, "/events?limit="+strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	return *entries, nil
}

// OpenBatch opens the next batch. Owner-only.
func (c *Client) OpenBatch(ctx context.Context, key crypto.PrivateKey) (uint64, error) {
	resp, err := postSigned[server.OpenBatchRequest, server.OpenBatchResponse](
		ctx, c, "/batches/open", key, &server.OpenBatchRequest{})
	if err != nil {
		return 0, err
	}
	return resp.BatchID, nil
}

// CloseBatch freezes a batch. Owner-only.
func (c *Client) CloseBatch(ctx context.Context, key crypto.PrivateKey, batchID uint64) error {
	_, err := postSigned[server.CloseBatchRequest, struct{}](
		ctx, c, "/batches/close", key, &server.CloseBatchRequest{BatchID: batchID})
	return err
}

// SubmitRecord appends one encrypted record to the current batch and
// returns the batch it landed in. Provider-only.
func (c *Client) SubmitRecord(ctx context.Context, key crypto.PrivateKey, record *ledger.Record) (uint64, error) {
	resp, err := postSigned[server.SubmitRecordRequest, server.SubmitRecordResponse](
		ctx, c, "/records", key, &server.SubmitRecordRequest{Record: record})
	if err != nil {
		return 0, err
	}
	return resp.BatchID, nil
}

// RequestAnalysis dispatches the decryption round-trip for a closed batch
// and returns the oracle request id. Owner-only.
func (c *Client) RequestAnalysis(ctx context.Context, key crypto.PrivateKey, batchID uint64) (string, error) {
	resp, err := postSigned[server.AnalysisRequest, server.AnalysisResponse](
		ctx, c, "/analysis", key, &server.AnalysisRequest{BatchID: batchID})
	if err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

// AddProvider grants provider membership. Owner-only.
func (c *Client) AddProvider(ctx context.Context, key crypto.PrivateKey, provider crypto.PublicKey) error {
	_, err := postSigned[server.ProviderRequest, struct{}](
		ctx, c, "/admin/providers/add", key, &server.ProviderRequest{Provider: provider.String()})
	return err
}

// RemoveProvider revokes provider membership. Owner-only.
func (c *Client) RemoveProvider(ctx context.Context, key crypto.PrivateKey, provider crypto.PublicKey) error {
	_, err := postSigned[server.ProviderRequest, struct{}](
		ctx, c, "/admin/providers/remove", key, &server.ProviderRequest{Provider: provider.String()})
	return err
}

// SetPaused toggles the global write gate. Owner-only.
func (c *Client) SetPaused(ctx context.Context, key crypto.PrivateKey, paused bool) error {
	_, err := postSigned[server.PauseRequest, struct{}](
		ctx, c, "/admin/pause", key, &server.PauseRequest{Paused: paused})
	return err
}

// SetCooldown replaces the shared rate-limit window. Owner-only.
func (c *Client) SetCooldown(ctx context.Context, key crypto.PrivateKey, cooldown time.Duration) error {
	_, err := postSigned[server.CooldownRequest, struct{}](
		ctx, c, "/admin/cooldown", key, &server.CooldownRequest{CooldownSeconds: uint64(cooldown / time.Second)})
	return err
}

// TransferOwnership hands the owner role to newOwner. Owner-only.
func (c *Client) TransferOwnership(ctx context.Context, key crypto.PrivateKey, newOwner crypto.PublicKey) error {
	_, err := postSigned[server.TransferOwnershipRequest, struct{}](
		ctx, c, "/admin/ownership", key, &server.TransferOwnershipRequest{NewOwner: newOwner.String()})
	return err
}

// DeliverCallback posts an oracle result to the callback endpoint. Used
// by out-of-process oracle deployments.
func (c *Client) DeliverCallback(ctx context.Context, callback *server.DecryptionCallback) (*ledger.Results, error) {
	resp, err := postJSON[server.CallbackResponse](ctx, c, "/oracle/callback", callback)
	if err != nil {
		return nil, err
	}
	return &resp.Results, nil
}

// postSigned wraps req in a Signed envelope under key and posts it.
func postSigned[Req, Resp any](ctx context.Context, c *Client, path string, key crypto.PrivateKey, req *Req) (*Resp, error) {
	envelope, err := server.NewSigned(key, req)
	if err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}
	return postJSON[Resp](ctx, c, path, envelope)
}

func postJSON[Resp any](ctx context.Context, c *Client, path string, body any) (*Resp, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return do[Resp](c, httpReq)
}

func getJSON[Resp any](ctx context.Context, c *Client, path string) (*Resp, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return do[Resp](c, httpReq)
}

func do[Resp any](c *Client, req *http.Request) (*Resp, error) {
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		var errResp server.ErrorResponse
		if json.Unmarshal(payload, &errResp) == nil && errResp.Code != "" {
			return nil, &APIError{StatusCode: httpResp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return nil, &APIError{StatusCode: httpResp.StatusCode, Code: "internal", Message: string(payload)}
	}

	var resp Resp
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}
