package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serolabs/immunet/client"
	"github.com/serolabs/immunet/ledger"
	"github.com/serolabs/immunet/server"
	"github.com/serolabs/immunet/testutil"
)

func newClientFixture(t *testing.T) (*client.Client, *testutil.Fixture) {
	t.Helper()
	f := testutil.NewFixture(t, time.Millisecond)

	router := chi.NewRouter()
	server.NewHandler(f.Service, nil, nil, nil).RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return client.New(srv.URL), f
}

func TestClientBatchLifecycle(t *testing.T) {
	c, f := newClientFixture(t)
	ctx := context.Background()
	_, providerKey := f.AddProvider(t)

	id, err := c.OpenBatch(ctx, f.OwnerKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	batchID, err := c.SubmitRecord(ctx, providerKey, f.EncryptRecord(t, 9, 90, 900))
	require.NoError(t, err)
	assert.Equal(t, id, batchID)

	batch, err := c.CurrentBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), batch.RecordCount)
	assert.False(t, batch.Closed)

	require.NoError(t, c.CloseBatch(ctx, f.OwnerKey, id))

	batch, err = c.BatchInfo(ctx, id)
	require.NoError(t, err)
	assert.True(t, batch.Closed)
}

func TestClientSurfacesLedgerSentinels(t *testing.T) {
	c, f := newClientFixture(t)
	ctx := context.Background()
	_, strangerKey := testutil.MustKeyPair(t)

	// HTTP error payloads unwrap back to the in-process sentinels.
	_, err := c.OpenBatch(ctx, strangerKey)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)

	err = c.CloseBatch(ctx, f.OwnerKey, 42)
	require.ErrorIs(t, err, ledger.ErrInvalidBatch)

	_, err = c.AnalysisStatus(ctx, "never-issued")
	require.ErrorIs(t, err, ledger.ErrUnknownRequest)
}

func TestClientAdminOperations(t *testing.T) {
	c, f := newClientFixture(t)
	ctx := context.Background()
	providerPub, _ := testutil.MustKeyPair(t)

	require.NoError(t, c.AddProvider(ctx, f.OwnerKey, providerPub))
	member, err := c.IsProvider(ctx, providerPub)
	require.NoError(t, err)
	assert.True(t, member)

	require.NoError(t, c.RemoveProvider(ctx, f.OwnerKey, providerPub))
	member, err = c.IsProvider(ctx, providerPub)
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, c.SetPaused(ctx, f.OwnerKey, true))
	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Paused)
	require.NoError(t, c.SetPaused(ctx, f.OwnerKey, false))

	require.NoError(t, c.SetCooldown(ctx, f.OwnerKey, 45*time.Second))
	status, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(45), status.CooldownSeconds)
}

func TestClientAnalysisRoundTrip(t *testing.T) {
	c, f := newClientFixture(t)
	ctx := context.Background()
	_, providerKey := f.AddProvider(t)

	id, err := c.OpenBatch(ctx, f.OwnerKey)
	require.NoError(t, err)
	_, err = c.SubmitRecord(ctx, providerKey, f.EncryptRecord(t, 2, 20, 200))
	require.NoError(t, err)
	require.NoError(t, c.CloseBatch(ctx, f.OwnerKey, id))

	requestID, err := c.RequestAnalysis(ctx, f.OwnerKey, id)
	require.NoError(t, err)

	// The fixture's oracle calls straight into the service.
	require.Equal(t, 1, f.Oracle.DeliverPending())

	status, err := c.AnalysisStatus(ctx, requestID)
	require.NoError(t, err)
	require.True(t, status.Processed)
	require.NotNil(t, status.Results)
	assert.Equal(t, uint64(2), status.Results.AntigenAffinity)
	assert.Equal(t, uint64(20), status.Results.AntibodyCount)
	assert.Equal(t, uint64(200), status.Results.TCellEffectiveness)
}
