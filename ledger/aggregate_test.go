package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serolabs/immunet/ledger"
	"github.com/serolabs/immunet/testutil"
)

func TestAggregateSumsAllFields(t *testing.T) {
	f := testutil.NewFixture(t, time.Millisecond)
	provider, _ := f.AddProvider(t)

	id, err := f.Service.OpenBatch(f.Owner)
	require.NoError(t, err)

	inputs := [][3]uint64{{10, 1, 100}, {20, 2, 200}, {30, 3, 300}}
	for _, in := range inputs {
		f.Clock.Advance(time.Second)
		_, err := f.Service.SubmitRecord(provider, f.EncryptRecord(t, in[0], in[1], in[2]))
		require.NoError(t, err)
	}
	require.NoError(t, f.Service.CloseBatch(f.Owner, id))

	sums, err := f.Service.Aggregate(id)
	require.NoError(t, err)

	expected := [3]uint64{60, 6, 600}
	for i, sum := range sums {
		got, err := f.Cipher.Decrypt(sum)
		require.NoError(t, err)
		assert.Equal(t, expected[i], got, "field %d", i)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	f := testutil.NewFixture(t, time.Millisecond)
	provider, _ := f.AddProvider(t)

	id, err := f.Service.OpenBatch(f.Owner)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		f.Clock.Advance(time.Second)
		_, err := f.Service.SubmitRecord(provider, f.EncryptRecord(t, uint64(i), uint64(i), uint64(i)))
		require.NoError(t, err)
	}
	require.NoError(t, f.Service.CloseBatch(f.Owner, id))

	first, err := f.Service.Aggregate(id)
	require.NoError(t, err)
	second, err := f.Service.Aggregate(id)
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].Bytes(), second[i].Bytes(), "field %d", i)
	}
}

func TestAggregateInvalidBatches(t *testing.T) {
	f := testutil.NewFixture(t, time.Second)
	provider, _ := f.AddProvider(t)

	// Unknown batch.
	_, err := f.Service.Aggregate(1)
	require.ErrorIs(t, err, ledger.ErrInvalidBatch)

	// Open batch.
	id, err := f.Service.OpenBatch(f.Owner)
	require.NoError(t, err)
	_, err = f.Service.SubmitRecord(provider, f.EncryptRecord(t, 1, 1, 1))
	require.NoError(t, err)
	_, err = f.Service.Aggregate(id)
	require.ErrorIs(t, err, ledger.ErrInvalidBatch)

	// Closed but empty batch.
	empty, err := f.Service.OpenBatch(f.Owner)
	require.NoError(t, err)
	require.NoError(t, f.Service.CloseBatch(f.Owner, empty))
	_, err = f.Service.Aggregate(empty)
	require.ErrorIs(t, err, ledger.ErrInvalidBatch)
}
