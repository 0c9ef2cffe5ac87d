package blobstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framelens/orchestrator/internal/blobstore"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := blobstore.NewMemory()

	require.NoError(t, m.Set(ctx, "k", []byte("payload"), time.Minute))

	data, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	// The returned slice is a copy; mutating it must not poison the store.
	data[0] = 'X'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), again)

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestMemoryMissingKey(t *testing.T) {
	m := blobstore.NewMemory()
	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := blobstore.NewMemory()

	require.NoError(t, m.Set(ctx, "k", []byte("payload"), -time.Second))
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
