package memory

import (
	"context"
	"testing"

	"unleash/pkg/core"
	"unleash/pkg/storage"
	"unleash/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapter(t *testing.T) {
	ctx := context.Background()
	store := NewAdapter()

	blob := core.NewBlob([]byte("bar"))
	require.NoError(t, store.Put(ctx, blob))
	require.NoError(t, store.Put(ctx, blob))
	assert.Equal(t, 1, store.Len(), "重复写入不应产生新对象")

	ok, err := store.Has(ctx, blob.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	obj, err := storage.ReadObject(ctx, store, blob.ID())
	require.NoError(t, err)
	assert.Equal(t, blob.ID(), obj.ID())

	_, err = store.Get(ctx, core.EmptyTree().ID())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	full, err := store.ExpandHash(ctx, types.HashPrefix(blob.ID()[:6]))
	require.NoError(t, err)
	assert.Equal(t, blob.ID(), full)
	assert.Equal(t, []types.Hash{blob.ID()}, store.Hashes())
}
