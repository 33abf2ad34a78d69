package badger

import (
	"context"
	"testing"

	"unleash/pkg/core"
	"unleash/pkg/storage"
	"unleash/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Adapter {
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAdapter_PutGetHas(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	blob := core.NewBlob([]byte("hello world\n"))
	ok, err := s.Has(ctx, blob.ID())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, blob))
	require.NoError(t, s.Put(ctx, blob), "重复写入应该是幂等的")

	ok, err = s.Has(ctx, blob.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	obj, err := storage.ReadObject(ctx, s, blob.ID())
	require.NoError(t, err)
	assert.Equal(t, core.TypeBlob, obj.Type())
	assert.Equal(t, []byte("hello world\n"), obj.Bytes())

	_, err = s.Get(ctx, core.EmptyTree().ID())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAdapter_ExpandHash(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	blob := core.NewBlob([]byte("hello world\n")) // 3b18e512...
	require.NoError(t, s.Put(ctx, blob))
	require.NoError(t, s.Put(ctx, core.EmptyTree()))

	tests := []struct {
		name    string
		prefix  types.HashPrefix
		want    types.Hash
		wantErr error
	}{
		{"unique", "3b18e5", blob.ID(), nil},
		{"missing", "ffff", "", storage.ErrNotFound},
		{"too short", "3b1", "", storage.ErrPrefixTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ExpandHash(ctx, tt.prefix)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
