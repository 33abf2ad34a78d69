package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/storage"
	"unleash/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 1. SpyStore (间谍存储)
// 用于统计底层方法被调用的次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpyStore struct {
	hasCount int32
	putCount int32
	getCount int32
	objects  map[types.Hash][]byte
}

func NewSpyStore() *SpyStore {
	return &SpyStore{
		objects: make(map[types.Hash][]byte),
	}
}

func (s *SpyStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	atomic.AddInt32(&s.hasCount, 1)
	_, ok := s.objects[hash]
	return ok, nil
}

func (s *SpyStore) Put(ctx context.Context, obj core.Object) error {
	atomic.AddInt32(&s.putCount, 1)
	s.objects[obj.ID()] = core.Encode(obj)
	return nil
}

func (s *SpyStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	atomic.AddInt32(&s.getCount, 1)
	data, ok := s.objects[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestRecord_Envelope(t *testing.T) {
	blob := core.NewBlob([]byte("hello world\n"))
	raw, err := cbor.Marshal(record{Type: "blob", Data: blob.Bytes()})
	require.NoError(t, err)

	var rec record
	require.NoError(t, cbor.Unmarshal(raw, &rec))
	assert.Equal(t, core.Encode(blob), envelope(rec))
}

func TestNewCachedStore_InvalidURL(t *testing.T) {
	_, err := NewCachedStore(NewSpyStore(), Config{RedisURL: "not-a-url"}, nil)
	assert.ErrorContains(t, err, "invalid redis url")
}

// -----------------------------------------------------------------------------
// 2. 集成测试
// -----------------------------------------------------------------------------

func TestCachedStore_Integration(t *testing.T) {
	// A. 环境检查: 确保 Redis 在运行
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	// B. 初始化
	ctx := context.Background()
	spy := NewSpyStore()
	cachedStore, err := NewCachedStore(spy, Config{
		RedisURL: fmt.Sprintf("redis://%s/0", redisAddr),
		TTL:      1 * time.Hour,
	}, nil)
	require.NoError(t, err)
	defer cachedStore.Close()

	// 清理 Redis (防止上次测试残留)
	cachedStore.client.FlushDB(ctx)

	blob := core.NewBlob([]byte(fmt.Sprintf("cache-test-%d", time.Now().UnixNano())))
	hash := blob.ID()

	// --- Step 1: Cache Miss ---
	exists, err := cachedStore.Has(ctx, hash)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.hasCount), "Backend Has() should be called on miss")

	// --- Step 2: Put (Write-Through) ---
	require.NoError(t, cachedStore.Put(ctx, blob))
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.putCount), "Backend Put() should be called")

	redisVal, err := cachedStore.client.Exists(ctx, cachedStore.hasKey(hash)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), redisVal, "Redis key should be set after Put")

	// --- Step 3: Cache Hit ---
	exists, err = cachedStore.Has(ctx, hash)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int32(2), atomic.LoadInt32(&spy.hasCount), "Backend Has() should NOT be called on hit")

	// --- Step 4: Get 命中对象缓存，不触达底层 ---
	obj, err := storage.ReadObject(ctx, cachedStore, hash)
	require.NoError(t, err)
	assert.Equal(t, blob.Bytes(), obj.Bytes())
	assert.Equal(t, int32(0), atomic.LoadInt32(&spy.getCount))

	// --- Step 5: 不存在的对象透传 ErrNotFound ---
	_, err = cachedStore.Get(ctx, core.EmptyTree().ID())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
