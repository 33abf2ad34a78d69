package e2e

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/exporter"
	"unleash/pkg/ignore"
	"unleash/pkg/ingester"
	"unleash/pkg/malleable"
	"unleash/pkg/storage"
	"unleash/pkg/storage/cache"
	"unleash/pkg/storage/disk"
	"unleash/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MetricStore 只统计底层调用次数，真正的存储交给被组合的 Store
type MetricStore struct {
	storage.Store
	putCount int32
	hasCount int32
}

func (m *MetricStore) Put(ctx context.Context, obj core.Object) error {
	atomic.AddInt32(&m.putCount, 1)
	return m.Store.Put(ctx, obj)
}

func (m *MetricStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	atomic.AddInt32(&m.hasCount, 1)
	return m.Store.Has(ctx, hash)
}

func (m *MetricStore) puts() int { return int(atomic.LoadInt32(&m.putCount)) }

// randomTree 生成 data/part-N.bin 随机文件 (内容随机，避免命中旧的 Redis 缓存)
func randomTree(t *testing.T, root string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	for i := 0; i < n; i++ {
		buf := make([]byte, 4096)
		_, err := rand.Read(buf)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, "data", fmt.Sprintf("part-%02d.bin", i)), buf, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("dataset\n"), 0o644))
}

// runWorkflow: 导入目录 -> Save -> 修改一个文件的子 commit -> Save -> 导出并比对
func runWorkflow(t *testing.T, store storage.Store, spy *MetricStore) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	const files = 20
	randomTree(t, src, files)

	// 1. 冷写入
	matcher, err := ignore.NewMatcher(src)
	require.NoError(t, err)
	mc := malleable.New(store)
	mc.Author, mc.Committer, mc.Message = "E2E <e2e@test>", "E2E <e2e@test>", "import\n"
	_, err = ingester.NewIngester(matcher, nil).IngestDir(ctx, mc, src, "")
	require.NoError(t, err)

	start := time.Now()
	first, err := mc.Save(ctx)
	require.NoError(t, err)
	t.Logf("Cold save took: %v", time.Since(start))

	// blobs + README + data 树 + 根树 + commit
	assert.Equal(t, files+1+2+1, spy.puts())
	putsAfterCold := spy.puts()

	// 2. 子 commit 只改一个文件
	child, err := malleable.FromParent(ctx, store, first)
	require.NoError(t, err)
	child.Message = "tweak\n"
	require.NoError(t, child.SetPathData(ctx, "data/part-00.bin", []byte("patched"), core.ModeRegular))
	second, err := child.Save(ctx)
	require.NoError(t, err)

	// 新 blob + data 树 + 根树 + commit，未改动的文件不再写入
	assert.Equal(t, 4, spy.puts()-putsAfterCold)

	// 3. 导出并与源目录比对
	reloaded, err := malleable.FromExisting(ctx, store, second)
	require.NoError(t, err)
	restored := filepath.Join(tmpDir, "restored")
	require.NoError(t, reloaded.ExportTo(ctx, restored))

	data, err := os.ReadFile(filepath.Join(restored, "data", "part-00.bin"))
	require.NoError(t, err)
	assert.Equal(t, "patched", string(data))

	differs, err := exporter.Differs(ctx, reloaded.Getter(), reloaded.Tree(), src)
	require.NoError(t, err)
	assert.True(t, differs, "source still has the unpatched file")

	base, err := malleable.FromExisting(ctx, store, first)
	require.NoError(t, err)
	differs, err = exporter.Differs(ctx, base.Getter(), base.Tree(), src)
	require.NoError(t, err)
	assert.False(t, differs)
}

func TestWorkflow_Disk(t *testing.T) {
	diskStore, err := disk.NewAdapter(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)
	spy := &MetricStore{Store: diskStore}

	runWorkflow(t, spy, spy)
}

func TestWorkflow_RedisCache(t *testing.T) {
	redisAddr := "localhost:6379"
	if conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second); err != nil {
		t.Skip("Skipping E2E test: Redis not available")
	} else {
		conn.Close()
	}

	diskStore, err := disk.NewAdapter(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)
	spy := &MetricStore{Store: diskStore}

	cachedStore, err := cache.NewCachedStore(spy, cache.Config{
		RedisURL: fmt.Sprintf("redis://%s/0", redisAddr),
		TTL:      time.Hour,
	}, nil)
	require.NoError(t, err)
	defer cachedStore.Close()

	runWorkflow(t, cachedStore, spy)
}
