package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"unleash/pkg/storage/badger"
	"unleash/pkg/storage/disk"
	"unleash/pkg/storage/memory"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitStore_Disk(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	viper.Set("storage.type", "disk")
	viper.Set("storage.path", filepath.Join(dir, "objects"))

	store, err := initStore(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.IsType(t, &disk.Adapter{}, store)
}

func TestInitStore_DefaultPath(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	viper.Set("storage.type", "badger")

	store, err := initStore(context.Background(), dir, nil)
	require.NoError(t, err)
	require.IsType(t, &badger.Adapter{}, store)
	defer store.(*badger.Adapter).Close()

	assert.DirExists(t, filepath.Join(dir, "objects"))
}

func TestInitStore_Memory(t *testing.T) {
	viper.Reset()
	viper.Set("storage.type", "memory")

	store, err := initStore(context.Background(), ".", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Adapter{}, store)
}

func TestInitStore_S3_MissingBucket(t *testing.T) {
	viper.Reset()
	viper.Set("storage.type", "s3")
	// 故意不设置 bucket

	store, err := initStore(context.Background(), ".", zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "bucket is required")
}

func TestInitStore_S3_UsesAppLogger(t *testing.T) {
	viper.Reset()
	viper.Set("storage.type", "s3")
	viper.Set("storage.s3.bucket", "unleash-test")
	viper.Set("storage.s3.region", "us-east-1")
	// 无人监听的端口：确保 bucket 的操作必然失败
	viper.Set("storage.s3.endpoint", "http://127.0.0.1:1")
	viper.Set("storage.s3.access_key", "test")
	viper.Set("storage.s3.secret_key", "test")

	obsCore, logs := observer.New(zap.WarnLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	store, err := initStore(ctx, ".", zap.New(obsCore))
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.Equal(t, 1, logs.FilterMessage("failed to ensure bucket exists").Len())
}

func TestInitStore_UnknownType(t *testing.T) {
	viper.Reset()
	viper.Set("storage.type", "ftp")

	store, err := initStore(context.Background(), ".", zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestNewApp_FSRefs(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	viper.Set("storage.type", "memory")
	viper.Set("refs.type", "fs")
	viper.Set("refs.path", dir)
	viper.Set("lookup.cache_size", 16)

	a, err := NewApp(context.Background(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Meta)
	assert.Equal(t, 16, a.CacheSize)
	assert.Len(t, a.CommitOptions(), 2)
	require.NoError(t, a.Refs.Init(context.Background(), "master"))
	assert.FileExists(t, filepath.Join(dir, "HEAD"))
}

func TestNewApp_SQLRefs(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	viper.Set("storage.type", "memory")
	viper.Set("refs.type", "sql")
	viper.Set("refs.path", dir)
	viper.Set("database.driver", "sqlite")
	viper.Set("database.path", filepath.Join(dir, "meta.db"))

	a, err := NewApp(context.Background(), nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Meta)
	ctx := context.Background()
	require.NoError(t, a.Refs.Init(ctx, "master"))
	target, err := a.Refs.HeadTarget(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/master", target)
}

func TestNewApp_UnknownRefs(t *testing.T) {
	viper.Reset()
	viper.Set("storage.type", "memory")
	viper.Set("refs.type", "etcd")
	viper.Set("refs.path", t.TempDir())

	_, err := NewApp(context.Background(), nil)
	assert.ErrorContains(t, err, "unsupported refs type")
}
