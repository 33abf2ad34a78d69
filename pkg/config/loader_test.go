package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	require.NoError(t, Load(""))
	assert.Equal(t, "disk", viper.GetString("storage.type"))
	assert.Equal(t, filepath.Join(RepoDir, "objects"), viper.GetString("storage.path"))
	assert.Equal(t, "fs", viper.GetString("refs.type"))
	assert.Equal(t, 1024, viper.GetInt("lookup.cache_size"))
	assert.Equal(t, 24*time.Hour, viper.GetDuration("cache.ttl"))
	assert.Empty(t, Used())
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("storage:\n  type: badger\nrefs:\n  type: sql\n"), 0o644))

	t.Setenv("UNLEASH_REFS_TYPE", "fs")

	require.NoError(t, Load(cfg))
	assert.Equal(t, "badger", viper.GetString("storage.type"))
	// 环境变量优先于配置文件
	assert.Equal(t, "fs", viper.GetString("refs.type"))
	assert.Equal(t, cfg, Used())
}

func TestLoad_BadFile(t *testing.T) {
	viper.Reset()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("storage: [unclosed"), 0o644))

	assert.Error(t, Load(cfg))
}
