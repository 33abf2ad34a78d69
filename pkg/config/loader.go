package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RepoDir 是仓库元数据目录名
const RepoDir = ".unleash"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 当前目录 -> ./.unleash -> ~/.unleash
		viper.AddConfigPath(".")
		viper.AddConfigPath(RepoDir)
		viper.AddConfigPath(filepath.Join(home, RepoDir))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// 3. 环境变量 (UNLEASH_STORAGE_TYPE 等)
	viper.SetEnvPrefix("UNLEASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件，找不到不算错
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return nil
}

// Used 返回实际使用的配置文件，没有则为空
func Used() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	// 存储
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(RepoDir, "objects"))
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.prefix", "objects/")

	// 缓存 (cache.redis_url 为空时不启用)
	viper.SetDefault("cache.ttl", 24*time.Hour)
	viper.SetDefault("cache.max_object_size", 64<<10)
	viper.SetDefault("lookup.cache_size", 1024)

	// 引用
	viper.SetDefault("refs.type", "fs")
	viper.SetDefault("refs.path", RepoDir)

	// 数据库
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", filepath.Join(RepoDir, "meta.db"))
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.index_commits", false)

	// 身份与日志
	viper.SetDefault("user.name", "unleash")
	viper.SetDefault("user.email", "unleash@localhost")
	viper.SetDefault("log.level", "warn")
}
