// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"unleash/pkg/logging"
	"unleash/pkg/malleable"
	"unleash/pkg/meta"
	"unleash/pkg/refs"
	"unleash/pkg/storage"
	"unleash/pkg/storage/badger"
	"unleash/pkg/storage/cache"
	"unleash/pkg/storage/disk"
	"unleash/pkg/storage/memory"
	"unleash/pkg/storage/s3"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// App 是整个应用程序的依赖容器
// 它持有对象存储、引用管理与可选的 SQL 元数据
type App struct {
	Store storage.Store
	Refs  *refs.Manager
	Meta  *meta.Repository // 未启用 SQL 时为 nil
	Log   *zap.Logger

	RepoPath  string
	CacheSize int

	closers []io.Closer
}

// NewApp 按 Viper 配置组装依赖，不关心具体的 CLI 命令
func NewApp(ctx context.Context, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)

	repoPath := viper.GetString("refs.path")
	if repoPath == "" {
		return nil, fmt.Errorf("refs path not set")
	}

	a := &App{
		Log:       log,
		RepoPath:  repoPath,
		CacheSize: viper.GetInt("lookup.cache_size"),
	}

	// 1. 对象存储
	store, err := initStore(ctx, repoPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a.track(store)

	// 2. 可选的 Redis 缓存层
	if url := viper.GetString("cache.redis_url"); url != "" {
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL:      url,
			TTL:           viper.GetDuration("cache.ttl"),
			MaxObjectSize: viper.GetInt("cache.max_object_size"),
		}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.track(cached)
		store = cached
	}
	a.Store = store

	// 3. 元数据库 (SQL 引用或提交索引需要)
	refType := viper.GetString("refs.type")
	if refType == "sql" || viper.GetBool("database.index_commits") {
		db, err := meta.NewDB(ctx, dbConfig())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db)
		a.Meta = meta.NewRepository(db)
	}

	// 4. 引用存储
	var refStore refs.Store
	switch refType {
	case "fs":
		fs, err := refs.NewFSStore(repoPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		refStore = fs
	case "sql":
		refStore = meta.NewRefStore(a.Meta)
	default:
		a.Close()
		return nil, fmt.Errorf("unsupported refs type: %s", refType)
	}
	a.Refs = refs.NewManager(refStore)

	log.Debug("app initialized",
		zap.String("storage", viper.GetString("storage.type")),
		zap.String("refs", refType),
		zap.Bool("meta", a.Meta != nil),
	)
	return a, nil
}

// initStore 根据 storage.type 选择对象存储后端
func initStore(ctx context.Context, repoPath string, log *zap.Logger) (storage.Store, error) {
	storeType := viper.GetString("storage.type")
	storePath := viper.GetString("storage.path")
	if storePath == "" {
		storePath = filepath.Join(repoPath, "objects")
	}

	switch storeType {
	case "disk", "":
		return disk.NewAdapter(storePath)
	case "badger":
		return badger.Open(storePath)
	case "memory":
		return memory.NewAdapter(), nil
	case "s3":
		return s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			Prefix:          viper.GetString("storage.s3.prefix"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
		}, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storeType)
	}
}

func dbConfig() meta.Config {
	return meta.Config{
		Driver:   viper.GetString("database.driver"),
		Path:     viper.GetString("database.path"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
		LogLevel: viper.GetString("database.log_level"),
	}
}

func (a *App) track(s storage.Store) {
	if c, ok := s.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// CommitOptions 返回构造 MalleableCommit 时使用的选项
func (a *App) CommitOptions() []malleable.Option {
	return []malleable.Option{
		malleable.WithLogger(a.Log),
		malleable.WithCacheSize(a.CacheSize),
	}
}

// Close 逆序释放资源 (缓存层先于后端)
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
