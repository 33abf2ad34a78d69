package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/logging"
	"unleash/pkg/storage"
	"unleash/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultMaxObjectSize 是写入 Redis 的对象内容上限 (tree/commit 通常远小于它)
const DefaultMaxObjectSize = 64 << 10

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 缓存层
// 两类 Key:
//   - unleash:has:<hash>  存在性标记
//   - unleash:obj:<hash>  小对象的 CBOR 记录
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client // Redis 客户端
	ttl     time.Duration // 缓存过期时间 (例如 24h)
	maxSize int
	log     *zap.Logger
}

type Config struct {
	RedisURL      string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL           time.Duration // 过期时间
	MaxObjectSize int           // 0 表示使用 DefaultMaxObjectSize
}

// record 是 Redis 中缓存的对象格式
type record struct {
	Type string `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

func NewCachedStore(backend storage.Store, cfg Config, log *zap.Logger) (*CachedStore, error) {
	// 解析 URL
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	maxSize := cfg.MaxObjectSize
	if maxSize <= 0 {
		maxSize = DefaultMaxObjectSize
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		maxSize: maxSize,
		log:     logging.OrNop(log),
	}, nil
}

func (s *CachedStore) hasKey(hash types.Hash) string { return "unleash:has:" + string(hash) }
func (s *CachedStore) objKey(hash types.Hash) string { return "unleash:obj:" + string(hash) }

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	key := s.hasKey(hash)

	// 1. 查 Redis
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 缓存故障降级: 退化为无缓存模式，直接查底层
		s.log.Warn("redis exists failed", zap.String("hash", hash.Short()), zap.Error(err))
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.Has(ctx, hash)
	if err != nil {
		return false, err
	}

	// 3. 异步回填，不阻塞主流程
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.client.Set(fillCtx, key, "1", s.ttl).Err(); err != nil {
				s.log.Debug("redis fill failed", zap.String("hash", hash.Short()), zap.Error(err))
			}
		}()
	}

	return found, nil
}

// Put 写穿：先写底层，成功后再写缓存
func (s *CachedStore) Put(ctx context.Context, obj core.Object) error {
	exists, err := s.Has(ctx, obj.ID())
	if err != nil {
		return err
	}
	if exists {
		return nil // 幂等性：已存在
	}

	if err := s.backend.Put(ctx, obj); err != nil {
		return err
	}

	// 缓存写入失败不影响主流程
	s.client.Set(ctx, s.hasKey(obj.ID()), "1", s.ttl)
	s.storeRecord(ctx, obj.ID(), obj.Type(), obj.Bytes())
	return nil
}

// Get 小对象走 Redis，大对象 (通常是大 blob) 直接透传
func (s *CachedStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	raw, err := s.client.Get(ctx, s.objKey(hash)).Bytes()
	switch {
	case err == nil:
		var rec record
		if uerr := cbor.Unmarshal(raw, &rec); uerr == nil && core.HashObject(core.ObjectType(rec.Type), rec.Data) == hash {
			return io.NopCloser(bytes.NewReader(envelope(rec))), nil
		}
		s.log.Warn("dropping corrupt cache record", zap.String("hash", hash.Short()))
		s.client.Del(ctx, s.objKey(hash))
	case !errors.Is(err, redis.Nil):
		s.log.Warn("redis get failed", zap.String("hash", hash.Short()), zap.Error(err))
	}

	rc, err := s.backend.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if obj, derr := core.DecodeObject(data); derr == nil {
		s.storeRecord(ctx, hash, obj.Type(), obj.Bytes())
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ExpandHash 透传
func (s *CachedStore) ExpandHash(ctx context.Context, short types.HashPrefix) (types.Hash, error) {
	return storage.ExpandHash(ctx, s.backend, short)
}

// Close 关闭 Redis 连接
func (s *CachedStore) Close() error {
	return s.client.Close()
}

func (s *CachedStore) storeRecord(ctx context.Context, hash types.Hash, typ core.ObjectType, data []byte) {
	if len(data) > s.maxSize {
		return
	}
	raw, err := cbor.Marshal(record{Type: string(typ), Data: data})
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, s.objKey(hash), raw, s.ttl).Err(); err != nil {
		s.log.Debug("redis set failed", zap.String("hash", hash.Short()), zap.Error(err))
	}
}

func envelope(rec record) []byte {
	return append([]byte(fmt.Sprintf("%s %d\x00", rec.Type, len(rec.Data))), rec.Data...)
}
