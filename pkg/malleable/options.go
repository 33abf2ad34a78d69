package malleable

import (
	"time"

	"unleash/pkg/lookup"

	"go.uber.org/zap"
)

type options struct {
	log       *zap.Logger
	cacheSize int
	now       func() time.Time
	probes    int
}

// Option 配置 MalleableCommit
type Option func(*options)

func defaultOptions() options {
	return options{
		log:       zap.NewNop(),
		cacheSize: lookup.DefaultCacheSize,
		now:       time.Now,
		probes:    8,
	}
}

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithCacheSize 设置查找链 LRU 容量，<= 0 关闭缓存
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithClock 替换时间源 (FromParent 用它给新 commit 打时间戳)
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithProbeConcurrency 设置 Save 时并发存在性检查的上限
func WithProbeConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.probes = n
		}
	}
}
