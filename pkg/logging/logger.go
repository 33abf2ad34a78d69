package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger 按级别名 ("debug", "info", "warn" ...) 构建 zap logger
// CLI 输出给人看，所以用 development 编码 (console)，而不是 JSON
func NewLogger(level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.DisableStacktrace = true

	return config.Build()
}

// OrNop 把 nil logger 替换为 no-op，供各组件的 Options 使用
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
