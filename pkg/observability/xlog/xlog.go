package xlog

import (
	"context"
	"log/slog"
)

// Logger 是 xtier 各组件接收的日志依赖。
//
// 缓存、Loader、Factory 与 Watcher 都通过 Option 注入 Logger，未注入时使用 [Discard]。
// 只接受 slog.Attr，属性通常由 attrs.go 中的构造函数生成，例如 [Cache]、[Evicted]。
type Logger interface {
	Debug(ctx context.Context, msg string, attrs ...slog.Attr)
	Info(ctx context.Context, msg string, attrs ...slog.Attr)
	Warn(ctx context.Context, msg string, attrs ...slog.Attr)
	Error(ctx context.Context, msg string, attrs ...slog.Attr)

	// With 返回追加了 attrs 的 Logger。派生实例与原实例共用同一个级别，
	// 对任一实例调用 SetLevel 都会影响全部派生实例。
	With(attrs ...slog.Attr) Logger
}

// Leveler 在运行期调整级别，不需要重建 handler。
type Leveler interface {
	SetLevel(level Level)
	GetLevel() Level
	Enabled(ctx context.Context, level Level) bool
}

// LoggerWithLevel 是 [Builder.Build] 的返回类型。
type LoggerWithLevel interface {
	Logger
	Leveler
}
