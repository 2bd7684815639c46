package xlog

import (
	"context"
	"log/slog"
)

var _ Logger = discardLogger{}

// discardLogger 丢弃所有日志，不产生任何分配。
type discardLogger struct{}

// Discard 返回丢弃所有日志的 Logger。
// 库内组件在调用方未注入 Logger 时使用它，避免向 stderr 输出未经配置的日志。
func Discard() Logger { return discardLogger{} }

func (discardLogger) Debug(context.Context, string, ...slog.Attr) {}
func (discardLogger) Info(context.Context, string, ...slog.Attr) {}
func (discardLogger) Warn(context.Context, string, ...slog.Attr) {}
func (discardLogger) Error(context.Context, string, ...slog.Attr) {}
func (d discardLogger) With(...slog.Attr) Logger { return d }
