package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"
	KeyOperation = "operation"

	// KeyCache 缓存实例名称
	KeyCache = "cache"
	// KeyGeneration 代际名称（primary/secondary/tertiary）
	KeyGeneration = "generation"
	// KeyEvicted 一次轮转丢弃的条目数
	KeyEvicted = "evicted"
	// KeySize 缓存当前条目数
	KeySize = "size"
)

// Err 创建错误属性，err 为 nil 时返回空属性（slog 会忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性，输出人类可读格式（如 "1.5s"）。
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Count 创建计数属性
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Component 创建组件名称属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名称属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Cache 创建缓存名称属性
func Cache(name string) slog.Attr {
	return slog.String(KeyCache, name)
}

// Generation 创建代际名称属性
func Generation(name string) slog.Attr {
	return slog.String(KeyGeneration, name)
}

// Evicted 创建淘汰数量属性
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// Size 创建条目数属性
func Size(n int) slog.Attr {
	return slog.Int(KeySize, n)
}
