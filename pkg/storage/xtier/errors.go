package xtier

import "errors"

var (
	// ErrEmptyKey 表示写操作传入了空字符串 key。
	// 空 key 无法作为代际表的键，属于调用方参数错误。
	ErrEmptyKey = errors.New("xtier: empty key")

	// ErrNilOption 表示传入了 nil 的 Option。
	ErrNilOption = errors.New("xtier: nil option")

	// ErrRegisterMetrics 表示向 MeterProvider 注册观测指标失败。
	ErrRegisterMetrics = errors.New("xtier: register metrics failed")
)

// Loader 相关错误。
var (
	// ErrNilCache 表示创建 Loader 时传入了 nil 的 Cache。
	ErrNilCache = errors.New("xtier: nil cache")

	// ErrNilLoadFunc 表示创建 Loader 时传入了 nil 的加载函数。
	ErrNilLoadFunc = errors.New("xtier: nil load function")

	// ErrLoadPanic 表示加载函数发生了 panic。
	// Loader 将 panic 转换为此错误返回，不向调用方扩散。
	ErrLoadPanic = errors.New("xtier: load function panicked")
)
