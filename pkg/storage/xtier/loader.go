package xtier

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xtier/pkg/observability/xlog"
)

// DefaultLoadTimeout 单次回源的默认超时。
const DefaultLoadTimeout = 30 * time.Second

// LoadFunc 定义未命中时从后端加载值的函数类型。
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// LoaderOption 定义 Loader 的可选配置函数类型。
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	timeout       time.Duration
	retryAttempts uint
	retryDelay    time.Duration
	breaker       *gobreaker.Settings
	logger        xlog.Logger
}

// WithLoadTimeout 设置单次回源超时。d == 0 关闭超时，d < 0 使用默认值。
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(o *loaderOptions) {
		if d >= 0 {
			o.timeout = d
		}
	}
}

// WithLoadRetry 回源失败时最多尝试 attempts 次（含首次），delay 为退避的基础间隔。
// attempts <= 1 表示不重试。
func WithLoadRetry(attempts uint, delay time.Duration) LoaderOption {
	return func(o *loaderOptions) {
		o.retryAttempts = attempts
		o.retryDelay = delay
	}
}

// WithLoadBreaker 为回源加上熔断器，后端持续失败时直接返回 gobreaker.ErrOpenState。
// 重试在熔断器内部执行，一次 Load 只计一次成功或失败。
func WithLoadBreaker(st gobreaker.Settings) LoaderOption {
	return func(o *loaderOptions) {
		o.breaker = &st
	}
}

// WithLoaderLogger 设置 Loader 的日志记录器。
func WithLoaderLogger(logger xlog.Logger) LoaderOption {
	return func(o *loaderOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Loader 在 Cache 之上实现 Cache-Aside 读取：命中直接返回，
// 未命中时合并同一 key 的并发回源，加载成功后用 Update 写回缓存。
//
// 写回使用 Update 而非 Insert：Get 未命中时预留的空槽位会被原地填充。
type Loader[V any] struct {
	cache   *Cache[V]
	load    LoadFunc[V]
	group   singleflight.Group
	opts    loaderOptions
	breaker *gobreaker.CircuitBreaker[V]
}

// NewLoader 创建 Loader。
func NewLoader[V any](c *Cache[V], fn LoadFunc[V], opts ...LoaderOption) (*Loader[V], error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if fn == nil {
		return nil, ErrNilLoadFunc
	}

	o := loaderOptions{
		timeout: DefaultLoadTimeout,
		logger:  c.logger,
	}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(&o)
	}

	l := &Loader[V]{cache: c, load: fn, opts: o}
	if o.breaker != nil {
		l.breaker = gobreaker.NewCircuitBreaker[V](*o.breaker)
	}
	return l, nil
}

// Load 返回 key 对应的值，未命中时回源。
//
// 同一 key 的并发 Load 只触发一次回源（singleflight）。回源使用脱离调用方取消链的
// context（带 WithLoadTimeout 超时），调用方 ctx 取消只影响自身的等待，不影响其他等待者。
func (l *Loader[V]) Load(ctx context.Context, key string) (V, error) {
	var zero V
	if key == "" {
		return zero, ErrEmptyKey
	}
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		return l.loadAndStore(ctx, key)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		v, _ := r.Val.(V)
		return v, nil
	}
}

// Forget 让下一次 Load 不再等待 key 上正在进行的回源。
func (l *Loader[V]) Forget(key string) {
	l.group.Forget(key)
}

func (l *Loader[V]) loadAndStore(ctx context.Context, key string) (any, error) {
	loadCtx := context.WithoutCancel(ctx)
	if l.opts.timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(loadCtx, l.opts.timeout)
		defer cancel()
	}

	v, err := l.fetch(loadCtx, key)
	if err != nil {
		l.opts.logger.Warn(loadCtx, "xtier: load failed",
			xlog.Operation("load"), xlog.Err(err))
		return nil, err
	}
	if _, _, err := l.cache.Update(key, v); err != nil {
		return nil, err
	}
	return v, nil
}

// fetch 按 熔断器 → 重试 → 加载函数 的顺序执行一次回源。
func (l *Loader[V]) fetch(ctx context.Context, key string) (V, error) {
	call := func() (V, error) {
		return l.safeLoad(ctx, key)
	}

	if l.opts.retryAttempts > 1 {
		once := call
		call = func() (V, error) {
			return retry.NewWithData[V](
				retry.Context(ctx),
				retry.Attempts(l.opts.retryAttempts),
				retry.Delay(l.opts.retryDelay),
				retry.LastErrorOnly(true),
				retry.RetryIf(func(err error) bool {
					return !errors.Is(err, ErrLoadPanic)
				}),
			).Do(once)
		}
	}

	if l.breaker != nil {
		return l.breaker.Execute(call)
	}
	return call()
}

// safeLoad 调用加载函数并把 panic 转换为 ErrLoadPanic。
func (l *Loader[V]) safeLoad(ctx context.Context, key string) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrLoadPanic, r)
		}
	}()
	return l.load(ctx, key)
}
