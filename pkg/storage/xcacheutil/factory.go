package xcacheutil

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xtier/pkg/observability/xlog"
	"github.com/omeyang/xtier/pkg/storage/xtier"
)

// scheduleParser 解析失效计划：标准 5 字段表达式与 @every/@hourly 等描述符。
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// FactoryOption 定义 Factory 的可选配置函数类型。
type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	logger    xlog.Logger
	cacheOpts []xtier.Option
	schedule  string
}

// WithLogger 设置日志记录器，同时传给 Factory 创建的每个缓存。
func WithLogger(logger xlog.Logger) FactoryOption {
	return func(o *factoryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCacheOptions 追加创建缓存时使用的 xtier 选项（如 MeterProvider、分片数）。
func WithCacheOptions(opts ...xtier.Option) FactoryOption {
	return func(o *factoryOptions) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// WithInvalidationSchedule 按 cron 表达式定期清空全部缓存，例如 "0 3 * * *" 或 "@every 1h"。
func WithInvalidationSchedule(spec string) FactoryOption {
	return func(o *factoryOptions) {
		o.schedule = spec
	}
}

// Factory 管理一组具名缓存。
//
// 同名的 Initialize 返回同一个实例，多个组件可以共享缓存而无需互相传递引用。
// Factory 关闭后不能再创建缓存，已创建的缓存的后台轮转全部停止。
type Factory struct {
	logger    xlog.Logger
	cacheOpts []xtier.Option
	cron      *cron.Cron

	mu       sync.Mutex
	caches   map[string]*Adapter
	closed   bool
	entry    cron.EntryID
	schedule string
}

// NewFactory 创建 Factory。
func NewFactory(opts ...FactoryOption) (*Factory, error) {
	o := &factoryOptions{logger: xlog.Discard()}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(o)
	}

	f := &Factory{
		logger:    o.logger.With(xlog.Component("xcacheutil")),
		cacheOpts: o.cacheOpts,
		cron:      cron.New(cron.WithParser(scheduleParser)),
		caches:    make(map[string]*Adapter),
	}

	f.mu.Lock()
	err := f.setScheduleLocked(o.schedule)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// IsCacheAvailable 报告 Factory 是否可以创建缓存。
func (f *Factory) IsCacheAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

// Initialize 返回名为 name 的缓存，不存在时按给定参数创建。
//
// timeout 是一个完整代际周期：条目在 timeout 内没有再次写入就会被丢弃，<= 0 不启用定时轮转。
// 已存在的缓存直接返回，不会按新参数调整；需要调整时使用 [Factory.Apply]。
func (f *Factory) Initialize(name string, initialSize, capacityLimit int, timeout time.Duration) (*Adapter, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if a, ok := f.caches[name]; ok {
		return a, nil
	}
	return f.createLocked(name, xtier.Config{
		InitialSize:   initialSize,
		CapacityLimit: capacityLimit,
		Period:        timeout,
	})
}

func (f *Factory) createLocked(name string, cfg xtier.Config) (*Adapter, error) {
	opts := append([]xtier.Option{xtier.WithName(name), xtier.WithLogger(f.logger)}, f.cacheOpts...)
	c, err := xtier.New[any](cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("xcacheutil: create cache %s: %w", name, err)
	}
	a := NewAdapter(c)
	f.caches[name] = a

	f.logger.Info(context.Background(), "xcacheutil: cache created",
		xlog.Cache(name),
		xlog.Count(cfg.CapacityLimit),
		xlog.Duration(cfg.Period),
	)
	return a, nil
}

// Lookup 返回名为 name 的缓存。
func (f *Factory) Lookup(name string) (*Adapter, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.caches[name]
	return a, ok
}

// Names 返回全部缓存名，按字典序排列。
func (f *Factory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.caches))
}

// Invalidate 清空名为 name 的缓存，返回该缓存是否存在。
func (f *Factory) Invalidate(name string) bool {
	a, ok := f.Lookup(name)
	if ok {
		a.Clear()
	}
	return ok
}

// ClearAll 清空全部缓存，返回被清空的缓存数。
func (f *Factory) ClearAll() int {
	f.mu.Lock()
	adapters := slices.Collect(maps.Values(f.caches))
	f.mu.Unlock()

	for _, a := range adapters {
		a.Clear()
	}
	return len(adapters)
}

// Remove 停止并移除名为 name 的缓存。
func (f *Factory) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeLocked(name)
}

func (f *Factory) removeLocked(name string) error {
	a, ok := f.caches[name]
	if !ok {
		return nil
	}
	delete(f.caches, name)
	f.logger.Info(context.Background(), "xcacheutil: cache removed", xlog.Cache(name))
	return a.cache.Close()
}

// Apply 使 Factory 与配置一致：创建新增的缓存，调整已有缓存的容量与周期，
// 移除配置中不再出现的缓存，并替换失效计划。
//
// 单个缓存失败不影响其余缓存，全部错误合并返回。
func (f *Factory) Apply(cfg FileConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(cfg.Caches)) {
		cc := cfg.Caches[name]
		tc := xtier.Config{
			InitialSize:   cc.InitialSize,
			CapacityLimit: cc.CapacityLimit,
			Period:        cc.Timeout,
		}
		if a, ok := f.caches[name]; ok {
			a.cache.Reconfigure(tc)
			continue
		}
		if _, err := f.createLocked(name, tc); err != nil {
			errs = append(errs, err)
		}
	}
	for name := range f.caches {
		if _, ok := cfg.Caches[name]; !ok {
			errs = append(errs, f.removeLocked(name))
		}
	}
	errs = append(errs, f.setScheduleLocked(cfg.InvalidateSchedule))
	return errors.Join(errs...)
}

// Schedule 返回当前的失效计划，空表示未启用。
func (f *Factory) Schedule() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedule
}

// setScheduleLocked 替换失效计划。调用方必须持有 f.mu。
func (f *Factory) setScheduleLocked(spec string) error {
	if spec == f.schedule {
		return nil
	}
	if spec != "" {
		id, err := f.cron.AddFunc(spec, f.runInvalidation)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
		if f.entry != 0 {
			f.cron.Remove(f.entry)
		}
		f.entry = id
		f.cron.Start()
	} else {
		f.cron.Remove(f.entry)
		f.entry = 0
	}
	f.schedule = spec
	return nil
}

func (f *Factory) runInvalidation() {
	n := f.ClearAll()
	f.logger.Info(context.Background(), "xcacheutil: scheduled invalidation", xlog.Count(n))
}

// Close 停止失效计划和全部缓存的后台轮转。该方法是幂等的。
// 已返回给调用方的 Adapter 仍可读写，只是不再定时轮转。
func (f *Factory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	adapters := f.caches
	f.caches = make(map[string]*Adapter)
	f.mu.Unlock()

	// 在锁外等待：正在执行的失效任务需要获取 f.mu
	<-f.cron.Stop().Done()

	var errs []error
	for _, a := range adapters {
		errs = append(errs, a.cache.Close())
	}
	return errors.Join(errs...)
}
