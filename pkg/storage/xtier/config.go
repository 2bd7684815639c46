package xtier

import (
	"math"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xtier/pkg/observability/xlog"
)

// Unbounded 表示不限制容量。CapacityLimit 取 0、负数或 Unbounded 时均关闭容量触发的淘汰。
const Unbounded = math.MaxInt

// minRotationInterval 定时轮转的最小间隔。
const minRotationInterval = time.Millisecond

// Config 定义缓存配置。所有字段的零值都是合法配置。
type Config struct {
	// InitialSize 每张代际表的预分配大小，仅影响内存分配，不影响正确性。
	InitialSize int

	// CapacityLimit 三代条目总数的软上限。
	// 写入前若占用已达上限，先执行一次轮转。<= 0 或 Unbounded 表示不限制。
	CapacityLimit int

	// Period 一个完整代际周期的时长。
	// > 0 时后台每 Period/3 轮转一次，三次轮转后未再写入的条目被丢弃；<= 0 不启动定时器。
	Period time.Duration
}

// capacity 返回生效的容量上限，0 表示不限制。
func (c Config) capacity() int64 {
	if c.CapacityLimit <= 0 || c.CapacityLimit == Unbounded {
		return 0
	}
	return int64(c.CapacityLimit)
}

// rotationInterval 返回单次轮转的间隔，0 表示关闭定时轮转。
func rotationInterval(period time.Duration) time.Duration {
	if period <= 0 {
		return 0
	}
	return max(period/3, minRotationInterval)
}

// =============================================================================
// 可选配置
// =============================================================================

// Option 定义缓存的可选配置函数类型。
type Option func(*options)

type options struct {
	name          string
	logger        xlog.Logger
	meterProvider metric.MeterProvider
	shards        int
	reserveOnMiss bool
	newTicker     func(time.Duration) ticker
}

func defaultOptions() *options {
	return &options{
		logger:        xlog.Discard(),
		shards:        defaultShards,
		reserveOnMiss: true,
		newTicker:     newRealTicker,
	}
}

// WithName 设置缓存名称，用于日志和指标的 cache 属性。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger 设置日志记录器，nil 被忽略（默认丢弃日志）。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider，默认使用全局 provider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) {
		if provider != nil {
			o.meterProvider = provider
		}
	}
}

// WithShards 设置每张代际表的分片数，会被规整为 2 的幂。
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = normalizeShards(n)
	}
}

// WithoutMissReservation 关闭未命中预留。
//
// 默认情况下 Get 未命中会在 primary 中为该 key 预留一个空槽位，
// 紧随其后的 Update 直接原地填充，无需新建条目。
// 读多写少且 key 空间很大的场景可以关闭它，避免空槽位占用容量。
func WithoutMissReservation() Option {
	return func(o *options) {
		o.reserveOnMiss = false
	}
}

// withTicker 替换定时器实现，仅供测试驱动轮转节奏。
func withTicker(fn func(time.Duration) ticker) Option {
	return func(o *options) {
		o.newTicker = fn
	}
}
