package xtier

import (
	"context"
	"math"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/omeyang/xtier/xtier"

	metricSize      = "xtier.cache.size"
	metricHits      = "xtier.cache.hits"
	metricMisses    = "xtier.cache.misses"
	metricRotations = "xtier.cache.rotations"
	metricEvicted   = "xtier.cache.evicted"

	attrCache = "cache"
)

// Stats 缓存统计信息快照。
type Stats struct {
	// Hits 命中次数。
	Hits uint64
	// Misses 未命中次数（包括命中预留空槽位）。
	Misses uint64
	// Inserts Insert 调用次数。
	Inserts uint64
	// Updates Update/Put 调用次数。
	Updates uint64
	// Removes 实际删除了值的 Remove 次数。
	Removes uint64
	// Reservations 未命中时创建的预留空槽位数。
	Reservations uint64
	// Rotations 轮转次数（含清空）。
	Rotations uint64
	// Evicted 因轮转或清空被丢弃的条目数。
	Evicted uint64
	// Size 当前有值条目数。
	Size int
	// Occupancy 当前槽位占用（含预留空槽位），容量淘汰以此为准。
	Occupancy int
}

// HitRatio 返回命中率 (0.0 - 1.0)，没有任何读操作时返回 0。
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits         atomic.Uint64
	misses       atomic.Uint64
	inserts      atomic.Uint64
	updates      atomic.Uint64
	removes      atomic.Uint64
	reservations atomic.Uint64
	rotations    atomic.Uint64
	evicted      atomic.Uint64
}

// Stats 返回统计信息快照。各字段分别原子读取，彼此之间不保证同一时刻。
func (c *Cache[V]) Stats() Stats {
	g := c.gens.Load()
	return Stats{
		Hits:         c.stats.hits.Load(),
		Misses:       c.stats.misses.Load(),
		Inserts:      c.stats.inserts.Load(),
		Updates:      c.stats.updates.Load(),
		Removes:      c.stats.removes.Load(),
		Reservations: c.stats.reservations.Load(),
		Rotations:    c.stats.rotations.Load(),
		Evicted:      c.stats.evicted.Load(),
		Size:         g.len(),
		Occupancy:    g.occupancy(),
	}
}

// registerMetrics 注册异步观测指标，采集时读取 Stats 快照。
func (c *Cache[V]) registerMetrics(provider metric.MeterProvider) error {
	meter := provider.Meter(instrumentationName)

	size, err := meter.Int64ObservableGauge(metricSize,
		metric.WithDescription("entries currently held across all generations"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return err
	}
	hits, err := meter.Int64ObservableCounter(metricHits,
		metric.WithDescription("cache lookups that returned a value"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		return err
	}
	misses, err := meter.Int64ObservableCounter(metricMisses,
		metric.WithDescription("cache lookups that returned no value"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		return err
	}
	rotations, err := meter.Int64ObservableCounter(metricRotations,
		metric.WithDescription("generation rotations"),
		metric.WithUnit("{rotation}"))
	if err != nil {
		return err
	}
	evicted, err := meter.Int64ObservableCounter(metricEvicted,
		metric.WithDescription("entries dropped by rotation"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return err
	}

	attrs := metric.WithAttributes(attribute.String(attrCache, c.name))
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := c.Stats()
		o.ObserveInt64(size, int64(st.Size), attrs)
		o.ObserveInt64(hits, clampInt64(st.Hits), attrs)
		o.ObserveInt64(misses, clampInt64(st.Misses), attrs)
		o.ObserveInt64(rotations, clampInt64(st.Rotations), attrs)
		o.ObserveInt64(evicted, clampInt64(st.Evicted), attrs)
		return nil
	}, size, hits, misses, rotations, evicted)
	if err != nil {
		return err
	}
	c.metricsReg = reg
	return nil
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
