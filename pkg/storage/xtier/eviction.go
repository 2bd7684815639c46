package xtier

import (
	"context"
	"log/slog"
	"time"

	"github.com/omeyang/xtier/pkg/observability/xlog"
)

// 轮转触发来源，用于日志。
const (
	triggerCapacity = "capacity"
	triggerTimer    = "timer"
	triggerManual   = "manual"
	triggerClear    = "clear"
)

// IsEvictionRequired 报告是否启用了容量上限且三代总占用（含预留空槽位）已达到上限。
func (c *Cache[V]) IsEvictionRequired() bool {
	return c.evictionRequired()
}

func (c *Cache[V]) evictionRequired() bool {
	limit := c.capacity.Load()
	return limit > 0 && int64(c.gens.Load().occupancy()) >= limit
}

// evictIfRequiredLocked 在写入前检查容量，必要时执行一次轮转。调用方必须持有 c.mu。
//
// 设计决策: 每次写入最多轮转一次。连续轮转直到低于上限会把刚写满的一代立即清空，
// 一次轮转则保留两代数据，占用最多短暂超出上限两个条目。
func (c *Cache[V]) evictIfRequiredLocked() {
	if c.evictionRequired() {
		c.rotateLocked(triggerCapacity)
	}
}

// EvictStaleEntries 执行一次轮转：丢弃 tertiary，secondary 变为 tertiary，
// primary 变为 secondary，换上空表作为 primary。
func (c *Cache[V]) EvictStaleEntries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotateLocked(triggerManual)
}

// rotateLocked 执行一次轮转。调用方必须持有 c.mu。
func (c *Cache[V]) rotateLocked(trigger string) {
	old := c.gens.Load()
	evicted := old.tertiary.len()
	next := &generations[V]{
		primary:   c.newTable(),
		secondary: old.primary,
		tertiary:  old.secondary,
	}
	c.gens.Store(next)

	c.stats.rotations.Add(1)
	c.stats.evicted.Add(uint64(evicted))

	c.logger.Debug(context.Background(), "xtier: generations rotated",
		slog.String("trigger", trigger),
		xlog.Generation("tertiary"),
		xlog.Evicted(evicted),
		xlog.Size(next.len()),
	)
}

// ClearAllEntries 同步清空全部条目。
//
// 语义上等价于把 primary、secondary 并入 tertiary 后执行一次轮转：
// 三代一起成为最旧的一代并被丢弃。实现上直接换上空表，不逐条复制。
func (c *Cache[V]) ClearAllEntries() {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.gens.Load()
	evicted := old.len()
	c.gens.Store(&generations[V]{
		primary:   c.newTable(),
		secondary: c.newTable(),
		tertiary:  c.newTable(),
	})

	c.stats.rotations.Add(1)
	c.stats.evicted.Add(uint64(evicted))

	c.logger.Debug(context.Background(), "xtier: generations rotated",
		slog.String("trigger", triggerClear),
		xlog.Generation("all"),
		xlog.Evicted(evicted),
	)
}

// Clear 等价于 [Cache.ClearAllEntries]。
func (c *Cache[V]) Clear() {
	c.ClearAllEntries()
}

// =============================================================================
// 后台定时轮转
// =============================================================================

// ticker 抽象 time.Ticker，便于测试手动驱动。
type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func newRealTicker(d time.Duration) ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) Chan() <-chan time.Time { return r.t.C }
func (r realTicker) Stop() { r.t.Stop() }

// evictionTimer 是一次定时轮转任务的句柄。
type evictionTimer struct {
	stop chan struct{}
	done chan struct{}
}

// startEvictionLocked 按 period 启动后台轮转。调用方必须持有 c.timerMu。
func (c *Cache[V]) startEvictionLocked(period time.Duration) {
	c.period = period
	interval := rotationInterval(period)
	if interval == 0 {
		return
	}

	t := &evictionTimer{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.timer = t
	go c.evictionLoop(c.newTicker(interval), t)

	c.logger.Info(context.Background(), "xtier: eviction timer started",
		xlog.Duration(interval),
	)
}

func (c *Cache[V]) evictionLoop(tk ticker, t *evictionTimer) {
	defer close(t.done)
	defer tk.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-tk.Chan():
			c.mu.Lock()
			c.rotateLocked(triggerTimer)
			c.mu.Unlock()
		}
	}
}

// stopEvictionLocked 停止后台轮转并等待其退出。调用方必须持有 c.timerMu。
func (c *Cache[V]) stopEvictionLocked() bool {
	t := c.timer
	if t == nil {
		return false
	}
	c.timer = nil
	close(t.stop)
	<-t.done
	return true
}

// StopEviction 停止后台定时轮转。
// 已经开始的那一次轮转会执行完毕；重复调用是安全的空操作。
func (c *Cache[V]) StopEviction() {
	c.timerMu.Lock()
	stopped := c.stopEvictionLocked()
	c.timerMu.Unlock()

	if stopped {
		c.logger.Info(context.Background(), "xtier: eviction timer stopped")
	}
}

// EvictionRunning 报告后台定时轮转是否在运行。
func (c *Cache[V]) EvictionRunning() bool {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	return c.timer != nil
}

// Close 停止后台轮转并注销观测指标，实现 io.Closer。
// 该方法是幂等的；关闭后缓存仍可读写。
func (c *Cache[V]) Close() error {
	c.StopEviction()
	c.closeOnce.Do(func() {
		if c.metricsReg != nil {
			c.closeErr = c.metricsReg.Unregister()
		}
	})
	return c.closeErr
}
