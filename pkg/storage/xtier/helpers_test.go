package xtier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var genNames = [...]string{"primary", "secondary", "tertiary"}

// locate 返回持有 key 槽位的代（包括预留空槽位）。
func locate[V any](c *Cache[V], key string) []string {
	g := c.gens.Load()
	var found []string
	for i, t := range [...]*table[V]{g.primary, g.secondary, g.tertiary} {
		if _, ok := t.load(key); ok {
			found = append(found, genNames[i])
		}
	}
	return found
}

// recount 直接遍历分片统计有值条目与槽位，用于校验计数器。
func recount[V any](c *Cache[V]) (filled, slots int) {
	g := c.gens.Load()
	for _, t := range [...]*table[V]{g.primary, g.secondary, g.tertiary} {
		for i := range t.shards {
			s := &t.shards[i]
			s.mu.RLock()
			for _, sl := range s.m {
				slots++
				if sl.filled {
					filled++
				}
			}
			s.mu.RUnlock()
		}
	}
	return filled, slots
}

func newTestCache[V any](t *testing.T, cfg Config, opts ...Option) *Cache[V] {
	t.Helper()
	c, err := New[V](cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

// manualTicker 由测试手动驱动的 ticker。
type manualTicker struct {
	ch       chan time.Time
	mu       sync.Mutex
	interval time.Duration
	created  int
	stopped  int
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) option() Option {
	return withTicker(func(d time.Duration) ticker {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.interval = d
		m.created++
		return m
	})
}

func (m *manualTicker) Chan() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	m.stopped++
	m.mu.Unlock()
}

func (m *manualTicker) snapshot() (interval time.Duration, created, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval, m.created, m.stopped
}

// tick 发送一次 tick 并等待对应的轮转完成。
func tick[V any](t *testing.T, c *Cache[V], m *manualTicker) {
	t.Helper()
	before := c.Stats().Rotations
	select {
	case m.ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("eviction loop did not receive tick")
	}
	require.Eventually(t, func() bool {
		return c.Stats().Rotations > before
	}, time.Second, time.Millisecond)
}
