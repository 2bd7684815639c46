package xtier

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xtier/pkg/observability/xlog"
)

// generations 是三代表的一次快照，整体通过原子指针替换。
type generations[V any] struct {
	primary   *table[V]
	secondary *table[V]
	tertiary  *table[V]
}

// find 依次在 primary、secondary、tertiary 中查找 key，返回槽位和所在的表。
// 未找到时 tbl 为 nil。
func (g *generations[V]) find(key string) (sl slot[V], tbl *table[V]) {
	for _, t := range [...]*table[V]{g.primary, g.secondary, g.tertiary} {
		if sl, ok := t.load(key); ok {
			return sl, t
		}
	}
	return sl, nil
}

func (g *generations[V]) len() int {
	return g.primary.len() + g.secondary.len() + g.tertiary.len()
}

func (g *generations[V]) occupancy() int {
	return g.primary.occupancy() + g.secondary.occupancy() + g.tertiary.occupancy()
}

// Cache 是三代近似 LRU 缓存。
// 必须通过 [New] 创建，零值不可用。所有方法都是并发安全的。
type Cache[V any] struct {
	name   string
	logger xlog.Logger

	// mu 串行化所有写操作与轮转。
	mu   sync.Mutex
	gens atomic.Pointer[generations[V]]
	// moves 在提升插入移动 key 的前后各加一，奇数表示有 key 正在两代之间移动。
	// 只在持有 mu 时修改。
	moves atomic.Uint64

	capacity    atomic.Int64
	initialSize atomic.Int64
	shards      int
	reserve     bool

	stats      counters
	metricsReg metric.Registration

	// timerMu 保护后台轮转定时器的启停，与 mu 相互独立。
	timerMu   sync.Mutex
	period    time.Duration
	timer     *evictionTimer
	newTicker func(time.Duration) ticker
	closeOnce sync.Once
	closeErr  error
}

// New 创建缓存实例。cfg.Period > 0 时立即启动后台轮转。
//
// 容量与周期的非正值表示关闭对应的淘汰触发方式，不会返回错误；
// 只有 nil Option 或指标注册失败会返回错误。
func New[V any](cfg Config, opts ...Option) (*Cache[V], error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(o)
	}

	c := &Cache[V]{
		name:      o.name,
		logger:    o.logger,
		shards:    o.shards,
		reserve:   o.reserveOnMiss,
		newTicker: o.newTicker,
	}
	if c.name != "" {
		c.logger = c.logger.With(xlog.Cache(c.name))
	}
	c.capacity.Store(cfg.capacity())
	c.initialSize.Store(int64(max(cfg.InitialSize, 0)))
	c.gens.Store(&generations[V]{
		primary:   c.newTable(),
		secondary: c.newTable(),
		tertiary:  c.newTable(),
	})

	provider := o.meterProvider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	if err := c.registerMetrics(provider); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegisterMetrics, err)
	}

	c.timerMu.Lock()
	c.startEvictionLocked(cfg.Period)
	c.timerMu.Unlock()

	return c, nil
}

// lookupRetries 是无锁查找因并发提升而重试的次数，用尽后在 c.mu 下再查一次。
const lookupRetries = 3

// lookup 查找 key 当前所在的槽位。
//
// 无锁扫描可能与提升插入交错：扫描到 primary 时 key 尚未写入，扫描到旧代时已被删除。
// 因此只有扫描前后 moves 相同且为偶数时，未命中才可信，否则重试。
func (c *Cache[V]) lookup(key string) (slot[V], *table[V]) {
	for range lookupRetries {
		seq := c.moves.Load()
		sl, tbl := c.gens.Load().find(key)
		if tbl != nil || (seq&1 == 0 && c.moves.Load() == seq) {
			return sl, tbl
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens.Load().find(key)
}

func (c *Cache[V]) newTable() *table[V] {
	return newTable[V](c.shards, int(c.initialSize.Load()))
}

// Name 返回缓存名称。
func (c *Cache[V]) Name() string { return c.name }

// =============================================================================
// 读操作
// =============================================================================

// Get 依次在 primary、secondary、tertiary 中查找 key，返回第一个命中的值。
//
// 未命中时（且未关闭预留）在 primary 中为 key 预留一个空槽位，
// 使紧随其后的 Update 成为原地填充。预留是 best-effort：
// 写锁繁忙或容量已满时跳过。
// 查找与提升插入持续交错时 Get 会退回到写锁下查找，见 [Cache.lookup]。
// 空 key 直接视为未命中。
func (c *Cache[V]) Get(key string) (V, bool) {
	sl, tbl := c.lookup(key)
	if tbl != nil && sl.filled {
		c.stats.hits.Add(1)
		return sl.value, true
	}
	c.stats.misses.Add(1)
	if tbl == nil && c.reserve && key != "" {
		c.tryReserve(key)
	}
	var zero V
	return zero, false
}

// tryReserve 在 primary 中为 key 预留空槽位。
func (c *Cache[V]) tryReserve(key string) {
	if !c.mu.TryLock() {
		return
	}
	defer c.mu.Unlock()

	if c.evictionRequired() {
		return
	}
	g := c.gens.Load()
	if _, tbl := g.find(key); tbl != nil {
		return
	}
	if g.primary.reserve(key) {
		c.stats.reservations.Add(1)
	}
}

// Size 返回三代中有值条目的总数（不含预留空槽位）。
func (c *Cache[V]) Size() int {
	return c.gens.Load().len()
}

// IsEmpty 报告缓存是否没有任何有值条目。
func (c *Cache[V]) IsEmpty() bool {
	return c.Size() == 0
}

// ContainsKey 报告 key 是否有值。不会产生预留。
func (c *Cache[V]) ContainsKey(key string) bool {
	sl, tbl := c.lookup(key)
	return tbl != nil && sl.filled
}

// ContainsValueFunc 报告是否存在满足 match 的值。复杂度 O(n)。
func (c *Cache[V]) ContainsValueFunc(match func(V) bool) bool {
	for _, v := range c.All() {
		if match(v) {
			return true
		}
	}
	return false
}

// ContainsValue 报告缓存中是否存在等于 value 的值。复杂度 O(n)。
func ContainsValue[V comparable](c *Cache[V], value V) bool {
	return c.ContainsValueFunc(func(v V) bool { return v == value })
}

// All 返回遍历全部有值条目的迭代器，不保证顺序。
//
// 迭代基于调用时刻的三代快照；遍历期间的并发写入可能可见也可能不可见。
func (c *Cache[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		g := c.gens.Load()
		for _, t := range [...]*table[V]{g.primary, g.secondary, g.tertiary} {
			if !t.each(yield) {
				return
			}
		}
	}
}

// Keys 返回全部有值条目的 key，不保证顺序。
func (c *Cache[V]) Keys() []string {
	keys := make([]string, 0, c.Size())
	for k := range c.All() {
		keys = append(keys, k)
	}
	return keys
}

// Values 返回全部有值条目的值，不保证顺序。值不会被复制。
func (c *Cache[V]) Values() []V {
	values := make([]V, 0, c.Size())
	for _, v := range c.All() {
		values = append(values, v)
	}
	return values
}

// Entries 返回全部有值条目的快照。
func (c *Cache[V]) Entries() map[string]V {
	entries := make(map[string]V, c.Size())
	for k, v := range c.All() {
		entries[k] = v
	}
	return entries
}

// =============================================================================
// 写操作
// =============================================================================

// Insert 将 key 写入 primary，并从 secondary/tertiary 中移除（提升）。
// 返回写入前的值；existed 为 false 表示此前没有值。
//
// 写入前若 [Cache.IsEvictionRequired] 成立，先执行一次轮转。
func (c *Cache[V]) Insert(key string, value V) (prev V, existed bool, err error) {
	if key == "" {
		return prev, false, ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictIfRequiredLocked()

	g := c.gens.Load()
	old, src := g.find(key)
	if src == nil || src == g.primary {
		g.primary.store(key, value)
	} else {
		// 移动期间 moves 为奇数，并发的无锁查找据此重试，不会把 key 误判为不存在。
		c.moves.Add(1)
		g.primary.store(key, value)
		src.delete(key)
		c.moves.Add(1)
	}
	c.stats.inserts.Add(1)
	return old.value, old.filled, nil
}

// Update 在 key 当前所在的代中原地替换值，不提升到 primary；
// key 不存在时写入 primary。返回写入前的值。
//
// 写入前若 [Cache.IsEvictionRequired] 成立，先执行一次轮转。
func (c *Cache[V]) Update(key string, value V) (prev V, existed bool, err error) {
	if key == "" {
		return prev, false, ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictIfRequiredLocked()

	g := c.gens.Load()
	old, dst := g.find(key)
	if dst == nil {
		dst = g.primary
	}
	dst.store(key, value)
	c.stats.updates.Add(1)
	return old.value, old.filled, nil
}

// Put 等价于 [Cache.Update]，对应 map 风格的 put 语义。
func (c *Cache[V]) Put(key string, value V) (prev V, existed bool, err error) {
	return c.Update(key, value)
}

// Remove 从 key 所在的代中删除它，返回被删除的值。
// 删除预留空槽位时 existed 为 false。
func (c *Cache[V]) Remove(key string) (prev V, existed bool, err error) {
	if key == "" {
		return prev, false, ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old, src := c.gens.Load().find(key)
	if src == nil {
		return prev, false, nil
	}
	src.delete(key)
	if old.filled {
		c.stats.removes.Add(1)
	}
	return old.value, old.filled, nil
}

// =============================================================================
// 运行时配置
// =============================================================================

// Reconfigure 在运行时调整容量上限、预分配大小和轮转周期。
// 轮转间隔变化时重启后台定时器，间隔不变时定时器保持原有节奏。
// 定时器此前已被 [Cache.StopEviction] 停止时，按新周期重新启动。
func (c *Cache[V]) Reconfigure(cfg Config) {
	c.mu.Lock()
	c.capacity.Store(cfg.capacity())
	c.initialSize.Store(int64(max(cfg.InitialSize, 0)))
	c.mu.Unlock()

	c.timerMu.Lock()
	if c.timer == nil || rotationInterval(cfg.Period) != rotationInterval(c.period) {
		c.stopEvictionLocked()
		c.startEvictionLocked(cfg.Period)
	} else {
		c.period = cfg.Period
	}
	c.timerMu.Unlock()

	c.logger.Info(context.Background(), "xtier: cache reconfigured",
		xlog.Count(cfg.CapacityLimit),
		xlog.Duration(cfg.Period),
	)
}

// Config 返回当前生效的配置。
func (c *Cache[V]) Config() Config {
	c.timerMu.Lock()
	period := c.period
	c.timerMu.Unlock()

	return Config{
		InitialSize:   int(c.initialSize.Load()),
		CapacityLimit: int(c.capacity.Load()),
		Period:        period,
	}
}
