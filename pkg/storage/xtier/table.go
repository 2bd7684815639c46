package xtier

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// defaultShards 每张代际表的默认分片数，必须是 2 的幂。
const defaultShards = 32

// maxShards 分片数上限。
const maxShards = 1 << 12

// slot 代际表中的一个槽位。
// filled=false 表示未命中时预留的空槽位：它占用一个 key，但对外不可见。
type slot[V any] struct {
	value  V
	filled bool
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]slot[V]
}

// table 是一代（primary/secondary/tertiary 之一）的存储。
//
// 设计决策: 所有写入都发生在 Cache.mu 之内，分片锁只需协调"一个写者 + 多个读者"。
// 分片让读路径只和同分片的写入竞争，不同 key 的读写互不阻塞。
// 计数器在分片锁之外更新，Cache.mu 未被持有时与表内容精确一致。
type table[V any] struct {
	shards []shard[V]
	mask   uint64
	filled atomic.Int64 // 有值的条目数
	slots  atomic.Int64 // 全部槽位数（含预留空槽位）
}

// newTable 创建空表。sizeHint 仅用于预分配，不影响正确性。
func newTable[V any](shards, sizeHint int) *table[V] {
	t := &table[V]{
		shards: make([]shard[V], shards),
		mask:   uint64(shards - 1),
	}
	perShard := 0
	if sizeHint > 0 {
		perShard = (sizeHint + shards - 1) / shards
	}
	for i := range t.shards {
		t.shards[i].m = make(map[string]slot[V], perShard)
	}
	return t
}

func (t *table[V]) shardFor(key string) *shard[V] {
	return &t.shards[xxhash.Sum64String(key)&t.mask]
}

// load 查找 key 对应的槽位（包括预留空槽位）。
func (t *table[V]) load(key string) (slot[V], bool) {
	s := t.shardFor(key)
	s.mu.RLock()
	sl, ok := s.m[key]
	s.mu.RUnlock()
	return sl, ok
}

// store 写入值，覆盖已有槽位。返回写入前的槽位。
func (t *table[V]) store(key string, value V) (slot[V], bool) {
	s := t.shardFor(key)
	s.mu.Lock()
	prev, ok := s.m[key]
	s.m[key] = slot[V]{value: value, filled: true}
	s.mu.Unlock()

	if !ok {
		t.slots.Add(1)
	}
	if !prev.filled {
		t.filled.Add(1)
	}
	return prev, ok
}

// reserve 为 key 预留空槽位；key 已存在时不做任何事并返回 false。
func (t *table[V]) reserve(key string) bool {
	s := t.shardFor(key)
	s.mu.Lock()
	if _, ok := s.m[key]; ok {
		s.mu.Unlock()
		return false
	}
	s.m[key] = slot[V]{}
	s.mu.Unlock()

	t.slots.Add(1)
	return true
}

// delete 删除 key 的槽位，返回被删除的槽位。
func (t *table[V]) delete(key string) (slot[V], bool) {
	s := t.shardFor(key)
	s.mu.Lock()
	prev, ok := s.m[key]
	if ok {
		delete(s.m, key)
	}
	s.mu.Unlock()

	if ok {
		t.slots.Add(-1)
		if prev.filled {
			t.filled.Add(-1)
		}
	}
	return prev, ok
}

// len 返回有值的条目数。
func (t *table[V]) len() int {
	return int(t.filled.Load())
}

// occupancy 返回槽位数（含预留空槽位）。
func (t *table[V]) occupancy() int {
	return int(t.slots.Load())
}

// each 按分片依次遍历有值的条目，fn 返回 false 时停止并返回 false。
//
// 每个分片先在读锁内复制快照，释放锁后再回调，
// 回调中可以安全地调用 Cache 的任意方法。
func (t *table[V]) each(fn func(key string, value V) bool) bool {
	type pair struct {
		key   string
		value V
	}
	var buf []pair
	for i := range t.shards {
		s := &t.shards[i]
		buf = buf[:0]
		s.mu.RLock()
		for k, sl := range s.m {
			if sl.filled {
				buf = append(buf, pair{key: k, value: sl.value})
			}
		}
		s.mu.RUnlock()

		for _, p := range buf {
			if !fn(p.key, p.value) {
				return false
			}
		}
	}
	return true
}

// normalizeShards 将分片数规整为 [1, maxShards] 内的 2 的幂，n <= 0 时使用默认值。
func normalizeShards(n int) int {
	if n <= 0 {
		return defaultShards
	}
	if n > maxShards {
		n = maxShards
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
