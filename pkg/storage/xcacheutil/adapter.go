package xcacheutil

import (
	"reflect"
	"time"

	"github.com/omeyang/xtier/pkg/storage/xtier"
)

// Adapter 以平台缓存接口的形状暴露一个 xtier.Cache。
// 值以 any 存储，调用方负责类型断言。
type Adapter struct {
	name  string
	cache *xtier.Cache[any]
}

// NewAdapter 包装一个已有的缓存。
func NewAdapter(cache *xtier.Cache[any]) *Adapter {
	return &Adapter{name: cache.Name(), cache: cache}
}

// Name 返回缓存名称。
func (a *Adapter) Name() string { return a.name }

// Cache 返回底层的 xtier.Cache。
func (a *Adapter) Cache() *xtier.Cache[any] { return a.cache }

// Get 返回 key 对应的值。未命中时底层缓存会为 key 预留槽位。
func (a *Adapter) Get(key string) (any, bool) {
	return a.cache.Get(key)
}

// Put 写入值并返回此前的值。
//
// priority、ttl、sharingPolicy、dependencyIDs 仅为兼容调用方保留，不参与任何逻辑：
// 条目的存活时间完全由代际轮转决定。写入语义与 [Adapter.Set] 相同（原地更新，不提升）。
func (a *Adapter) Put(key string, value any, priority int, ttl time.Duration, sharingPolicy int, dependencyIDs []string) (any, error) {
	return a.Set(key, value)
}

// Set 原地更新 key 的值（map 风格的写入），返回此前的值。
func (a *Adapter) Set(key string, value any) (any, error) {
	prev, _, err := a.cache.Update(key, value)
	return prev, err
}

// Insert 写入值并把 key 提升到最新一代，返回此前的值。
func (a *Adapter) Insert(key string, value any) (any, error) {
	prev, _, err := a.cache.Insert(key, value)
	return prev, err
}

// Invalidate 删除 key，返回被删除的值。
func (a *Adapter) Invalidate(key string) (any, error) {
	prev, _, err := a.cache.Remove(key)
	return prev, err
}

// Clear 清空全部条目。
func (a *Adapter) Clear() { a.cache.ClearAllEntries() }

// Size 返回条目数。
func (a *Adapter) Size() int { return a.cache.Size() }

// IsEmpty 报告缓存是否为空。
func (a *Adapter) IsEmpty() bool { return a.cache.IsEmpty() }

// ContainsKey 报告 key 是否有值。
func (a *Adapter) ContainsKey(key string) bool { return a.cache.ContainsKey(key) }

// ContainsValue 报告是否存在等于 value 的值。
// 可比较的值用 == 比较；切片、map 等不可比较的值按 reflect.DeepEqual 比较内容。
func (a *Adapter) ContainsValue(value any) bool {
	return a.cache.ContainsValueFunc(func(v any) bool { return valuesEqual(v, value) })
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.ValueOf(a).Comparable() && reflect.ValueOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Keys 返回全部 key。
func (a *Adapter) Keys() []string { return a.cache.Keys() }

// Values 返回全部值。
func (a *Adapter) Values() []any { return a.cache.Values() }

// Entries 返回全部条目的快照。
func (a *Adapter) Entries() map[string]any { return a.cache.Entries() }
