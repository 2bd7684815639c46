package xtier

import (
	"strconv"
	"testing"

	"github.com/dgraph-io/ristretto/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const benchKeys = 1 << 14

func benchKeySet() []string {
	keys := make([]string, benchKeys)
	for i := range keys {
		keys[i] = "key-" + strconv.Itoa(i)
	}
	return keys
}

// =============================================================================
// 基本操作基准测试
// =============================================================================

func BenchmarkCache_Get(b *testing.B) {
	c, err := New[int](Config{})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })
	keys := benchKeySet()
	for i, k := range keys {
		_, _, _ = c.Insert(k, i)
	}

	b.ReportAllocs()
	i := 0
	for b.Loop() {
		_, _ = c.Get(keys[i&(benchKeys-1)])
		i++
	}
}

func BenchmarkCache_Get_Tertiary(b *testing.B) {
	c, err := New[int](Config{})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })
	_, _, _ = c.Insert("k", 1)
	c.EvictStaleEntries()
	c.EvictStaleEntries()

	b.ReportAllocs()
	for b.Loop() {
		_, _ = c.Get("k")
	}
}

func BenchmarkCache_Insert(b *testing.B) {
	c, err := New[int](Config{CapacityLimit: benchKeys})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })
	keys := benchKeySet()

	b.ReportAllocs()
	i := 0
	for b.Loop() {
		_, _, _ = c.Insert(keys[i&(benchKeys-1)], i)
		i++
	}
}

func BenchmarkCache_Update(b *testing.B) {
	c, err := New[int](Config{})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })
	keys := benchKeySet()
	for i, k := range keys {
		_, _, _ = c.Insert(k, i)
	}

	b.ReportAllocs()
	i := 0
	for b.Loop() {
		_, _, _ = c.Update(keys[i&(benchKeys-1)], i)
		i++
	}
}

func BenchmarkCache_Rotate(b *testing.B) {
	c, err := New[int](Config{InitialSize: 1024})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	b.ReportAllocs()
	for b.Loop() {
		c.EvictStaleEntries()
	}
}

// =============================================================================
// 并发基准测试
// =============================================================================

func BenchmarkCache_Parallel_ReadHeavy(b *testing.B) {
	c, err := New[int](Config{CapacityLimit: benchKeys * 2})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })
	keys := benchKeySet()
	for i, k := range keys {
		_, _, _ = c.Insert(k, i)
	}

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			k := keys[i&(benchKeys-1)]
			if i%10 == 0 {
				_, _, _ = c.Insert(k, i)
			} else {
				_, _ = c.Get(k)
			}
			i++
		}
	})
}

// =============================================================================
// 对比基准：严格 LRU 与准入型缓存
// =============================================================================

func BenchmarkCompare_GolangLRU_ReadHeavy(b *testing.B) {
	c, err := lru.New[string, int](benchKeys * 2)
	if err != nil {
		b.Fatal(err)
	}
	keys := benchKeySet()
	for i, k := range keys {
		c.Add(k, i)
	}

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			k := keys[i&(benchKeys-1)]
			if i%10 == 0 {
				c.Add(k, i)
			} else {
				_, _ = c.Get(k)
			}
			i++
		}
	})
}

func BenchmarkCompare_Ristretto_ReadHeavy(b *testing.B) {
	c, err := ristretto.NewCache(&ristretto.Config[string, int]{
		NumCounters: benchKeys * 20,
		MaxCost:     benchKeys * 2,
		BufferItems: 64,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(c.Close)
	keys := benchKeySet()
	for i, k := range keys {
		c.Set(k, i, 1)
	}
	c.Wait()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			k := keys[i&(benchKeys-1)]
			if i%10 == 0 {
				c.Set(k, i, 1)
			} else {
				_, _ = c.Get(k)
			}
			i++
		}
	})
}
