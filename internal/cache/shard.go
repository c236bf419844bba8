package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// numShards is the cache's lock-striping factor. Striping on the top 8
// bits of the key (256 shards) is enough concurrency for a monorepo-sized
// target/action count without paying a much larger number of mutexes per
// cache instance. Documented as a deliberate reduction in DESIGN.md.
const numShards = 256

// shardOf returns the stripe index for a key, using the top bits of an
// xxhash digest (the same hash already used for fingerprint mixing).
func shardOf(key string) int {
	h := xxhash.Sum64String(key)
	return int(h >> (64 - 8))
}

// shardedMap is a lock-striped string-keyed map. Each stripe has its own
// RWMutex so reads across different shards never contend, matching spec
// 4.B's "concurrent read and writer-serialized mutation" requirement.
type shardedMap[V any] struct {
	stripes [numShards]shardStripe[V]
}

type shardStripe[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

func newShardedMap[V any]() *shardedMap[V] {
	m := &shardedMap[V]{}
	for i := range m.stripes {
		m.stripes[i].entries = make(map[string]V)
	}
	return m
}

func (m *shardedMap[V]) Get(key string) (V, bool) {
	s := &m.stripes[shardOf(key)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

func (m *shardedMap[V]) Set(key string, v V) {
	s := &m.stripes[shardOf(key)]
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = v
}

func (m *shardedMap[V]) Delete(key string) {
	s := &m.stripes[shardOf(key)]
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len returns the total entry count across all stripes.
func (m *shardedMap[V]) Len() int {
	total := 0
	for i := range m.stripes {
		m.stripes[i].mu.RLock()
		total += len(m.stripes[i].entries)
		m.stripes[i].mu.RUnlock()
	}
	return total
}

// Range calls f for every entry. f must not mutate the map.
func (m *shardedMap[V]) Range(f func(key string, v V)) {
	for i := range m.stripes {
		m.stripes[i].mu.RLock()
		for k, v := range m.stripes[i].entries {
			f(k, v)
		}
		m.stripes[i].mu.RUnlock()
	}
}

// DeleteWhere removes every entry for which pred returns true, returning the
// count removed.
func (m *shardedMap[V]) DeleteWhere(pred func(key string, v V) bool) int {
	removed := 0
	for i := range m.stripes {
		m.stripes[i].mu.Lock()
		for k, v := range m.stripes[i].entries {
			if pred(k, v) {
				delete(m.stripes[i].entries, k)
				removed++
			}
		}
		m.stripes[i].mu.Unlock()
	}
	return removed
}
