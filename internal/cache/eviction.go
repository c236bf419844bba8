package cache

import (
	"sort"
	"time"
)

// runEviction applies the hybrid policy, in order, to each of the three
// caches independently: drop anything older than MaxAge, then LRU down to
// MaxEntries, then LRU down to MaxSize. Each tier only acts if the cache
// is still over its limit after the previous tier ran.
func (s *Store) runEviction() {
	evictCache(s.targets, s.limits, s.metrics, "target",
		func(e CacheEntry) (time.Time, int64) { return e.LastAccess, e.Size() },
	)
	evictCache(s.actions, s.limits, s.metrics, "action",
		func(e ActionCacheEntry) (time.Time, int64) { return e.LastAccess, e.Size() },
	)
	evictCache(s.deps, s.limits, s.metrics, "dependency",
		func(e DependencyEntry) (time.Time, int64) { return e.LastAccess, int64(64 + 32*len(e.Imports)) },
	)
}

type lruRecord struct {
	key        string
	lastAccess time.Time
	size       int64
}

// evictCache runs the three-tier policy against one shardedMap. weight
// extracts (order-by, size) from an entry; every cache orders by
// LastAccess (bumped on every GetX hit, defaulting to the write time for a
// never-read entry) so both the age and LRU tiers evict by last use, not
// last write.
func evictCache[V any](m *shardedMap[V], limits Limits, metrics storeMetrics, name string, weight func(V) (time.Time, int64)) {
	now := time.Now()

	if limits.MaxAge > 0 {
		n := m.DeleteWhere(func(_ string, v V) bool {
			ts, _ := weight(v)
			return now.Sub(ts) > limits.MaxAge
		})
		if n > 0 {
			metrics.evicted.WithLabelValues(name, "age").Add(float64(n))
		}
	}

	if limits.MaxEntries <= 0 && limits.MaxSize <= 0 {
		return
	}

	var records []lruRecord
	var totalSize int64
	m.Range(func(key string, v V) {
		ts, sz := weight(v)
		records = append(records, lruRecord{key: key, lastAccess: ts, size: sz})
		totalSize += sz
	})

	if limits.MaxEntries > 0 && len(records) > limits.MaxEntries {
		sort.Slice(records, func(i, j int) bool { return records[i].lastAccess.Before(records[j].lastAccess) })
		excess := len(records) - limits.MaxEntries
		var toDrop map[string]struct{} = make(map[string]struct{}, excess)
		for i := 0; i < excess; i++ {
			toDrop[records[i].key] = struct{}{}
			totalSize -= records[i].size
		}
		n := m.DeleteWhere(func(key string, _ V) bool {
			_, drop := toDrop[key]
			return drop
		})
		if n > 0 {
			metrics.evicted.WithLabelValues(name, "count").Add(float64(n))
		}
		records = records[excess:]
	}

	if limits.MaxSize > 0 && totalSize > limits.MaxSize {
		sort.Slice(records, func(i, j int) bool { return records[i].lastAccess.Before(records[j].lastAccess) })
		toDrop := make(map[string]struct{})
		i := 0
		for totalSize > limits.MaxSize && i < len(records) {
			toDrop[records[i].key] = struct{}{}
			totalSize -= records[i].size
			i++
		}
		n := m.DeleteWhere(func(key string, _ V) bool {
			_, drop := toDrop[key]
			return drop
		})
		if n > 0 {
			metrics.evicted.WithLabelValues(name, "size").Add(float64(n))
		}
	}
}
