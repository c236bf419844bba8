package cache

import (
	"bufio"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wavebuild/wavebuild/internal/logx"
)

// Limits configures the hybrid eviction policy: age first, then entry
// count, then total size, evaluated in that order until the cache is
// within all three.
type Limits struct {
	MaxAge     time.Duration
	MaxEntries int
	MaxSize    int64
}

// DefaultLimits are sane defaults for an unconfigured workspace.
func DefaultLimits() Limits {
	return Limits{
		MaxAge:     30 * 24 * time.Hour,
		MaxEntries: 10000,
		MaxSize:    1 << 30, // 1 GiB
	}
}

// Store is the three-cache-in-one: target, action and dependency caches
// sharing one on-disk format. All mutation is buffered in memory
// (write-back); Flush persists once per build. Readers always see the
// latest in-memory state.
type Store struct {
	dir    string
	limits Limits

	targets *shardedMap[CacheEntry]
	actions *shardedMap[ActionCacheEntry]
	deps    *shardedMap[DependencyEntry]

	// flags holds each file's header Flags as last read from disk, so
	// Flush can echo back any bits it doesn't itself understand instead
	// of zeroing them.
	targetsFlags uint16
	actionsFlags uint16
	depsFlags    uint16

	metrics storeMetrics
}

type storeMetrics struct {
	hits    *prometheus.CounterVec
	misses  *prometheus.CounterVec
	evicted *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) storeMetrics {
	m := storeMetrics{
		hits:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "waveforge_cache_hits_total", Help: "cache hits by cache name"}, []string{"cache"}),
		misses:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "waveforge_cache_misses_total", Help: "cache misses by cache name"}, []string{"cache"}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "waveforge_cache_evicted_total", Help: "evicted entries by cache name and reason"}, []string{"cache", "reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.evicted)
	}
	return m
}

// New creates a Store rooted at dir (typically workspace/.builder-cache)
// with the given limits. It does not load from disk; call Load for that.
func New(dir string, limits Limits, reg prometheus.Registerer) *Store {
	return &Store{
		dir:     dir,
		limits:  limits,
		targets: newShardedMap[CacheEntry](),
		actions: newShardedMap[ActionCacheEntry](),
		deps:    newShardedMap[DependencyEntry](),
		metrics: newMetrics(reg),
	}
}

func (s *Store) targetsPath() string { return filepath.Join(s.dir, "targets.bin") }
func (s *Store) actionsPath() string { return filepath.Join(s.dir, "actions.bin") }
func (s *Store) depsPath() string    { return filepath.Join(s.dir, "deps.bin") }

// Load reads all three on-disk caches. A corrupted header starts that
// cache empty and logs a warning; a corrupted individual record is
// skipped and the rest of the file is still loaded.
func (s *Store) Load() error {
	flags, err := loadFile(s.targetsPath(), func(payload []byte) error {
		var e CacheEntry
		if err := decodeGob(payload, &e); err != nil {
			return err
		}
		s.targets.Set(e.TargetID, e)
		return nil
	})
	if err != nil {
		logx.Warnf("target cache load: %v", err)
	}
	s.targetsFlags = flags

	flags, err = loadFile(s.actionsPath(), func(payload []byte) error {
		var e ActionCacheEntry
		if err := decodeGob(payload, &e); err != nil {
			return err
		}
		s.actions.Set(e.ActionKey, e)
		return nil
	})
	if err != nil {
		logx.Warnf("action cache load: %v", err)
	}
	s.actionsFlags = flags

	flags, err = loadFile(s.depsPath(), func(payload []byte) error {
		var e DependencyEntry
		if err := decodeGob(payload, &e); err != nil {
			return err
		}
		s.deps.Set(e.SourcePath, e)
		return nil
	})
	if err != nil {
		logx.Warnf("dependency cache load: %v", err)
	}
	s.depsFlags = flags

	return nil
}

// loadFile opens path, validates the header, and calls onRecord for every
// well-formed record. A missing file is not an error (cold cache) and
// returns flags 0. A bad header starts empty, also returning flags 0; a
// bad individual record is skipped and decoding continues with the next
// record. The header's Flags are returned so the caller can echo back any
// bits it doesn't itself understand on the next Flush, per the format's
// forward-compatibility contract.
func loadFile(path string, onRecord func(payload []byte) error) (uint16, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header, err := readHeader(br)
	if err != nil {
		return 0, err // caller logs and proceeds with an empty cache
	}

	for {
		payload, err := readRecord(br)
		if err != nil {
			if IsCorruptRecord(err) {
				logx.Warnf("%s: dropping corrupt record", path)
				continue
			}
			break // clean EOF or stream desync; stop, keep what we have
		}
		if err := onRecord(payload); err != nil {
			logx.Warnf("%s: dropping unreadable record: %v", path, err)
			continue
		}
	}
	return header.Flags, nil
}

// Flush writes all three caches to disk: write to a temp file, then
// rename, so a crash never truncates the existing file.
func (s *Store) Flush() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	s.runEviction()

	if err := saveFile(s.targetsPath(), s.targetsFlags, func(w *bufio.Writer) error {
		var outerErr error
		s.targets.Range(func(_ string, e CacheEntry) {
			if outerErr != nil {
				return
			}
			payload, err := encodeGob(e)
			if err != nil {
				outerErr = err
				return
			}
			outerErr = writeRecord(w, payload)
		})
		return outerErr
	}); err != nil {
		return err
	}

	if err := saveFile(s.actionsPath(), s.actionsFlags, func(w *bufio.Writer) error {
		var outerErr error
		s.actions.Range(func(_ string, e ActionCacheEntry) {
			if outerErr != nil {
				return
			}
			payload, err := encodeGob(e)
			if err != nil {
				outerErr = err
				return
			}
			outerErr = writeRecord(w, payload)
		})
		return outerErr
	}); err != nil {
		return err
	}

	return saveFile(s.depsPath(), s.depsFlags, func(w *bufio.Writer) error {
		var outerErr error
		s.deps.Range(func(_ string, e DependencyEntry) {
			if outerErr != nil {
				return
			}
			payload, err := encodeGob(e)
			if err != nil {
				outerErr = err
				return
			}
			outerErr = writeRecord(w, payload)
		})
		return outerErr
	})
}

func saveFile(path string, flags uint16, write func(w *bufio.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := writeHeader(bw, fileHeader{Version: formatVersion, Flags: flags}); err != nil {
		f.Close()
		return err
	}
	if err := write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// --- Target cache ---

// GetTarget looks up the target cache entry for id.
func (s *Store) GetTarget(id string) (CacheEntry, bool) {
	e, ok := s.targets.Get(id)
	if ok {
		e.AccessCount++
		e.LastAccess = time.Now()
		s.targets.Set(id, e)
		s.metrics.hits.WithLabelValues("target").Inc()
	} else {
		s.metrics.misses.WithLabelValues("target").Inc()
	}
	return e, ok
}

// PutTarget writes/overwrites a target cache entry.
func (s *Store) PutTarget(e CacheEntry) {
	e.Timestamp = time.Now()
	e.LastAccess = e.Timestamp
	s.targets.Set(e.TargetID, e)
}

// --- Action cache ---

func (s *Store) GetAction(key string) (ActionCacheEntry, bool) {
	e, ok := s.actions.Get(key)
	if ok {
		e.AccessCount++
		e.LastAccess = time.Now()
		s.actions.Set(key, e)
		s.metrics.hits.WithLabelValues("action").Inc()
	} else {
		s.metrics.misses.WithLabelValues("action").Inc()
	}
	return e, ok
}

func (s *Store) PutAction(e ActionCacheEntry) {
	e.Timestamp = time.Now()
	e.LastAccess = e.Timestamp
	s.actions.Set(e.ActionKey, e)
}

// InvalidateAction removes an action cache entry, used for the "self-
// healing" lazy purge when a referenced artifact is missing.
func (s *Store) InvalidateAction(key string) {
	s.actions.Delete(key)
}

// --- Dependency cache ---

func (s *Store) GetDependencies(path string) ([]string, bool) {
	e, ok := s.deps.Get(path)
	if !ok {
		return nil, false
	}
	e.LastAccess = time.Now()
	s.deps.Set(path, e)
	return e.Imports, true
}

func (s *Store) PutDependencies(path string, imports []string) {
	now := time.Now()
	s.deps.Set(path, DependencyEntry{SourcePath: path, Imports: imports, Timestamp: now, LastAccess: now})
}

// ReverseDependents returns every source path whose last-recorded import
// set contains target — used by the Incremental Engine to propagate
// invalidation transitively.
func (s *Store) ReverseDependents(target string) []string {
	var out []string
	s.deps.Range(func(path string, e DependencyEntry) {
		for _, imp := range e.Imports {
			if imp == target {
				out = append(out, path)
				return
			}
		}
	})
	return out
}

// TargetCount, ActionCount, DependencyCount expose cache sizes for CLI
// stats / eviction introspection.
func (s *Store) TargetCount() int     { return s.targets.Len() }
func (s *Store) ActionCount() int     { return s.actions.Len() }
func (s *Store) DependencyCount() int { return s.deps.Len() }
