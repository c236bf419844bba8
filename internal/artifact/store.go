// Package artifact implements a content-addressed blob store with
// sharded on-disk paths, an LRU sidecar index reusing the cache
// package's binary framing, and soft/hard size-triggered eviction.
package artifact

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wavebuild/wavebuild/internal/logx"
	"github.com/wavebuild/wavebuild/internal/types"
	"github.com/wavebuild/wavebuild/internal/wverrors"
)

// Limits configures eviction. Crossing MaxSizeSoft starts a background
// sweep; crossing MaxSizeHard makes Put block until the sweep catches up.
type Limits struct {
	MaxSizeSoft int64
	MaxSizeHard int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxSizeSoft: 4 << 30,  // 4 GiB
		MaxSizeHard: 8 << 30,  // 8 GiB
	}
}

type indexEntry struct {
	ID         types.ArtifactID
	Size       int64
	Timestamp  time.Time
	LastAccess time.Time
	AccessCount int64
}

// Store is the content-addressed artifact blob store.
type Store struct {
	root   string
	limits Limits

	mu    sync.Mutex
	index map[types.ArtifactID]*indexEntry

	evictMu   sync.Mutex
	evicting  bool
	sweepDone chan struct{}
}

// New opens (without yet loading) an artifact store rooted at dir.
func New(dir string, limits Limits) *Store {
	return &Store{
		root:   dir,
		limits: limits,
		index:  make(map[types.ArtifactID]*indexEntry),
	}
}

func (s *Store) indexPath() string { return filepath.Join(s.root, "index.bin") }

// shardPath returns store/xx/xxxxxx... for an artifact id — the first two
// hex characters as the shard directory.
func (s *Store) shardPath(id types.ArtifactID) string {
	hexID := hex.EncodeToString(id[:])
	return filepath.Join(s.root, "store", hexID[:2], hexID)
}

// Load reads the sidecar LRU index from disk. A missing or corrupt index
// is not fatal: Load returns nil and keeps whatever records it could read.
// Get and Has consult only the index, so a blob whose index record was
// lost stays invisible to them until Put stores that content again.
func (s *Store) Load() error {
	f, err := os.Open(s.indexPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if _, err := readHeader(br); err != nil {
		logx.Warnf("artifact index: %v", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		payload, err := readRecord(br)
		if err != nil {
			if isCorruptRecord(err) {
				continue
			}
			break
		}
		var e indexEntry
		if err := decodeIndexEntry(payload, &e); err != nil {
			continue
		}
		entry := e
		s.index[e.ID] = &entry
	}
	return nil
}

// Flush persists the sidecar index (write-temp-then-rename, per spec
// 4.G's "bytes never partially visible" requirement, applied to the
// index too).
func (s *Store) Flush() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	s.mu.Lock()
	entries := make([]indexEntry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, *e)
	}
	s.mu.Unlock()

	tmp := s.indexPath() + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := writeHeader(bw); err != nil {
		f.Close()
		return err
	}
	for _, e := range entries {
		payload, err := encodeIndexEntry(e)
		if err != nil {
			f.Close()
			return err
		}
		if err := writeRecord(bw, payload); err != nil {
			f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.indexPath())
}

// Put writes bytes to the content-addressed store, returning its
// ArtifactId. Put is idempotent: if the id already exists, the existing
// entry's access bookkeeping is bumped and no write occurs.
func (s *Store) Put(data []byte) (types.ArtifactID, error) {
	id := types.ArtifactID(sha256.Sum256(data))

	s.mu.Lock()
	if _, ok := s.index[id]; ok {
		s.index[id].AccessCount++
		s.index[id].LastAccess = time.Now()
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	path := s.shardPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return id, err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return id, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return id, err
	}

	now := time.Now()
	s.mu.Lock()
	s.index[id] = &indexEntry{ID: id, Size: int64(len(data)), Timestamp: now, LastAccess: now, AccessCount: 1}
	total := s.totalSizeLocked()
	s.mu.Unlock()

	if total > s.limits.MaxSizeHard {
		s.runEviction() // block: we've blown past the hard limit
	} else if total > s.limits.MaxSizeSoft {
		s.startBackgroundEviction()
	}

	return id, nil
}

// Get returns the bytes for id, or a KindCache not-found error.
func (s *Store) Get(id types.ArtifactID) ([]byte, error) {
	s.mu.Lock()
	entry, ok := s.index[id]
	if ok {
		entry.AccessCount++
		entry.LastAccess = time.Now()
	}
	s.mu.Unlock()

	if !ok {
		return nil, wverrors.New(wverrors.KindCache, "artifact not found").WithPath(hex.EncodeToString(id[:]), 0, 0)
	}
	data, err := os.ReadFile(s.shardPath(id))
	if err != nil {
		return nil, wverrors.Wrap(wverrors.KindCache, "artifact missing from store despite index entry", err)
	}
	return data, nil
}

// Has reports whether id is present, without reading its bytes.
func (s *Store) Has(id types.ArtifactID) bool {
	s.mu.Lock()
	_, ok := s.index[id]
	s.mu.Unlock()
	return ok
}

// HasMany and GetMany are batch variants. HasMany checks the in-memory
// index once under one lock instead of once per id; GetMany calls Get for
// each id and reports the ids it could not read as missing.
func (s *Store) HasMany(ids []types.ArtifactID) map[types.ArtifactID]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.ArtifactID]bool, len(ids))
	for _, id := range ids {
		_, ok := s.index[id]
		out[id] = ok
	}
	return out
}

func (s *Store) GetMany(ids []types.ArtifactID) (map[types.ArtifactID][]byte, []types.ArtifactID) {
	out := make(map[types.ArtifactID][]byte, len(ids))
	var missing []types.ArtifactID
	for _, id := range ids {
		data, err := s.Get(id)
		if err != nil {
			missing = append(missing, id)
			continue
		}
		out[id] = data
	}
	return out, missing
}

func (s *Store) totalSizeLocked() int64 {
	var total int64
	for _, e := range s.index {
		total += e.Size
	}
	return total
}

// TotalSize returns the sum of all stored artifact sizes.
func (s *Store) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSizeLocked()
}

func (s *Store) startBackgroundEviction() {
	s.evictMu.Lock()
	if s.evicting {
		s.evictMu.Unlock()
		return
	}
	s.evicting = true
	done := make(chan struct{})
	s.sweepDone = done
	s.evictMu.Unlock()

	go func() {
		defer close(done)
		s.runEviction()
		s.evictMu.Lock()
		s.evicting = false
		s.evictMu.Unlock()
	}()
}

// runEviction LRU-evicts entries until total size is back under
// MaxSizeSoft.
func (s *Store) runEviction() {
	s.mu.Lock()
	type candidate struct {
		id         types.ArtifactID
		size       int64
		lastAccess time.Time
	}
	candidates := make([]candidate, 0, len(s.index))
	var total int64
	for id, e := range s.index {
		candidates = append(candidates, candidate{id: id, size: e.Size, lastAccess: e.LastAccess})
		total += e.Size
	}
	s.mu.Unlock()

	if total <= s.limits.MaxSizeSoft {
		return
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].lastAccess.Before(candidates[j].lastAccess) })

	for _, c := range candidates {
		if total <= s.limits.MaxSizeSoft {
			break
		}
		s.mu.Lock()
		delete(s.index, c.id)
		s.mu.Unlock()
		if err := os.Remove(s.shardPath(c.id)); err != nil && !os.IsNotExist(err) {
			logx.Warnf("artifact evict %x: %v", c.id, err)
			continue
		}
		total -= c.size
	}
}
