package cache

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/wavebuild/wavebuild/internal/types"
)

// CacheEntry is the target cache's per-TargetID record (spec 3).
type CacheEntry struct {
	TargetID       string
	SourceFP       map[string]types.ContentFingerprint // path -> fingerprint
	DepsHash       [32]byte                            // hash of declared+resolved deps
	OutputArtifact []types.ArtifactID
	Timestamp      time.Time
	AccessCount    int64
	LastAccess     time.Time
}

// Size is an approximation of the entry's on-disk weight, used by the size
// based eviction tier.
func (e CacheEntry) Size() int64 {
	return int64(64*len(e.SourceFP) + 32*len(e.OutputArtifact) + 128)
}

// ActionCacheEntry is the action cache's per-ActionID record. An action
// with an equal ActionID must have produced bit-identical outputs across
// runs; this struct doesn't enforce that itself (the Incremental Engine /
// Executor do, by keying ActionID on all relevant inputs) but callers can
// use Outputs to detect a violation.
type ActionCacheEntry struct {
	ActionKey  string
	Outputs    []types.ArtifactID
	OutputPath []string // parallel to Outputs; empty entries mean path-only outputs
	Timestamp  time.Time
	AccessCount int64
	LastAccess  time.Time
}

func (e ActionCacheEntry) Size() int64 {
	return int64(32*len(e.Outputs) + 64*len(e.OutputPath) + 64)
}

// DependencyEntry is the dependency cache's per-SourcePath record: the set
// of imports extracted last time, used to propagate invalidation (spec
// 4.B/4.E).
type DependencyEntry struct {
	SourcePath string
	Imports    []string
	Timestamp  time.Time
	LastAccess time.Time
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
