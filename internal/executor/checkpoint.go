package executor

import (
	"bytes"
	"encoding/gob"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/wavebuild/wavebuild/internal/graph"
	"github.com/wavebuild/wavebuild/internal/types"
)

// Checkpoint is the resumable snapshot of an in-flight build, written
// after every target completion. It never includes an in_progress
// target's partial output: on resume, an in-progress target is treated as
// not-yet-started (its handler is expected to be idempotent, the same
// contract the Incremental Engine relies on for action-cache hits).
type Checkpoint struct {
	CompletedIDs     []string
	CachedIDs        []string
	FailedIDs        []string
	SkippedIDs       []string
	InProgressIDs    []string
	GraphFingerprint uint64
}

// graphFingerprint hashes the target set and edge list so Resume can
// refuse a checkpoint written against a different graph shape instead of
// silently mis-resuming.
func graphFingerprint(g *graph.Graph) uint64 {
	ids := g.AllIDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, n := range names {
		buf.WriteString(n)
		buf.WriteByte('\n')
		for _, dep := range g.Deps(types.MustIntern(n)) {
			buf.WriteString(" <- ")
			buf.WriteString(dep.String())
		}
		buf.WriteByte('\n')
	}
	return xxhash.Sum64(buf.Bytes())
}

// WriteCheckpoint atomically persists cp to path.
func WriteCheckpoint(path string, cp Checkpoint) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cp); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadCheckpoint loads a checkpoint previously written by WriteCheckpoint.
func ReadCheckpoint(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, err
	}
	var cp Checkpoint
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&cp); err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}
