package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wavebuild/wavebuild/internal/logx"
)

// IgnoreMatcher decides whether a path should be skipped during the
// workspace scan (internal/ignore implements this; kept as a local
// interface so analyzer doesn't depend on ignore's config-loading
// machinery, only its verdict).
type IgnoreMatcher interface {
	Ignored(relPath string, isDir bool) bool
}

type noopIgnore struct{}

func (noopIgnore) Ignored(string, bool) bool { return false }

// Scanner walks a workspace in parallel, one goroutine-queue entry per
// directory, and reports every regular file found along with the
// LanguageSpec that covers it.
//
// Follows internal/indexing/pipeline.go's ScanDirectory: same
// symlink-cycle guard via a visited-paths set, same continue-past-errors
// posture, same context-cancellation check per entry. ScanDirectory uses
// a single filepath.Walk goroutine feeding a channel; this scanner
// instead distributes directory units across a worker pool so large
// workspaces scan with more than one core, implementing a work-stealing
// recursive walk.
type Scanner struct {
	Registry *Registry
	Ignore   IgnoreMatcher
	Workers  int
}

// ScannedFile is one discovered source file paired with its LanguageSpec.
type ScannedFile struct {
	Path string
	Spec LanguageSpec
}

func NewScanner(reg *Registry, ignore IgnoreMatcher, workers int) *Scanner {
	if ignore == nil {
		ignore = noopIgnore{}
	}
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{Registry: reg, Ignore: ignore, Workers: workers}
}

// Scan walks root and returns every non-ignored regular file, each tagged
// with the LanguageSpec that would extract its imports.
func (s *Scanner) Scan(ctx context.Context, root string) ([]ScannedFile, error) {
	queue := newDirQueue(root)

	var (
		mu      sync.Mutex
		results []ScannedFile
		visited = make(map[string]struct{})
		visitMu sync.Mutex
	)

	processDir := func(dir string) {
		defer queue.done()

		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return // unresolvable symlink; skip, don't fail the scan
		}
		visitMu.Lock()
		if _, seen := visited[real]; seen {
			visitMu.Unlock()
			return
		}
		visited[real] = struct{}{}
		visitMu.Unlock()

		entries, err := os.ReadDir(dir)
		if err != nil {
			logx.Warnf("scan %s: %v", dir, err)
			return
		}

		var found []ScannedFile
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			rel, err := filepath.Rel(root, full)
			if err != nil {
				rel = full
			}
			rel = filepath.ToSlash(rel)

			if entry.IsDir() {
				if s.Ignore.Ignored(rel, true) {
					continue
				}
				queue.push(full)
				continue
			}
			if s.Ignore.Ignored(rel, false) {
				continue
			}
			spec := s.Registry.SpecForPath(full)
			if spec.Extensions == nil {
				continue // generic fallback: not a recognized source file
			}
			found = append(found, ScannedFile{Path: full, Spec: spec})
		}

		if len(found) > 0 {
			mu.Lock()
			results = append(results, found...)
			mu.Unlock()
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.Workers; i++ {
		g.Go(func() error {
			for {
				dir, ok := queue.pop()
				if !ok {
					return nil
				}
				select {
				case <-ctx.Done():
					queue.done()
					return ctx.Err()
				default:
				}
				processDir(dir)
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// dirQueue is a simple concurrent work queue of pending directories. A
// directory is "in flight" from the moment it's pushed until the worker
// that popped it calls done() — which may be after it has pushed zero or
// more subdirectories of its own. The queue is exhausted only once
// in-flight hits zero with nothing left to pop, so a worker finishing a
// directory and pushing new subdirectories can never race a sibling into
// seeing a falsely-empty queue.
type dirQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []string
	inFlight  int // pushed-but-not-yet-done directories (queued or being processed)
	closed    bool
}

func newDirQueue(root string) *dirQueue {
	q := &dirQueue{items: []string{root}, inFlight: 1}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *dirQueue) push(dir string) {
	q.mu.Lock()
	q.items = append(q.items, dir)
	q.inFlight++
	q.mu.Unlock()
	q.cond.Broadcast()
}

// pop blocks until a directory is available or the queue is exhausted.
func (q *dirQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return "", false
	}
	dir := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return dir, true
}

// done marks one previously-popped directory as fully processed
// (including any subdirectories it pushed before calling done).
func (q *dirQueue) done() {
	q.mu.Lock()
	q.inFlight--
	if q.inFlight == 0 {
		q.closed = true
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}
