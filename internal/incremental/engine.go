// Package incremental implements the decision procedure that turns a
// source list into (to_compile, cached, reason_map), using the two-tier
// fingerprints of internal/fingerprint and the three caches of
// internal/cache.
package incremental

import (
	"github.com/wavebuild/wavebuild/internal/cache"
	"github.com/wavebuild/wavebuild/internal/fingerprint"
	"github.com/wavebuild/wavebuild/internal/types"
)

// Strategy selects which of the three decision procedures to run.
type Strategy int

const (
	StrategyIncremental Strategy = iota
	StrategyFull
	StrategyHybrid
)

// HybridThreshold is the default: below this file count, Hybrid runs Full
// rather than pay per-file fingerprint overhead for a build too small to
// amortize it.
const HybridThreshold = 32

// Cause identifies which step of the decision procedure marked a source
// dirty, for `--why` diagnostics.
type Cause string

const (
	CauseNew           Cause = "new" // no prior cache entry for this source
	CauseQuickMismatch Cause = "quick_mismatch"
	CauseTransitive    Cause = "transitive_dep" // invalidated via the dependency cache reverse walk
	CauseForcedFull    Cause = "forced_full"    // Strategy is Full
)

// DirtyReason is the first edge that invalidated a source, surfaced to
// callers through the reason_map so `--why` diagnostics can explain it.
type DirtyReason struct {
	Source string
	Cause  Cause
	Via    string // triggering source, set only for CauseTransitive
}

// Plan is the decision procedure's output.
type Plan struct {
	ToCompile []string
	Cached    []string
	Total     int
	ReasonMap map[string]DirtyReason
}

// ActionIDFunc derives the ActionID for one source, so the engine can
// probe the action cache in step 4 without knowing how a given handler
// computes its input hash.
type ActionIDFunc func(source string) (types.ActionID, error)

// Engine runs the decision procedure against one target's cached source
// fingerprints.
type Engine struct {
	store *cache.Store
}

func NewEngine(store *cache.Store) *Engine {
	return &Engine{store: store}
}

// ResolveStrategy applies Hybrid's file-count threshold, returning the
// procedure that should actually run.
func ResolveStrategy(requested Strategy, sourceCount int) Strategy {
	if requested != StrategyHybrid {
		return requested
	}
	if sourceCount >= HybridThreshold {
		return StrategyIncremental
	}
	return StrategyFull
}

// Plan runs the decision procedure for target's sources and returns which
// need rebuilding. actionFn may be nil to skip step 4 (action-cache
// probing) entirely — useful for a first integration pass, or for
// callers without a per-action input hash yet.
func (e *Engine) Plan(strategy Strategy, target types.TargetID, sources []string, actionFn ActionIDFunc) (Plan, error) {
	effective := ResolveStrategy(strategy, len(sources))

	if effective == StrategyFull {
		reasonMap := make(map[string]DirtyReason, len(sources))
		for _, s := range sources {
			reasonMap[s] = DirtyReason{Source: s, Cause: CauseForcedFull}
		}
		return Plan{ToCompile: append([]string(nil), sources...), Total: len(sources), ReasonMap: reasonMap}, nil
	}

	prev, hadPrev := e.store.GetTarget(target.String())
	newFP := make(map[string]types.ContentFingerprint, len(sources))
	dirty := make(map[string]DirtyReason)

	for _, s := range sources {
		quick, err := fingerprint.Quick(s)
		if err != nil {
			return Plan{}, err
		}

		prevFP, existed := prevFingerprint(prev, hadPrev, s)
		if existed && prevFP.Quick.Equal(quick) {
			newFP[s] = prevFP
			continue
		}

		full, err := fingerprint.Full(s)
		if err != nil {
			return Plan{}, err
		}
		if existed && prevFP.Equal(full) {
			// content unchanged, but mtime/size moved — write back the
			// fresher quick stat so the next build can take the cheap path.
			full.Quick = quick
			newFP[s] = full
			continue
		}

		full.Quick = quick
		newFP[s] = full
		if !existed {
			dirty[s] = DirtyReason{Source: s, Cause: CauseNew}
		} else {
			dirty[s] = DirtyReason{Source: s, Cause: CauseQuickMismatch}
		}
	}

	// Step 3: transitive propagation via the dependency cache reverse
	// index. BFS outward from every directly-dirty source.
	queue := make([]string, 0, len(dirty))
	for s := range dirty {
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, dependent := range e.store.ReverseDependents(s) {
			if _, already := dirty[dependent]; already {
				continue
			}
			dirty[dependent] = DirtyReason{Source: dependent, Cause: CauseTransitive, Via: s}
			queue = append(queue, dependent)
		}
	}

	// Step 4: action-cache probe. A dirty source whose action is already
	// cached doesn't need recompiling even though its content changed.
	toCompile := make([]string, 0, len(dirty))
	cached := make([]string, 0, len(sources)-len(dirty))
	for _, s := range sources {
		if _, isDirty := dirty[s]; !isDirty {
			cached = append(cached, s)
			continue
		}
		if actionFn != nil {
			if actionID, err := actionFn(s); err == nil {
				if _, hit := e.store.GetAction(actionID.Key()); hit {
					cached = append(cached, s)
					continue
				}
			}
		}
		toCompile = append(toCompile, s)
	}

	e.store.PutTarget(cache.CacheEntry{TargetID: target.String(), SourceFP: newFP})

	return Plan{ToCompile: toCompile, Cached: cached, Total: len(sources), ReasonMap: dirty}, nil
}

func prevFingerprint(entry cache.CacheEntry, hadPrev bool, source string) (types.ContentFingerprint, bool) {
	if !hadPrev || entry.SourceFP == nil {
		return types.ContentFingerprint{}, false
	}
	fp, ok := entry.SourceFP[source]
	return fp, ok
}
