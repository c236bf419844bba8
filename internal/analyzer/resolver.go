package analyzer

import (
	"sort"
	"strings"
	"sync"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/wavebuild/wavebuild/internal/types"
)

// UnresolvedImport is a non-fatal diagnostic for an import that couldn't
// be matched to any target.
type UnresolvedImport struct {
	FromTarget types.TargetID
	Import     Import
	Suggestion string // best-effort "did you mean" guess, empty if none found
}

// Resolver maintains the two indices import resolution needs and
// implements the four-step resolution rule.
type Resolver struct {
	mu                 sync.RWMutex
	sourceToTarget     map[string]types.TargetID
	importNameToTarget map[string][]types.TargetID // grouped for ambiguity resolution
	targetSourceRoot   map[types.TargetID]string    // longest common source prefix, for rule 3
}

func NewResolver() *Resolver {
	return &Resolver{
		sourceToTarget:     make(map[string]types.TargetID),
		importNameToTarget: make(map[string][]types.TargetID),
		targetSourceRoot:   make(map[types.TargetID]string),
	}
}

// IndexTarget registers a target's source files and the canonical import
// name(s) other files would use to reach it — built once per workspace
// scan.
func (r *Resolver) IndexTarget(id types.TargetID, sources []string, importNames []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, src := range sources {
		r.sourceToTarget[src] = id
	}
	r.targetSourceRoot[id] = commonPrefix(sources)
	for _, name := range importNames {
		r.importNameToTarget[name] = append(r.importNameToTarget[name], id)
	}
}

// Resolve applies the four-step resolution rule to one import from source
// file fromPath, owned by target `from`. It returns the resolved target
// (ok=true), or records a diagnostic via the returned UnresolvedImport
// (ok=false) — callers decide whether an unresolved non-third-party
// import is fatal (strict mode).
func (r *Resolver) Resolve(from types.TargetID, fromPath string, imp Import) (types.TargetID, bool, *UnresolvedImport) {
	if imp.Kind == ImportStdlib {
		return types.TargetID{}, false, nil // rule 1: silently skip
	}

	r.mu.RLock()
	candidates := r.importNameToTarget[imp.Raw]
	r.mu.RUnlock()

	switch len(candidates) {
	case 0:
		if imp.Kind == ImportThirdParty {
			return types.TargetID{}, false, nil // not our graph's concern
		}
		return types.TargetID{}, false, &UnresolvedImport{
			FromTarget: from,
			Import:     imp,
			Suggestion: r.suggest(imp.Raw),
		}
	case 1:
		return candidates[0], true, nil
	default:
		// rule 3: prefer the candidate whose source tree shares the
		// longest common prefix with `from`'s own source tree.
		fromRoot := r.targetSourceRoot[from]
		best := candidates[0]
		bestLen := -1
		for _, c := range candidates {
			n := commonPrefixLen(fromRoot, r.targetSourceRoot[c])
			if n > bestLen {
				bestLen = n
				best = c
			}
		}
		return best, true, nil
	}
}

// suggest offers a "did you mean" guess for an unresolved import by
// fuzzy-matching against every known import name, using Levenshtein
// distance over Porter2-stemmed tokens so "models"/"model" style
// near-misses still rank close. Follows the same "nearest known name" UX
// pattern as edlib (internal/mcp fuzzy symbol search) and porter2
// (internal/search term stemming).
func (r *Resolver) suggest(raw string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.importNameToTarget) == 0 {
		return ""
	}
	candidates := make([]string, 0, len(r.importNameToTarget))
	for name := range r.importNameToTarget {
		candidates = append(candidates, name)
	}
	sort.Strings(candidates) // deterministic tie-break

	needle := stemPath(raw)
	best := ""
	bestScore := float32(-1)
	for _, c := range candidates {
		score, err := edlib.StringsSimilarity(needle, stemPath(c), edlib.Levenshtein)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	const minConfidence = 0.5
	if bestScore < minConfidence {
		return ""
	}
	return best
}

// stemPath stems each '.'-or-'/'-separated component of an import name so
// fuzzy comparison ranks on word roots rather than raw substrings.
func stemPath(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '.' || r == '/' })
	for i, p := range parts {
		parts[i] = porter2.Stem(p)
	}
	return strings.Join(parts, " ")
}

func commonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	prefix := paths[0]
	for _, p := range paths[1:] {
		n := commonPrefixLen(prefix, p)
		prefix = prefix[:n]
	}
	return prefix
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
