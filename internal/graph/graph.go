// Package graph implements the target dependency graph. Nodes live in a
// contiguous arena indexed by a compact NodeIndex rather than as
// pointer-linked objects; only forward edges are stored, and rdeps are
// computed on demand from a reverse index rebuilt on mutation.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wavebuild/wavebuild/internal/types"
	"github.com/wavebuild/wavebuild/internal/wverrors"
)

// NodeIndex is a compact arena offset, used internally for cache locality;
// the public API is keyed by TargetID.
type NodeIndex int

// nodeEntry is the arena slot for one Node.
type nodeEntry struct {
	target          types.Target
	state           types.NodeState
	depth           int
	resolvedDeps    map[types.TargetID]struct{} // superset of DeclaredDeps
	lastFingerprint *types.ContentFingerprint
	outputs         []string
	forward         []NodeIndex // deps: edges this node depends on
}

// Graph owns all Nodes. Callers interact with it through TargetID; NodeIndex
// never escapes the package.
type Graph struct {
	mu       sync.RWMutex
	arena    []nodeEntry
	byID     map[types.TargetID]NodeIndex
	rdepsRev map[types.TargetID][]types.TargetID // rebuilt lazily
	rdepsOK  bool
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		byID: make(map[types.TargetID]NodeIndex),
	}
}

// AddTarget inserts a new Node wrapping t. Fails with a Graph/DuplicateTarget
// error if t.ID is already present.
func (g *Graph) AddTarget(t types.Target) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addTargetLocked(t)
}

func (g *Graph) addTargetLocked(t types.Target) error {
	if _, exists := g.byID[t.ID]; exists {
		return wverrors.New(wverrors.KindGraph, fmt.Sprintf("duplicate target %s", t.ID)).
			WithContext("add_target")
	}
	idx := NodeIndex(len(g.arena))
	g.arena = append(g.arena, nodeEntry{
		target:       t,
		state:        types.Pending,
		resolvedDeps: make(map[types.TargetID]struct{}, len(t.DeclaredDeps)),
	})
	g.byID[t.ID] = idx
	g.rdepsOK = false
	return nil
}

// AddEdge adds an edge from -> to (from depends on to). Fails with
// Graph/UnknownTarget if either endpoint is missing, or Graph/CycleDetected
// if the edge would create a cycle; in both failure cases the graph is left
// unchanged (cycle detection runs a speculative DFS before committing).
func (g *Graph) AddEdge(from, to types.TargetID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addEdgeLocked(from, to)
}

func (g *Graph) addEdgeLocked(from, to types.TargetID) error {
	fi, ok := g.byID[from]
	if !ok {
		return wverrors.New(wverrors.KindGraph, fmt.Sprintf("unknown target %s", from))
	}
	ti, ok := g.byID[to]
	if !ok {
		return wverrors.New(wverrors.KindGraph, fmt.Sprintf("unknown target %s", to))
	}
	if fi == ti {
		return wverrors.NewCycle([]string{from.String(), to.String()})
	}

	// Speculative insert, then check for a cycle before committing.
	g.arena[fi].forward = append(g.arena[fi].forward, ti)
	if cyclePath, found := g.findCycleFrom(ti, fi); found {
		g.arena[fi].forward = g.arena[fi].forward[:len(g.arena[fi].forward)-1]
		return wverrors.NewCycle(cyclePath)
	}

	g.arena[fi].resolvedDeps[to] = struct{}{}
	g.recomputeDepths()
	g.rdepsOK = false
	return nil
}

// findCycleFrom runs a DFS starting at start looking for a path back to
// target; if found it returns that path, start -> ... -> target, as
// TargetID strings. Together with the speculative edge target -> start it
// forms the cycle, and it contains both of the new edge's endpoints, as
// Testable Property 2 requires.
func (g *Graph) findCycleFrom(start, target NodeIndex) ([]string, bool) {
	type color int
	const (
		white color = iota
		gray
		black
	)
	colors := make(map[NodeIndex]color, len(g.arena))
	var path []NodeIndex

	var dfs func(n NodeIndex) bool
	dfs = func(n NodeIndex) bool {
		colors[n] = gray
		path = append(path, n)
		if n == target {
			return true
		}
		for _, next := range g.arena[n].forward {
			switch colors[next] {
			case white:
				if dfs(next) {
					return true
				}
			case gray:
				if next == target {
					path = append(path, next)
					return true
				}
			}
		}
		path = path[:len(path)-1]
		colors[n] = black
		return false
	}

	if !dfs(start) {
		return nil, false
	}
	ids := make([]string, len(path))
	for i, idx := range path {
		ids[i] = g.arena[idx].target.ID.String()
	}
	return ids, true
}

// recomputeDepths walks the whole arena recomputing depth(u) = max(depth(v)+1
// for v in deps(u)) via a topological pass. Called after every edge
// insertion; the graph is small enough (target count, not file count) for
// this to be cheap, and it keeps "for every edge (u->v), depth(u) > depth(v)"
// true unconditionally rather than incrementally patching rdeps chains.
func (g *Graph) recomputeDepths() {
	order, ok := g.topoOrderLocked()
	if !ok {
		// A cycle exists only transiently during AddEdge's speculative
		// insert, which always rolls back before this is reachable in
		// steady state; if reached anyway, leave depths as-is.
		return
	}
	for _, idx := range order {
		depth := 0
		for _, dep := range g.arena[idx].forward {
			if g.arena[dep].depth+1 > depth {
				depth = g.arena[dep].depth + 1
			}
		}
		g.arena[idx].depth = depth
	}
}

// topoOrderLocked returns arena indices in an order consistent with depth
// (deps before dependents), using Kahn's algorithm with a lexicographic
// TargetID tie-break for determinism.
func (g *Graph) topoOrderLocked() ([]NodeIndex, bool) {
	indegree := make([]int, len(g.arena))
	for _, e := range g.arena {
		for _, dep := range e.forward {
			indegree[dep]++
		}
	}
	// indegree here counts "depended upon by" edges but we want to start
	// from leaves (no outgoing deps) moving up. Reframe: process a node
	// once all its dependencies (forward edges) have been processed.
	remaining := make([]int, len(g.arena))
	for i, e := range g.arena {
		remaining[i] = len(e.forward)
	}

	var ready []NodeIndex
	for i := range g.arena {
		if remaining[i] == 0 {
			ready = append(ready, NodeIndex(i))
		}
	}

	rdependents := g.forwardInverse()

	order := make([]NodeIndex, 0, len(g.arena))
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool {
			return g.arena[ready[a]].target.ID.String() < g.arena[ready[b]].target.ID.String()
		})
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, dependent := range rdependents[n] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(g.arena) {
		return nil, false
	}
	return order, true
}

// forwardInverse builds, for each node, the list of nodes that depend on it
// (i.e. have it as a forward edge). Computed on demand rather than
// maintained incrementally, per the Section 9 redesign note on
// back-references.
func (g *Graph) forwardInverse() map[NodeIndex][]NodeIndex {
	inv := make(map[NodeIndex][]NodeIndex, len(g.arena))
	for i, e := range g.arena {
		for _, dep := range e.forward {
			inv[dep] = append(inv[dep], NodeIndex(i))
		}
	}
	return inv
}

// rebuildRdeps refreshes the TargetID-keyed reverse index used by Rdeps().
func (g *Graph) rebuildRdeps() {
	if g.rdepsOK {
		return
	}
	rev := make(map[types.TargetID][]types.TargetID)
	for i, e := range g.arena {
		from := e.target.ID
		for _, dep := range e.forward {
			to := g.arena[dep].target.ID
			rev[to] = append(rev[to], from)
		}
		_ = i
	}
	g.rdepsRev = rev
	g.rdepsOK = true
}

// TopologicalOrder returns target ids in an order consistent with depth.
func (g *Graph) TopologicalOrder() []types.TargetID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	order, ok := g.topoOrderLocked()
	if !ok {
		return nil
	}
	ids := make([]types.TargetID, len(order))
	for i, idx := range order {
		ids[i] = g.arena[idx].target.ID
	}
	return ids
}

// Waves groups the topological order into waves: wave k contains every node
// whose dependencies are all in waves < k. Waves partition the topological
// order (Testable Property 1).
func (g *Graph) Waves() [][]types.TargetID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	byDepth := make(map[int][]NodeIndex)
	maxDepth := -1
	for i, e := range g.arena {
		byDepth[e.depth] = append(byDepth[e.depth], NodeIndex(i))
		if e.depth > maxDepth {
			maxDepth = e.depth
		}
	}
	waves := make([][]types.TargetID, 0, maxDepth+1)
	for d := 0; d <= maxDepth; d++ {
		nodes := byDepth[d]
		sort.Slice(nodes, func(a, b int) bool {
			return g.arena[nodes[a]].target.ID.String() < g.arena[nodes[b]].target.ID.String()
		})
		wave := make([]types.TargetID, len(nodes))
		for i, idx := range nodes {
			wave[i] = g.arena[idx].target.ID
		}
		waves = append(waves, wave)
	}
	return waves
}

// Kind returns the Target.Kind for id.
func (g *Graph) Kind(id types.TargetID) (types.Kind, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byID[id]
	if !ok {
		return "", false
	}
	return g.arena[idx].target.Kind, true
}

// Target returns a copy of the Target record for id.
func (g *Graph) Target(id types.TargetID) (types.Target, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byID[id]
	if !ok {
		return types.Target{}, false
	}
	return g.arena[idx].target, true
}

// State returns the current NodeState for id.
func (g *Graph) State(id types.TargetID) (types.NodeState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byID[id]
	if !ok {
		return 0, false
	}
	return g.arena[idx].state, true
}

// SetState transitions id to state. It is the executor's job to only call
// this with legal transitions; Graph does not itself validate the state
// machine beyond existence of the node.
func (g *Graph) SetState(id types.TargetID, state types.NodeState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.byID[id]
	if !ok {
		return wverrors.New(wverrors.KindGraph, fmt.Sprintf("unknown target %s", id))
	}
	g.arena[idx].state = state
	return nil
}

// SetOutputs records produced artifact paths, called on Success/Cached.
func (g *Graph) SetOutputs(id types.TargetID, outputs []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx, ok := g.byID[id]; ok {
		g.arena[idx].outputs = outputs
	}
}

// Outputs returns the recorded output paths for id.
func (g *Graph) Outputs(id types.TargetID) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if idx, ok := g.byID[id]; ok {
		return g.arena[idx].outputs
	}
	return nil
}

// SetFingerprint records the last observed fingerprint for id.
func (g *Graph) SetFingerprint(id types.TargetID, fp types.ContentFingerprint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx, ok := g.byID[id]; ok {
		fpCopy := fp
		g.arena[idx].lastFingerprint = &fpCopy
	}
}

// Depth returns the longest-path-from-any-leaf depth of id.
func (g *Graph) Depth(id types.TargetID) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byID[id]
	if !ok {
		return 0, false
	}
	return g.arena[idx].depth, true
}

// Deps returns the direct dependencies (forward edges) of id.
func (g *Graph) Deps(id types.TargetID) []types.TargetID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byID[id]
	if !ok {
		return nil
	}
	deps := make([]types.TargetID, 0, len(g.arena[idx].forward))
	for _, d := range g.arena[idx].forward {
		deps = append(deps, g.arena[d].target.ID)
	}
	sort.Slice(deps, func(a, b int) bool { return deps[a].String() < deps[b].String() })
	return deps
}

// Rdeps returns the nodes that directly depend on id, computed from the
// reverse index (rebuilt lazily on first access after a mutation).
func (g *Graph) Rdeps(id types.TargetID) []types.TargetID {
	g.mu.Lock()
	g.rebuildRdeps()
	out := append([]types.TargetID(nil), g.rdepsRev[id]...)
	g.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].String() < out[b].String() })
	return out
}

// TransitiveRdeps returns every node reachable by following Rdeps
// transitively from id (used by the executor to mark Skipped on failure).
func (g *Graph) TransitiveRdeps(id types.TargetID) []types.TargetID {
	seen := make(map[types.TargetID]struct{})
	var walk func(types.TargetID)
	walk = func(cur types.TargetID) {
		for _, r := range g.Rdeps(cur) {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			walk(r)
		}
	}
	walk(id)
	out := make([]types.TargetID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].String() < out[b].String() })
	return out
}

// AllIDs returns every target id currently in the graph, lexicographically
// sorted.
func (g *Graph) AllIDs() []types.TargetID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]types.TargetID, 0, len(g.arena))
	for _, e := range g.arena {
		out = append(out, e.target.ID)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].String() < out[b].String() })
	return out
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.arena)
}
