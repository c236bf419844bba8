package graph

import (
	"sort"

	"github.com/wavebuild/wavebuild/internal/types"
)

// Somepath returns one dependency path from a to b (a depends transitively
// on b), or nil if none exists. Uses BFS so the returned path is shortest.
func (g *Graph) Somepath(a, b types.TargetID) []types.TargetID {
	return g.Shortest(a, b)
}

// Shortest returns the shortest dependency path from a to b via BFS over
// forward edges.
func (g *Graph) Shortest(a, b types.TargetID) []types.TargetID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start, ok := g.byID[a]
	if !ok {
		return nil
	}
	end, ok := g.byID[b]
	if !ok {
		return nil
	}
	if start == end {
		return []types.TargetID{a}
	}

	prev := make(map[NodeIndex]NodeIndex)
	visited := map[NodeIndex]bool{start: true}
	queue := []NodeIndex{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		neighbors := append([]NodeIndex(nil), g.arena[cur].forward...)
		sort.Slice(neighbors, func(i, j int) bool {
			return g.arena[neighbors[i]].target.ID.String() < g.arena[neighbors[j]].target.ID.String()
		})
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			prev[n] = cur
			if n == end {
				return g.reconstructPath(prev, start, end)
			}
			queue = append(queue, n)
		}
	}
	return nil
}

func (g *Graph) reconstructPath(prev map[NodeIndex]NodeIndex, start, end NodeIndex) []types.TargetID {
	var rev []NodeIndex
	cur := end
	for cur != start {
		rev = append(rev, cur)
		cur = prev[cur]
	}
	rev = append(rev, start)
	out := make([]types.TargetID, len(rev))
	for i, idx := range rev {
		out[len(rev)-1-i] = g.arena[idx].target.ID
	}
	return out
}

// Allpaths returns every simple dependency path from a to b.
func (g *Graph) Allpaths(a, b types.TargetID) [][]types.TargetID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start, ok := g.byID[a]
	if !ok {
		return nil
	}
	end, ok := g.byID[b]
	if !ok {
		return nil
	}

	var results [][]types.TargetID
	visited := make(map[NodeIndex]bool)
	var path []NodeIndex

	var dfs func(cur NodeIndex)
	dfs = func(cur NodeIndex) {
		visited[cur] = true
		path = append(path, cur)
		if cur == end {
			cp := make([]types.TargetID, len(path))
			for i, idx := range path {
				cp[i] = g.arena[idx].target.ID
			}
			results = append(results, cp)
		} else {
			for _, n := range g.arena[cur].forward {
				if !visited[n] {
					dfs(n)
				}
			}
		}
		path = path[:len(path)-1]
		visited[cur] = false
	}
	dfs(start)
	return results
}

// TransitiveDeps returns every node reachable by following Deps
// transitively from id, optionally bounded to maxDepth hops (maxDepth <= 0
// means unbounded).
func (g *Graph) TransitiveDeps(id types.TargetID, maxDepth int) []types.TargetID {
	seen := make(map[types.TargetID]struct{})
	type frontier struct {
		id    types.TargetID
		depth int
	}
	queue := []frontier{{id, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for _, d := range g.Deps(cur.id) {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			queue = append(queue, frontier{d, cur.depth + 1})
		}
	}
	out := make([]types.TargetID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].String() < out[b].String() })
	return out
}

// TransitiveRdepsAtDepth is TransitiveRdeps bounded to maxDepth hops
// (maxDepth <= 0 means unbounded), for rdeps(X, d) query symmetry with
// TransitiveDeps.
func (g *Graph) TransitiveRdepsAtDepth(id types.TargetID, maxDepth int) []types.TargetID {
	seen := make(map[types.TargetID]struct{})
	type frontier struct {
		id    types.TargetID
		depth int
	}
	queue := []frontier{{id, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for _, r := range g.Rdeps(cur.id) {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			queue = append(queue, frontier{r, cur.depth + 1})
		}
	}
	out := make([]types.TargetID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].String() < out[b].String() })
	return out
}

// Siblings returns every target declared in the same package path as id.
func (g *Graph) Siblings(id types.TargetID) []types.TargetID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byID[id]
	if !ok {
		return nil
	}
	pkg := g.arena[idx].target.ID.PackagePath()
	var out []types.TargetID
	for _, e := range g.arena {
		if e.target.ID.PackagePath() == pkg && e.target.ID != id {
			out = append(out, e.target.ID)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].String() < out[b].String() })
	return out
}

// BuildFiles returns the distinct BUILD.kdl-equivalent definition files that
// declared the targets in ids.
func (g *Graph) BuildFiles(ids []types.TargetID) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, id := range ids {
		if idx, ok := g.byID[id]; ok {
			if f := g.arena[idx].target.DefinitionFile; f != "" {
				seen[f] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
