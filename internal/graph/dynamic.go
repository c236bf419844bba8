package graph

import (
	"time"

	"github.com/wavebuild/wavebuild/internal/types"
)

// Discovery is produced when a Handler's build step returns
// produced_discoveries (spec 3): a target generated new targets (e.g.
// schema compilation emitting new compile units).
type Discovery struct {
	Origin      types.TargetID
	Created     []types.Target
	CreatedDeps []Edge // edges among/introduced-by the created targets
	Timestamp   time.Time
}

// Edge is a from->to dependency pair used when describing a batch of edges
// to add atomically.
type Edge struct {
	From types.TargetID
	To   types.TargetID
}

// DynamicExtend adds the nodes and edges in d atomically: on any failure
// (duplicate id, unknown dependency outside the batch, or a cycle) nothing
// is mutated. Discovered targets may only depend on nodes already present
// in the graph or introduced in the same batch — per the decided Open
// Question in DESIGN.md, discovery never mutates declared_deps of a
// pre-existing node, it only adds new nodes/edges.
func (g *Graph) DynamicExtend(d Discovery) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Snapshot for rollback.
	arenaLen := len(g.arena)
	byIDSnapshot := make(map[types.TargetID]NodeIndex, len(g.byID))
	for k, v := range g.byID {
		byIDSnapshot[k] = v
	}
	fwdLens := make([]int, arenaLen)
	for i := range g.arena {
		fwdLens[i] = len(g.arena[i].forward)
	}

	rollback := func() {
		g.arena = g.arena[:arenaLen]
		g.byID = byIDSnapshot
		for i := range g.arena {
			if e := &g.arena[i]; len(e.forward) != fwdLens[i] {
				e.forward = e.forward[:fwdLens[i]]
				e.resolvedDeps = make(map[types.TargetID]struct{}, len(e.forward))
				for _, d := range e.forward {
					e.resolvedDeps[g.arena[d].target.ID] = struct{}{}
				}
			}
		}
		g.recomputeDepths()
		g.rdepsOK = false
	}

	for _, t := range d.Created {
		if err := g.addTargetLocked(t); err != nil {
			rollback()
			return err
		}
	}
	for _, e := range d.CreatedDeps {
		if err := g.addEdgeLocked(e.From, e.To); err != nil {
			rollback()
			return err
		}
	}
	g.recomputeDepths()
	g.rdepsOK = false
	return nil
}
