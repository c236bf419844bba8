package main

import (
	"github.com/urfave/cli/v2"

	"github.com/wavebuild/wavebuild/internal/executor"
	"github.com/wavebuild/wavebuild/internal/graph"
	"github.com/wavebuild/wavebuild/internal/types"
	"github.com/wavebuild/wavebuild/internal/wverrors"
)

var testCommand = &cli.Command{
	Name:      "test",
	Usage:     "build and run test-kind targets",
	ArgsUsage: "[target]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "keep-going", Aliases: []string{"k"}, Usage: "continue building independent targets after a failure"},
		&cli.BoolFlag{Name: "no-analysis", Usage: "skip import-based dependency discovery, use declared deps only"},
	},
	Action: func(c *cli.Context) error {
		ws, err := loadWorkspace(c, !c.Bool("no-analysis"))
		if err != nil {
			return err
		}
		defer ws.events.Close()

		if target := c.Args().First(); target != "" {
			if err := scopeGraph(ws.graph, target); err != nil {
				return err
			}
		} else if err := scopeToTestTargets(ws.graph); err != nil {
			return err
		}

		result, err := runBuild(c, ws, buildFaultPolicy(c))
		if err != nil {
			return err
		}
		return buildExitError(result)
	},
}

// scopeToTestTargets restricts a bare `wv test` to the union of every
// KindTest target's own dependency closure, skipping everything else:
// non-test targets that no test depends on have nothing to verify here.
func scopeToTestTargets(g *graph.Graph) error {
	keep := make(map[types.TargetID]bool)
	var tests []types.TargetID
	for _, id := range g.AllIDs() {
		if kind, ok := g.Kind(id); ok && kind == types.KindTest {
			tests = append(tests, id)
		}
	}
	if len(tests) == 0 {
		return wverrors.New(wverrors.KindConfig, "no test targets in workspace")
	}
	for _, id := range tests {
		keep[id] = true
		for _, d := range g.TransitiveDeps(id, 0) {
			keep[d] = true
		}
	}
	for _, other := range g.AllIDs() {
		if !keep[other] {
			if err := g.SetState(other, types.Skipped); err != nil {
				return err
			}
		}
	}
	return nil
}
