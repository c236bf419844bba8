package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/wavebuild/wavebuild/internal/executor"
	"github.com/wavebuild/wavebuild/internal/graph"
	"github.com/wavebuild/wavebuild/internal/logx"
	"github.com/wavebuild/wavebuild/internal/types"
	"github.com/wavebuild/wavebuild/internal/wverrors"
)

var buildCommand = &cli.Command{
	Name:      "build",
	Usage:     "build all targets, or one target and its dependencies",
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

		if err := scopeGraph(ws.graph, c.Args().First()); err != nil {
			return err
		}

		result, err := runBuild(c, ws, buildFaultPolicy(c))
		if err != nil {
			return err
		}
		return buildExitError(result)
	},
}

func buildFaultPolicy(c *cli.Context) executor.FaultPolicy {
	if c.Bool("keep-going") {
		return executor.KeepGoing
	}
	return executor.FailFast
}

// runBuild is the shared engine invocation behind `build` and `test`:
// wire handlers, attach metrics and the CLI renderer, run to completion,
// and flush the cache/artifact stores before returning. Run itself never
// fails for "some targets failed" (that's Result.Failed); it only returns
// an error for cancellation or an unrecoverable engine fault.
func runBuild(c *cli.Context, ws *workspace, policy executor.FaultPolicy) (executor.Result, error) {
	runID := uuid.NewString()
	logx.Infof("build run %s starting", runID)

	e := executor.New(ws.graph, ws.store, ws.arts, ws.events)
	e.SetMetrics(&ws.metrics.Executor)
	registerHandlers(e, ws.graph)

	stopRender := newRenderer(ws.events, c.Bool("no-color"))
	defer stopRender()

	cp := checkpointPath(ws.root)
	if err := os.MkdirAll(filepath.Dir(cp), 0o755); err != nil {
		return executor.Result{}, wverrors.Wrap(wverrors.KindCache, "create checkpoint directory", err)
	}

	result, err := e.Run(c.Context, executor.Options{
		Workers:        resolveWorkers(c, ws.ws),
		FaultPolicy:    policy,
		WorkspaceRoot:  ws.root,
		CheckpointPath: cp,
	})
	if err != nil {
		return result, err
	}

	if ferr := ws.store.Flush(); ferr != nil {
		return result, wverrors.Wrap(wverrors.KindCache, "flush target/action cache", ferr)
	}
	if ferr := ws.arts.Flush(); ferr != nil {
		return result, wverrors.Wrap(wverrors.KindCache, "flush artifact index", ferr)
	}
	return result, nil
}

func buildExitError(result executor.Result) error {
	if len(result.Failed) == 0 {
		return nil
	}
	return wverrors.New(wverrors.KindBuild, fmt.Sprintf("%d target(s) failed", len(result.Failed)))
}

// scopeGraph marks every target outside target's transitive dependency
// closure Skipped so the Executor never admits it; when target is empty
// it changes nothing and the whole graph stays in scope. Skipped is terminal and never satisfies a
// dependent's readiness check, so nothing inside the closure can
// accidentally depend on skipped work.
func scopeGraph(g *graph.Graph, target string) error {
	if target == "" {
		return nil
	}
	id, err := types.Intern(target)
	if err != nil {
		return wverrors.Wrap(wverrors.KindConfig, "parse target", err)
	}
	if _, ok := g.Target(id); !ok {
		return wverrors.New(wverrors.KindConfig, fmt.Sprintf("unknown target %s", id))
	}
	keep := map[types.TargetID]bool{id: true}
	for _, d := range g.TransitiveDeps(id, 0) {
		keep[d] = true
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

func checkpointPath(root string) string {
	return filepath.Join(cacheDir(root), "checkpoints", "latest.bin")
}
