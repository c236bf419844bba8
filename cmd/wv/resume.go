package main

import (
	"github.com/urfave/cli/v2"

	"github.com/wavebuild/wavebuild/internal/executor"
	"github.com/wavebuild/wavebuild/internal/wverrors"
)

var resumeCommand = &cli.Command{
	Name:  "resume",
	Usage: "resume a build from its last checkpoint",
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

		if err := executor.Resume(ws.graph, checkpointPath(ws.root)); err != nil {
			var taxErr *wverrors.Error
			if wverrors.As(err, &taxErr) {
				return taxErr
			}
			return wverrors.Wrap(wverrors.KindCache, "read checkpoint", err)
		}

		result, err := runBuild(c, ws, buildFaultPolicy(c))
		if err != nil {
			return err
		}
		return buildExitError(result)
	},
}
