package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/wavebuild/wavebuild/internal/logx"
	"github.com/wavebuild/wavebuild/internal/wverrors"
)

var cleanCommand = &cli.Command{
	Name:  "clean",
	Usage: "remove the workspace cache and artifacts",
	Action: func(c *cli.Context) error {
		root, err := workspaceRoot(c)
		if err != nil {
			return err
		}
		dir := cacheDir(root)
		if err := os.RemoveAll(dir); err != nil {
			return wverrors.Wrap(wverrors.KindCache, "remove cache directory", err)
		}
		logx.Infof("removed %s", dir)
		return nil
	},
}
