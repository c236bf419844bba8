// Command wv is the waveforge CLI: build, test, clean, graph, query and
// resume a polyglot workspace. Flag/command wiring follows
// internal/config's lci/cmd/lci/main.go ancestor — a single urfave/cli/v2
// App with global flags consumed by a small per-command Before/Action
// split — generalized from lci's single-tool-surface app to six
// subcommands over the build graph.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/wavebuild/wavebuild/internal/logx"
	"github.com/wavebuild/wavebuild/internal/wverrors"
)

// cacheDirName is the workspace-relative directory persisted build state
// lives under.
const cacheDirName = ".builder-cache"

func main() {
	app := &cli.App{
		Name:                   "wv",
		Usage:                  "a polyglot incremental build orchestrator",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "workspace root directory",
				Value:   ".",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "parallel build workers (0 = workspace default)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable engine debug logging",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable colored event-stream output",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "HTTP listen address for Prometheus metrics (empty disables)",
			},
		},
		Before: func(c *cli.Context) error {
			logx.SetEnabled(c.Bool("verbose"))
			return nil
		},
		Commands: []*cli.Command{
			buildCommand,
			testCommand,
			cleanCommand,
			graphCommand,
			queryCommand,
			resumeCommand,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := app.RunContext(ctx, os.Args)
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "wv: interrupted")
		os.Exit(130)
	}

	fmt.Fprintln(os.Stderr, "wv:", err)
	os.Exit(wverrors.ExitCode(err))
}

func workspaceRoot(c *cli.Context) (string, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return "", wverrors.Wrap(wverrors.KindConfig, "resolve workspace root", err)
	}
	return root, nil
}

func cacheDir(root string) string { return filepath.Join(root, cacheDirName) }
