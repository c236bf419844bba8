package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var graphCommand = &cli.Command{
	Name:      "graph",
	Usage:     "emit the dependency graph, or one target's dependency closure",
	ArgsUsage: "[target]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "dot", Usage: "output format: pretty, list, json, dot"},
	},
	Action: func(c *cli.Context) error {
		ws, err := loadWorkspace(c, false)
		if err != nil {
			return err
		}
		defer ws.events.Close()

		expr := "all"
		if target := c.Args().First(); target != "" {
			expr = fmt.Sprintf("deps(%s) + %s", target, target)
		}

		out, err := evalQuery(ws, expr, c.String("format"))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}
