package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/wavebuild/wavebuild/internal/query"
	"github.com/wavebuild/wavebuild/internal/wverrors"
)

var queryCommand = &cli.Command{
	Name:      "query",
	Usage:     "evaluate a dependency query expression",
	ArgsUsage: "<expression>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "pretty", Usage: "output format: pretty, list, json, dot"},
	},
	Action: func(c *cli.Context) error {
		expr := c.Args().First()
		if expr == "" {
			return wverrors.New(wverrors.KindConfig, "query requires an expression argument")
		}

		ws, err := loadWorkspace(c, false)
		if err != nil {
			return err
		}
		defer ws.events.Close()

		out, err := evalQuery(ws, expr, c.String("format"))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func evalQuery(ws *workspace, expr, format string) (string, error) {
	prog, err := query.Parse(expr)
	if err != nil {
		return "", wverrors.Wrap(wverrors.KindConfig, "parse query", err)
	}
	val, err := query.Eval(prog, ws.graph)
	if err != nil {
		return "", wverrors.Wrap(wverrors.KindConfig, "evaluate query", err)
	}
	out, err := query.Render(val, query.Format(format), ws.graph)
	if err != nil {
		return "", wverrors.Wrap(wverrors.KindConfig, "render query result", err)
	}
	return out, nil
}
