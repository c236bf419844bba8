package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wavebuild/wavebuild/internal/graph"
)

// Format selects a Render output shape.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatList   Format = "list"
	FormatJSON   Format = "json"
	FormatDot    Format = "dot"
)

// Render formats v according to format. dot additionally consults g to
// restrict edges to ones whose both endpoints are present in the result.
func Render(v Value, format Format, g *graph.Graph) (string, error) {
	switch format {
	case FormatPretty, "":
		return renderPretty(v), nil
	case FormatList:
		return renderList(v), nil
	case FormatJSON:
		return renderJSON(v)
	case FormatDot:
		return renderDot(v, g), nil
	default:
		return "", fmt.Errorf("unknown render format %q", format)
	}
}

func renderList(v Value) string {
	switch v.kind {
	case valStrings:
		return strings.Join(v.strings, "\n")
	case valPath:
		ids := make([]string, len(v.path))
		for i, id := range v.path {
			ids[i] = id.String()
		}
		return strings.Join(ids, "\n")
	case valPaths:
		var lines []string
		for _, p := range v.paths {
			ids := make([]string, len(p))
			for i, id := range p {
				ids[i] = id.String()
			}
			lines = append(lines, strings.Join(ids, " -> "))
		}
		return strings.Join(lines, "\n")
	default:
		ids := v.IDs()
		lines := make([]string, len(ids))
		for i, id := range ids {
			lines[i] = id.String()
		}
		return strings.Join(lines, "\n")
	}
}

func renderPretty(v Value) string {
	switch v.kind {
	case valPath:
		if len(v.path) == 0 {
			return "(no path)"
		}
		ids := make([]string, len(v.path))
		for i, id := range v.path {
			ids[i] = id.String()
		}
		return strings.Join(ids, "\n  -> ")
	case valPaths:
		if len(v.paths) == 0 {
			return "(no paths)"
		}
		var sb strings.Builder
		for i, p := range v.paths {
			fmt.Fprintf(&sb, "path %d:\n", i+1)
			ids := make([]string, len(p))
			for j, id := range p {
				ids[j] = id.String()
			}
			sb.WriteString("  " + strings.Join(ids, "\n  -> ") + "\n")
		}
		return strings.TrimRight(sb.String(), "\n")
	case valStrings:
		if len(v.strings) == 0 {
			return "(empty)"
		}
		return strings.Join(v.strings, "\n")
	default:
		ids := v.IDs()
		if len(ids) == 0 {
			return "(empty set)"
		}
		lines := make([]string, len(ids))
		for i, id := range ids {
			lines[i] = id.String()
		}
		return strings.Join(lines, "\n")
	}
}

type jsonPayload struct {
	Kind    string     `json:"kind"`
	Targets []string   `json:"targets,omitempty"`
	Path    []string   `json:"path,omitempty"`
	Paths   [][]string `json:"paths,omitempty"`
	Strings []string   `json:"strings,omitempty"`
}

func renderJSON(v Value) (string, error) {
	p := jsonPayload{}
	switch v.kind {
	case valSet:
		p.Kind = "set"
		for _, id := range v.ids {
			p.Targets = append(p.Targets, id.String())
		}
	case valPath:
		p.Kind = "path"
		for _, id := range v.path {
			p.Path = append(p.Path, id.String())
		}
	case valPaths:
		p.Kind = "paths"
		for _, path := range v.paths {
			var ids []string
			for _, id := range path {
				ids = append(ids, id.String())
			}
			p.Paths = append(p.Paths, ids)
		}
	case valStrings:
		p.Kind = "strings"
		p.Strings = v.strings
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// renderDot emits a graphviz digraph of v's member targets, with edges
// limited to dependencies whose both ends are present in the result set —
// this keeps a `query` invocation's dot output scoped to what was asked
// for rather than dumping the whole workspace graph.
func renderDot(v Value, g *graph.Graph) string {
	ids := v.IDs()
	if g == nil || len(ids) == 0 {
		var sb strings.Builder
		sb.WriteString("digraph wavebuild {\n")
		for _, id := range ids {
			fmt.Fprintf(&sb, "  %q;\n", id.String())
		}
		sb.WriteString("}\n")
		return sb.String()
	}

	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		present[id.String()] = struct{}{}
	}

	var sb strings.Builder
	sb.WriteString("digraph wavebuild {\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, "  %q;\n", id.String())
	}
	for _, id := range ids {
		for _, dep := range g.Deps(id) {
			if _, ok := present[dep.String()]; ok {
				fmt.Fprintf(&sb, "  %q -> %q;\n", id.String(), dep.String())
			}
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
