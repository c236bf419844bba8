package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadWorkspace reads and parses the workspace file (conventionally
// `waveforge.kdl` at the workspace root). A missing file is an error here,
// unlike the optional global-config load — a workspace file is not
// optional.
func LoadWorkspace(path string) (*Workspace, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspace file %s: %w", path, err)
	}
	return parseWorkspace(string(content), filepath.Dir(path))
}

func parseWorkspace(content, root string) (*Workspace, error) {
	w := &Workspace{
		Root:        root,
		Cache:       DefaultCacheConfig(),
		Parallelism: 0, // 0 means "use runtime.NumCPU()" at executor construction
	}

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse workspace KDL: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "workspace":
			for _, cn := range n.Children {
				applyWorkspaceNode(w, cn)
			}
		default:
			// A bare workspace.kdl with no top-level "workspace" wrapper is
			// also accepted — its children are the settings directly.
			applyWorkspaceNode(w, n)
		}
	}
	return w, nil
}

func applyWorkspaceNode(w *Workspace, n *document.Node) {
	switch nodeName(n) {
	case "root":
		if s, ok := firstStringArg(n); ok {
			if filepath.IsAbs(s) {
				w.Root = s
			} else {
				w.Root = filepath.Clean(filepath.Join(w.Root, s))
			}
		}
	case "cache":
		for _, cn := range n.Children {
			switch nodeName(cn) {
			case "max_size":
				if s, ok := firstStringArg(cn); ok {
					if sz, err := parseSize(s); err == nil {
						w.Cache.MaxSize = sz
					}
				} else if v, ok := firstIntArg(cn); ok {
					w.Cache.MaxSize = int64(v)
				}
			case "max_entries":
				if v, ok := firstIntArg(cn); ok {
					w.Cache.MaxEntries = v
				}
			case "max_age_days":
				if v, ok := firstIntArg(cn); ok {
					w.Cache.MaxAgeDays = v
				}
			}
		}
	case "parallelism":
		if v, ok := firstIntArg(n); ok {
			w.Parallelism = v
		}
	case "ignore":
		w.IgnorePatterns = append(w.IgnorePatterns, collectStringArgs(n)...)
	case "language_spec_dir":
		if s, ok := firstStringArg(n); ok {
			w.LanguageSpecOverrideDirs = append(w.LanguageSpecOverrideDirs, s)
		}
	}
}

// LoadTargets reads and parses one BUILD.kdl file, returning its
// declarations (Name/DefinitionFile populated, but not yet interned into
// types.TargetID or deduplicated against the rest of the workspace — the
// caller does that across every BUILD.kdl it discovers).
func LoadTargets(path string) ([]TargetDecl, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read target file %s: %w", path, err)
	}
	return parseTargets(string(content), path)
}

func parseTargets(content, definitionFile string) ([]TargetDecl, error) {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse target KDL %s: %w", definitionFile, err)
	}

	var decls []TargetDecl
	for _, n := range doc.Nodes {
		if nodeName(n) != "target" {
			continue
		}
		name, _ := firstStringArg(n)
		decl := TargetDecl{
			Name:           name,
			Kind:           "library",
			DefinitionFile: definitionFile,
			Env:            map[string]string{},
			HandlerConfig:  map[string]any{},
		}
		for _, cn := range n.Children {
			applyTargetNode(&decl, cn)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func applyTargetNode(decl *TargetDecl, n *document.Node) {
	switch nodeName(n) {
	case "kind":
		if s, ok := firstStringArg(n); ok {
			decl.Kind = s
		}
	case "language":
		if s, ok := firstStringArg(n); ok {
			decl.Language = s
		}
	case "sources":
		decl.SourceGlobs = append(decl.SourceGlobs, collectStringArgs(n)...)
	case "deps":
		decl.Deps = append(decl.Deps, collectStringArgs(n)...)
	case "flags":
		decl.Flags = append(decl.Flags, collectStringArgs(n)...)
	case "output":
		if s, ok := firstStringArg(n); ok {
			decl.OutputPath = s
		}
	case "env":
		for _, cn := range n.Children {
			if s, ok := firstStringArg(cn); ok {
				decl.Env[nodeName(cn)] = s
			}
		}
	case "handler_config":
		for _, cn := range n.Children {
			decl.HandlerConfig[nodeName(cn)] = firstAnyArg(cn)
		}
	}
}

// --- node-walk helpers, following kdl_config.go's helper set ---

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstAnyArg(n *document.Node) any {
	if len(n.Arguments) == 0 {
		return nil
	}
	return n.Arguments[0].Value
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// parseSize handles "10MB"/"500KB"/"1GB"/"123B" suffixes, same convention
// as kdl_config.go's parseSize.
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	var multiplier int64 = 1
	var numStr string
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}
	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
