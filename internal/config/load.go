package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wavebuild/wavebuild/internal/ignore"
	"github.com/wavebuild/wavebuild/internal/types"
)

// buildFileName is the per-directory target declaration file, analogous to
// a BUILD file in other polyglot build systems.
const buildFileName = "BUILD.kdl"

// workspaceFileName is the workspace root declaration.
const workspaceFileName = "waveforge.kdl"

// Load walks root for every buildFileName, parses and validates each, and
// returns the merged Workspace plus the full set of declared targets with
// source globs resolved to concrete, sorted, deduplicated paths. homeDir
// may be empty to skip the global-config merge step (useful in tests).
func Load(root, homeDir string) (*Workspace, []types.Target, error) {
	project, err := LoadWorkspace(filepath.Join(root, workspaceFileName))
	if err != nil {
		return nil, nil, err
	}

	ws := project
	if homeDir != "" {
		global, err := LoadGlobal(homeDir)
		if err != nil {
			return nil, nil, err
		}
		ws = Merge(global, project)
	}
	if err := Validate(ws); err != nil {
		return nil, nil, err
	}

	matcher := ignore.New(ws.Root, toIgnorePatterns(ws.IgnorePatterns))

	var decls []TargetDecl
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if matcher.ShouldIgnore(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != buildFileName {
			return nil
		}
		found, err := LoadTargets(path)
		if err != nil {
			return err
		}
		decls = append(decls, found...)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("discover target files: %w", err)
	}

	if err := ValidateNoDuplicates(decls); err != nil {
		return nil, nil, err
	}

	targets := make([]types.Target, 0, len(decls))
	for _, d := range decls {
		if err := ValidateTarget(&d); err != nil {
			return nil, nil, err
		}
		t, err := resolveTarget(d)
		if err != nil {
			return nil, nil, err
		}
		targets = append(targets, t)
	}
	return ws, targets, nil
}

func toIgnorePatterns(raw []string) []ignore.Pattern {
	out := make([]ignore.Pattern, 0, len(raw))
	for _, r := range raw {
		if strings.HasPrefix(r, "!") {
			out = append(out, ignore.Pattern{Raw: strings.TrimPrefix(r, "!"), Negate: true})
			continue
		}
		out = append(out, ignore.Pattern{Raw: r})
	}
	return out
}

// resolveTarget interns the declaration's TargetID, resolves its
// DeclaredDeps to TargetIDs, and expands SourceGlobs (with `!negation`
// support) against the declaration's directory into a sorted, deduplicated
// source list.
func resolveTarget(d TargetDecl) (types.Target, error) {
	pkgDir := filepath.Dir(d.DefinitionFile)
	id, err := types.Intern(fmt.Sprintf("//%s:%s", filepath.ToSlash(pkgDir), d.Name))
	if err != nil {
		return types.Target{}, fmt.Errorf("target %q in %s: %w", d.Name, d.DefinitionFile, err)
	}

	deps := make([]types.TargetID, 0, len(d.Deps))
	for _, raw := range d.Deps {
		depID, err := types.Intern(raw)
		if err != nil {
			return types.Target{}, fmt.Errorf("target %q dep %q: %w", d.Name, raw, err)
		}
		deps = append(deps, depID)
	}

	sources, err := expandSourceGlobs(pkgDir, d.SourceGlobs)
	if err != nil {
		return types.Target{}, fmt.Errorf("target %q sources: %w", d.Name, err)
	}

	return types.Target{
		ID:             id,
		Kind:           types.Kind(d.Kind),
		Language:       types.Language(d.Language),
		SourceGlobs:    d.SourceGlobs,
		Sources:        sources,
		DeclaredDeps:   deps,
		Flags:          d.Flags,
		Env:            d.Env,
		OutputPath:     d.OutputPath,
		HandlerConfig:  d.HandlerConfig,
		DefinitionFile: d.DefinitionFile,
	}, nil
}

// expandSourceGlobs resolves positive globs with doublestar.Glob, then
// removes any path matched by a `!negation` glob, in declaration order —
// later negations only ever remove, never re-add, matching the way a
// source list reads top to bottom.
func expandSourceGlobs(dir string, globs []string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]struct{})
	var ordered []string

	for _, g := range globs {
		negate := strings.HasPrefix(g, "!")
		pattern := strings.TrimPrefix(g, "!")

		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", g, err)
		}
		for _, m := range matches {
			full := filepath.Join(dir, m)
			if negate {
				delete(seen, full)
				continue
			}
			if _, ok := seen[full]; !ok {
				seen[full] = struct{}{}
				ordered = append(ordered, full)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for _, p := range ordered {
		if _, ok := seen[p]; ok {
			out = append(out, p)
			delete(seen, p)
		}
	}
	sort.Strings(out)
	return out, nil
}
