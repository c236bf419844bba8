package config

import (
	"errors"
	"os"
	"path/filepath"
)

// LoadGlobal reads `~/.waveforge.kdl` if present, returning (nil, nil) when
// the user has no global config — a missing file is fine, just scoped to
// $HOME instead of the project root.
func LoadGlobal(homeDir string) (*Workspace, error) {
	path := filepath.Join(homeDir, ".waveforge.kdl")
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return parseWorkspace(string(content), homeDir)
}

// Merge layers project over global: scalar fields (cache limits,
// parallelism) take the project's value whenever the project set one
// (non-zero), falling back to global otherwise; IgnorePatterns and
// LanguageSpecOverrideDirs are unioned rather than replaced, since both a
// user's personal exclusions and a project's own belong in the final set.
func Merge(global, project *Workspace) *Workspace {
	if global == nil {
		return project
	}
	if project == nil {
		return global
	}

	merged := *project
	if merged.Cache.MaxSize == 0 {
		merged.Cache.MaxSize = global.Cache.MaxSize
	}
	if merged.Cache.MaxEntries == 0 {
		merged.Cache.MaxEntries = global.Cache.MaxEntries
	}
	if merged.Cache.MaxAgeDays == 0 {
		merged.Cache.MaxAgeDays = global.Cache.MaxAgeDays
	}
	if merged.Parallelism == 0 {
		merged.Parallelism = global.Parallelism
	}

	merged.IgnorePatterns = unionStrings(global.IgnorePatterns, project.IgnorePatterns)
	merged.LanguageSpecOverrideDirs = unionStrings(global.LanguageSpecOverrideDirs, project.LanguageSpecOverrideDirs)
	return &merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
