// Package config loads the workspace file and per-directory target
// declaration files that describe a build: cache limits, parallelism,
// ignore patterns, language-spec overrides, and the target graph's raw
// declarations before they're interned into internal/types.Target and
// fed to internal/graph.
//
// Parsing follows internal/config/kdl_config.go's style: KDL documents
// walked node-by-node through small typed helpers, no reflection-based
// unmarshal. Workspace/Target validation is layered on top with
// go-playground/validator/v10 struct tags, since that's a validation
// idiom the pack uses elsewhere for service configs even though this
// codebase's own KDL loader predates it.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CacheConfig mirrors the workspace file's `cache { ... }` block.
type CacheConfig struct {
	MaxSize    int64 `validate:"gte=0"`
	MaxEntries int   `validate:"gte=0"`
	MaxAgeDays int   `validate:"gte=0"`
}

// DefaultCacheConfig matches internal/cache.DefaultLimits in spirit: 1 GiB,
// 10,000 entries, 30 days.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize:    1 << 30,
		MaxEntries: 10_000,
		MaxAgeDays: 30,
	}
}

// Workspace is the parsed workspace file plus anything merged in from the
// user's global `~/.waveforge.kdl`.
type Workspace struct {
	Root                     string `validate:"required"`
	Cache                    CacheConfig
	Parallelism              int    `validate:"gte=0"`
	IgnorePatterns           []string // merged: global ∪ project, never replaced
	LanguageSpecOverrideDirs []string
}

// TargetDecl is one `target { ... }` block from a BUILD.kdl, before its
// TargetID is interned and its Sources glob resolved against the
// filesystem.
type TargetDecl struct {
	Name           string `validate:"required"`
	Kind           string `validate:"required,oneof=executable library test custom"`
	Language       string
	SourceGlobs    []string
	Deps           []string
	Flags          []string
	Env            map[string]string
	OutputPath     string
	HandlerConfig  map[string]any
	DefinitionFile string
}

var structValidator = validator.New()

// Validate runs struct-tag validation over a Workspace.
func Validate(w *Workspace) error {
	if err := structValidator.Struct(w); err != nil {
		return fmt.Errorf("invalid workspace config: %w", err)
	}
	return nil
}

// ValidateTarget runs struct-tag validation over one TargetDecl.
func ValidateTarget(t *TargetDecl) error {
	if err := structValidator.Struct(t); err != nil {
		return fmt.Errorf("invalid target %q: %w", t.Name, err)
	}
	return nil
}

// ValidateNoDuplicates fails if any two declarations in decls share a name,
// per the "duplicate names within a workspace fail to load" rule.
func ValidateNoDuplicates(decls []TargetDecl) error {
	seen := make(map[string]string, len(decls))
	for _, d := range decls {
		if prev, ok := seen[d.Name]; ok {
			return fmt.Errorf("duplicate target name %q declared in %s and %s", d.Name, prev, d.DefinitionFile)
		}
		seen[d.Name] = d.DefinitionFile
	}
	return nil
}
