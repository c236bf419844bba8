// Package types holds the data model shared across every engine component:
// interned target identifiers, immutable target records, and the small
// closed enums (Kind, Language, NodeState) the rest of the engine switches
// on.
package types

import (
	"fmt"
	"strings"
	"sync"
)

// Kind is the closed set of target kinds a workspace may declare.
type Kind string

const (
	KindExecutable Kind = "executable"
	KindLibrary    Kind = "library"
	KindTest       Kind = "test"
	KindCustom     Kind = "custom"
)

// Language is the closed enum of first-class languages plus the Generic
// escape hatch used by data-only or script targets.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangCSharp     Language = "csharp"
	LangCPP        Language = "cpp"
	LangRust       Language = "rust"
	LangPHP        Language = "php"
	LangGeneric    Language = "generic"
)

// TargetID is a fully qualified `//path/to/pkg:name` identifier. TargetID
// values are only ever produced by Intern, so equality and map-key use are
// just value comparisons on the interned string.
type TargetID struct {
	s string
}

func (t TargetID) String() string { return t.s }
func (t TargetID) IsZero() bool   { return t.s == "" }

// internIndex is the single point of truth for TargetID identity: every
// TargetID in the process is backed by the same *string header, so
// TargetIDs are cheap to compare and cheap to use as map keys.
type internIndex struct {
	mu   sync.RWMutex
	seen map[string]string
}

var globalIntern = &internIndex{seen: make(map[string]string)}

// Intern parses and validates a `//path:name` string and returns the
// canonical TargetID for it. Parsing failures return an error rather than
// panicking so workspace loaders can report a Config error with the
// offending literal.
func Intern(raw string) (TargetID, error) {
	if err := ValidateTargetIDString(raw); err != nil {
		return TargetID{}, err
	}
	globalIntern.mu.RLock()
	if s, ok := globalIntern.seen[raw]; ok {
		globalIntern.mu.RUnlock()
		return TargetID{s: s}, nil
	}
	globalIntern.mu.RUnlock()

	globalIntern.mu.Lock()
	defer globalIntern.mu.Unlock()
	if s, ok := globalIntern.seen[raw]; ok {
		return TargetID{s: s}, nil
	}
	globalIntern.seen[raw] = raw
	return TargetID{s: raw}, nil
}

// MustIntern is Intern without the error return, for literals known to be
// valid at compile time (tests, generated discovery IDs already validated
// once).
func MustIntern(raw string) TargetID {
	id, err := Intern(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// ValidateTargetIDString checks the `//path/to/pkg:name` shape without
// interning it.
func ValidateTargetIDString(raw string) error {
	if !strings.HasPrefix(raw, "//") {
		return fmt.Errorf("target id %q must start with //", raw)
	}
	rest := raw[2:]
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return fmt.Errorf("target id %q missing :name suffix", raw)
	}
	pkg, name := rest[:idx], rest[idx+1:]
	if name == "" {
		return fmt.Errorf("target id %q has empty name", raw)
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("target id %q name must not contain /", raw)
	}
	if pkg == "" && !strings.HasPrefix(raw, "//:") {
		return fmt.Errorf("target id %q missing package path", raw)
	}
	return nil
}

// PackagePath returns the `path/to/pkg` portion of the id.
func (t TargetID) PackagePath() string {
	rest := strings.TrimPrefix(t.s, "//")
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return rest
	}
	return rest[:idx]
}

// Name returns the `:name` portion of the id, without the colon.
func (t TargetID) Name() string {
	idx := strings.LastIndex(t.s, ":")
	if idx < 0 {
		return ""
	}
	return t.s[idx+1:]
}

// Target is an immutable record describing build intent. Once constructed
// by the workspace loader a Target is never mutated; Node carries the
// mutable build-state counterpart.
type Target struct {
	ID             TargetID
	Kind           Kind
	Language       Language
	SourceGlobs    []string
	Sources        []string // resolved, deduplicated, sorted source paths
	DeclaredDeps   []TargetID
	Flags          []string
	Env            map[string]string
	OutputPath     string
	HandlerConfig  map[string]any
	DefinitionFile string // BUILD.kdl path this target was declared in, for diagnostics
}

// DepSet returns DeclaredDeps as a set for membership tests.
func (t *Target) DepSet() map[TargetID]struct{} {
	set := make(map[TargetID]struct{}, len(t.DeclaredDeps))
	for _, d := range t.DeclaredDeps {
		set[d] = struct{}{}
	}
	return set
}
