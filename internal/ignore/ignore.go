// Package ignore implements the path-exclusion engine shared by directory
// scanning and the analyzer's import walk: a set of glob patterns, each
// carrying a severity class, evaluated against a candidate path to decide
// whether (and how strongly) it should be skipped.
//
// Matching follows the layered precedence of internal/config's
// GitignoreParser (negatable patterns, directory-only patterns, absolute
// vs. relative anchoring) but is restructured around bmatcuk/doublestar's
// Match instead of a hand-rolled PatternType/prefix/suffix/regex fast-path
// cache — doublestar already understands "**" and bracket classes, so the
// pattern-type dispatch buys nothing here.
package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Severity classifies how strongly a matched pattern should be honored.
// Critical marks the hardcoded base exclusions, which only a user
// negation pattern re-includes; the rest are
// advisory strength levels a caller can filter on (e.g. "only treat High
// and above as skip-worthy for indexing, but report Moderate/Low in a
// dry-run listing").
type Severity int

const (
	Low Severity = iota
	Moderate
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Moderate:
		return "moderate"
	default:
		return "low"
	}
}

// Pattern is one glob rule. Raw is a doublestar pattern relative to the
// matcher's root; Negate re-includes paths an earlier pattern excluded.
type Pattern struct {
	Raw      string
	Negate   bool
	Severity Severity
}

// Match is the outcome of evaluating a path: whether it's ignored, which
// pattern decided it, and at what severity.
type Match struct {
	Ignored  bool
	Pattern  string
	Severity Severity
}

// hardcodedBases are always-ignored path components, regardless of any
// user configuration, unless explicitly re-included via a negated user
// pattern. Mirrors internal/config's getDefaultExclusions: package-manager
// directories, build output, editor/OS junk, and compiled artifacts.
var hardcodedBases = []string{
	"**/.*/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/bower_components/**",
	"**/jspm_packages/**",
	"**/.bundle/**",
	"**/.gradle/**",
	"**/.m2/**",
	"**/.ivy2/**",
	"**/.cargo/**",
	"**/venv/**",
	"**/virtualenv/**",
	"**/.venv/**",
	"**/site-packages/**",
	"**/Pods/**",
	"**/Carthage/**",
	"**/dist/**",
	"**/build/**",
	"**/out/**",
	"**/target/**",
	"**/obj/**",
	"**/CMakeFiles/**",
	"**/__pycache__/**",
	"**/*.pyc",
	"**/.pytest_cache/**",
	"**/.mypy_cache/**",
	"**/.ruff_cache/**",
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/desktop.ini",
	"**/.git/**",
	"**/.hg/**",
	"**/.svn/**",
	"**/.idea/**",
	"**/.vscode/**",
}

// Matcher evaluates paths against user-declared patterns layered over the
// hardcoded base exclusions.
type Matcher struct {
	root     string
	hardcoded []Pattern
	negations []Pattern // user patterns with Negate == true
	rules     []Pattern // user patterns with Negate == false, in file order
}

// New builds a Matcher rooted at root. userPatterns are evaluated in the
// order given; severity overrides (from a .waveforge-ignore.yaml) are
// applied by LoadOverrides after construction.
func New(root string, userPatterns []Pattern) *Matcher {
	m := &Matcher{root: root}
	for _, raw := range hardcodedBases {
		m.hardcoded = append(m.hardcoded, Pattern{Raw: raw, Severity: Critical})
	}
	for _, p := range userPatterns {
		if p.Severity == 0 && !p.Negate {
			p.Severity = Moderate
		}
		if p.Negate {
			m.negations = append(m.negations, p)
		} else {
			m.rules = append(m.rules, p)
		}
	}
	return m
}

// severityOverrides is the shape of an optional .waveforge-ignore.yaml:
// a map from glob pattern to severity name, letting a project downgrade
// or upgrade a pattern's severity without rewriting the pattern list.
type severityOverrides map[string]string

// LoadOverrides reads a YAML severity-override file (if present) and
// applies it to the matcher's existing user rules, matching by raw
// pattern text. A missing file is not an error.
func LoadOverrides(m *Matcher, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read ignore overrides: %w", err)
	}
	var overrides severityOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse ignore overrides %s: %w", path, err)
	}
	for i, r := range m.rules {
		if name, ok := overrides[r.Raw]; ok {
			m.rules[i].Severity = parseSeverity(name)
		}
	}
	return nil
}

func parseSeverity(s string) Severity {
	switch strings.ToLower(s) {
	case "critical":
		return Critical
	case "high":
		return High
	case "low":
		return Low
	default:
		return Moderate
	}
}

// Check evaluates path (an absolute path under the matcher's root, or a
// path already relative to it) and returns the single Match that decides whether it's
// ignored. Precedence, highest to lowest:
//
//  1. A user negation pattern matching path wins outright — it returns
//     not-ignored even over a hardcoded base, so "node_modules/**" can be
//     re-included for a vendored dependency a build target actually reads.
//  2. A hardcoded base pattern matches — Critical, the directory is never
//     entered.
//  3. User non-negation patterns, evaluated in declaration order; the
//     first to match wins (this package does not use last-match-wins
//     layering the way a flat .gitignore file does, since the first
//     pattern a user writes is the one they expect to govern).
//  4. No pattern matches — not ignored.
func (m *Matcher) Check(path string) Match {
	rel := m.relativize(path)

	for _, p := range m.negations {
		if globMatch(p.Raw, rel) {
			return Match{Ignored: false, Pattern: p.Raw, Severity: p.Severity}
		}
	}
	for _, p := range m.hardcoded {
		if globMatch(p.Raw, rel) {
			return Match{Ignored: true, Pattern: p.Raw, Severity: p.Severity}
		}
	}
	for _, p := range m.rules {
		if globMatch(p.Raw, rel) {
			return Match{Ignored: true, Pattern: p.Raw, Severity: p.Severity}
		}
	}
	return Match{Ignored: false}
}

// ShouldIgnore is a convenience wrapper for callers that only care about
// the boolean outcome.
func (m *Matcher) ShouldIgnore(path string) bool {
	return m.Check(path).Ignored
}

func (m *Matcher) relativize(path string) string {
	if m.root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func globMatch(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	if err != nil {
		return false
	}
	if ok {
		return true
	}
	// A bare basename pattern like "*.pyc" or ".DS_Store" should match at
	// any depth even without a leading "**/", matching gitignore's
	// convention that an unanchored pattern matches anywhere.
	if !strings.Contains(pattern, "/") {
		ok, _ = doublestar.Match(pattern, filepath.Base(path))
		return ok
	}
	return false
}
