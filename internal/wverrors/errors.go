// Package wverrors implements the module's error taxonomy: Config, Parse,
// Graph, Analysis, IO, Cache, Build, System, Language, Distribution,
// Internal. The shape follows internal/errors (typed structs carrying
// kind/operation/underlying plus Unwrap for errors.Is/As), generalized
// with a context-frame stack and structured suggestions.
package wverrors

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the taxonomy's top-level classification, used for deduplication
// and exit-code mapping.
type Kind string

const (
	KindConfig       Kind = "config"
	KindParse        Kind = "parse"
	KindGraph        Kind = "graph"
	KindAnalysis     Kind = "analysis"
	KindIO           Kind = "io"
	KindCache        Kind = "cache"
	KindBuild        Kind = "build"
	KindSystem       Kind = "system"
	KindLanguage     Kind = "language"
	KindDistribution Kind = "distribution"
	KindInternal     Kind = "internal"
)

// Suggestion is a structured, actionable hint attached to an Error.
type Suggestion struct {
	Command string // a command the user could run
	Docs    string // a docs pointer
	Check   string // a file/condition to check
	Config  string // a config change to make
}

// Error is the single carrier type for every taxonomy entry. Concrete
// constructors (New, Wrap, NewCycle) fill in the kind and
// the fields that matter for it; the rest stay zero.
type Error struct {
	Kind        Kind
	Message     string
	Path        string
	Line        int
	Column      int
	Contexts    []string // operation frames, pushed as the error propagates
	Suggestions []Suggestion
	Underlying  error
	Timestamp   time.Time

	// Graph-specific
	CyclePath []string
}

// New creates a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Timestamp: time.Now()}
}

// Wrap creates an Error of the given kind around an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Underlying: err, Timestamp: time.Now()}
}

// NewCycle builds the Graph/CycleDetected error with its cycle path.
func NewCycle(path []string) *Error {
	return &Error{
		Kind:      KindGraph,
		Message:   "cycle detected",
		CyclePath: path,
		Timestamp: time.Now(),
	}
}

// WithPath attaches a source path/line/column to the error (builder style,
// matching the With* chain on IndexingError).
func (e *Error) WithPath(path string, line, col int) *Error {
	e.Path = path
	e.Line = line
	e.Column = col
	return e
}

// WithContext pushes an operation frame onto the error's context stack.
func (e *Error) WithContext(frame string) *Error {
	e.Contexts = append(e.Contexts, frame)
	return e
}

// WithSuggestion appends a structured suggestion.
func (e *Error) WithSuggestion(s Suggestion) *Error {
	e.Suggestions = append(e.Suggestions, s)
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s", e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
			if e.Column > 0 {
				fmt.Fprintf(&b, ":%d", e.Column)
			}
		}
		b.WriteString(")")
	}
	if e.Kind == KindGraph && len(e.CyclePath) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.CyclePath, " → "))
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Underlying }

// Key returns the (kind, message, path) tuple batch reporters dedup on.
func (e *Error) Key() [3]string {
	return [3]string{string(e.Kind), e.Message, e.Path}
}

// ContextChain renders the pushed context frames, most recent first, for
// verbose-mode output.
func (e *Error) ContextChain() string {
	if len(e.Contexts) == 0 {
		return ""
	}
	frames := make([]string, len(e.Contexts))
	for i, f := range e.Contexts {
		frames[len(e.Contexts)-1-i] = f
	}
	return strings.Join(frames, " ← ")
}

// MultiError aggregates batched errors (parse errors grouped by file, IO
// errors collected during a scan).
type MultiError struct {
	Errors []error
}

// NewMultiError filters nils and wraps the rest.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	default:
		parts := make([]string, len(m.Errors))
		for i, e := range m.Errors {
			parts[i] = e.Error()
		}
		return fmt.Sprintf("%d errors: %s", len(m.Errors), strings.Join(parts, "; "))
	}
}

func (m *MultiError) Unwrap() []error { return m.Errors }

// GroupByFile groups a MultiError's ParseErrors-shaped entries (those with a
// non-empty Path) by file, so a batch of parse failures reports one entry
// per affected file rather than one per error.
func (m *MultiError) GroupByFile() map[string][]error {
	groups := make(map[string][]error)
	for _, err := range m.Errors {
		var we *Error
		if As(err, &we) && we.Path != "" {
			groups[we.Path] = append(groups[we.Path], err)
			continue
		}
		groups[""] = append(groups[""], err)
	}
	return groups
}

// As is a tiny local errors.As so this package has no import cycle back to
// the stdlib name "errors" colliding with call sites that alias it.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ExitCode maps a taxonomy Kind (or nil for success) to the process's exit
// code contract: 0 success, 1 generic failure, 2 config/parse error, 3 a
// dependency cycle, 4 a cache failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var we *Error
	if As(err, &we) {
		switch we.Kind {
		case KindGraph:
			if len(we.CyclePath) > 0 {
				return 3
			}
		case KindCache:
			return 4
		case KindConfig, KindParse:
			return 2
		}
	}
	return 1
}
