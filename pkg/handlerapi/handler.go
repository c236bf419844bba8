// Package handlerapi defines the contract between the Executor and
// per-(language, kind) build handlers. Everything outside this package
// treats a Handler as a black box; concrete compiler/linker invocation
// plumbing is out of scope and lives behind implementations of this
// interface that this module does not ship, other than the test double
// in internal/handler/mockhandler.
package handlerapi

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wavebuild/wavebuild/internal/types"
)

// Status is a BuildOutcome's terminal state.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusCached
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusCached:
		return "cached"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Plan is the pure, deterministic, side-effect-free description of what
// Build would do.
type Plan struct {
	Inputs          []string
	ExpectedOutputs []string
	ToolBinaries    []string
	Env             map[string]string
}

// DiscoveredTarget and DiscoveredEdge mirror internal/graph's dynamic
// extension shape without this package importing internal/graph — the
// Executor is responsible for translating these into a graph.Discovery.
type DiscoveredTarget struct {
	Target types.Target
}

type DiscoveredEdge struct {
	From types.TargetID
	To   types.TargetID
}

// BuildOutcome is what Build returns.
type BuildOutcome struct {
	Status      Status
	Outputs     []string
	Logs        string
	Discoveries []DiscoveredTarget
	NewEdges    []DiscoveredEdge
}

// CancelToken lets a Handler poll for cooperative cancellation at defined
// checkpoints. A handler that ignores it for too long is killed at the
// process-group level by the caller, not by this package.
type CancelToken interface {
	Cancelled() bool
}

// ActionCacheProbe lets NeedsRebuild consult the action cache without
// this package depending on internal/cache's concrete type.
type ActionCacheProbe func(actionKey string) bool

// Handler is registered under a (language, kind) pair in the Executor's
// dispatch table; one Handler value may be registered under several pairs.
type Handler interface {
	// Plan inputs, expected outputs, required tools and environment for
	// target. Must be pure: no side effects, no I/O beyond reading the
	// target's own declared configuration.
	Plan(target types.Target, workspaceRoot string) (Plan, error)

	// NeedsRebuild is consulted by the Executor as an extra,
	// handler-specific veto over the generic fingerprint-based decision —
	// a different action may depend only on an immaterial part of the
	// input that changed.
	NeedsRebuild(target types.Target, lastFingerprint map[string]types.ContentFingerprint, actionCache ActionCacheProbe) (bool, error)

	// Build executes plan, honoring cancel between discrete sub-actions.
	Build(ctx context.Context, target types.Target, plan Plan, cancel CancelToken) (BuildOutcome, error)

	// Clean removes target's outputs.
	Clean(target types.Target) error
}

// ConfigSchema is implemented by a Handler that wants its targets'
// opaque handler_config map validated against a declared shape before
// Plan ever sees it. A Handler that doesn't implement it gets no
// validation — handler_config stays a pass-through map, same as today.
type ConfigSchema interface {
	HandlerConfigSchema() *jsonschema.Schema
}

// ValidateHandlerConfig resolves schema and validates cfg against it. A
// nil schema always passes, matching a Handler that declares one only for
// the handler_config keys it actually cares about.
func ValidateHandlerConfig(schema *jsonschema.Schema, cfg map[string]any) error {
	if schema == nil {
		return nil
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return err
	}
	return resolved.Validate(cfg)
}
