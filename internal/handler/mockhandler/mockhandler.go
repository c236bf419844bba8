// Package mockhandler is a concrete, deterministic handlerapi.Handler used
// as a test double by internal/executor's tests and any caller that needs
// a working handler without a real toolchain installed. It "compiles" a
// target by concatenating the contents of its plan's Inputs, which is
// enough to exercise the full Plan/NeedsRebuild/Build/Clean contract and
// the Executor's cache-write and discovery-propagation paths.
package mockhandler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wavebuild/wavebuild/internal/types"
	"github.com/wavebuild/wavebuild/pkg/handlerapi"
)

// Handler is a mockhandler.Handler. FailTargets marks target ids whose
// Build should return StatusFailed instead of succeeding, for exercising
// fault-policy and Skipped propagation in tests. Discoveries lets a test
// script a produced_discoveries payload for a given target id.
type Handler struct {
	mu          sync.Mutex
	FailTargets map[string]bool
	Discoveries map[string]handlerapi.BuildOutcome
	BuildCount  map[string]int
}

func New() *Handler {
	return &Handler{
		FailTargets: make(map[string]bool),
		Discoveries: make(map[string]handlerapi.BuildOutcome),
		BuildCount:  make(map[string]int),
	}
}

func (h *Handler) Plan(target types.Target, workspaceRoot string) (handlerapi.Plan, error) {
	inputs := make([]string, 0, len(target.Sources))
	for _, s := range target.Sources {
		if filepath.IsAbs(s) {
			inputs = append(inputs, s)
		} else {
			inputs = append(inputs, filepath.Join(workspaceRoot, s))
		}
	}
	out := target.OutputPath
	if out == "" {
		out = target.ID.Name() + ".out"
	}
	return handlerapi.Plan{
		Inputs:          inputs,
		ExpectedOutputs: []string{out},
		Env:             target.Env,
	}, nil
}

// NeedsRebuild always defers to the generic fingerprint-based decision —
// the mock has no action-specific veto.
func (h *Handler) NeedsRebuild(target types.Target, lastFingerprint map[string]types.ContentFingerprint, actionCache handlerapi.ActionCacheProbe) (bool, error) {
	return true, nil
}

func (h *Handler) Build(ctx context.Context, target types.Target, plan handlerapi.Plan, cancel handlerapi.CancelToken) (handlerapi.BuildOutcome, error) {
	h.mu.Lock()
	h.BuildCount[target.ID.String()]++
	fail := h.FailTargets[target.ID.String()]
	scripted, hasScripted := h.Discoveries[target.ID.String()]
	h.mu.Unlock()

	if cancel != nil && cancel.Cancelled() {
		return handlerapi.BuildOutcome{Status: handlerapi.StatusCancelled}, nil
	}
	if fail {
		return handlerapi.BuildOutcome{Status: handlerapi.StatusFailed, Logs: fmt.Sprintf("mock build of %s failed", target.ID)}, nil
	}

	var buf bytes.Buffer
	for _, in := range plan.Inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return handlerapi.BuildOutcome{Status: handlerapi.StatusFailed, Logs: err.Error()}, nil
		}
		buf.Write(data)
	}

	outcome := handlerapi.BuildOutcome{
		Status:  handlerapi.StatusSuccess,
		Outputs: plan.ExpectedOutputs,
		Logs:    fmt.Sprintf("built %s from %d inputs (%d bytes)", target.ID, len(plan.Inputs), buf.Len()),
	}
	if hasScripted {
		outcome.Discoveries = scripted.Discoveries
		outcome.NewEdges = scripted.NewEdges
	}
	return outcome, nil
}

func (h *Handler) Clean(target types.Target) error {
	return nil
}

// configSchema declares the only handler_config shape this handler
// understands: an optional compiler name and an optional numeric
// timeout. Anything else in the map is left alone — the schema only
// constrains the keys it names.
var configSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"compiler":    {Type: "string"},
		"timeout_sec": {Type: "number"},
	},
}

// HandlerConfigSchema implements handlerapi.ConfigSchema so the Executor
// validates a target's handler_config before Plan ever sees it.
func (h *Handler) HandlerConfigSchema() *jsonschema.Schema {
	return configSchema
}
