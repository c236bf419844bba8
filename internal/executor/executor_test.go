package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wavebuild/wavebuild/internal/artifact"
	"github.com/wavebuild/wavebuild/internal/cache"
	"github.com/wavebuild/wavebuild/internal/events"
	"github.com/wavebuild/wavebuild/internal/graph"
	"github.com/wavebuild/wavebuild/internal/handler/mockhandler"
	"github.com/wavebuild/wavebuild/internal/types"
	"github.com/wavebuild/wavebuild/internal/wverrors"
	"github.com/wavebuild/wavebuild/pkg/handlerapi"
)

// TestMain guards against worker goroutines or event subscribers leaking
// past a Run call that returned early (cancellation, handler failure).
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func tid(t *testing.T, raw string) types.TargetID {
	t.Helper()
	id, err := types.Intern(raw)
	require.NoError(t, err)
	return id
}

func addTarget(t *testing.T, g *graph.Graph, workspace, name string, sourceContent string, deps ...types.TargetID) types.TargetID {
	t.Helper()
	return addTargetWithConfig(t, g, workspace, name, sourceContent, nil, deps...)
}

func addTargetWithConfig(t *testing.T, g *graph.Graph, workspace, name string, sourceContent string, handlerConfig map[string]any, deps ...types.TargetID) types.TargetID {
	t.Helper()
	id := tid(t, name)
	src := filepath.Join(workspace, name[2:]+".src")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte(sourceContent), 0o644))

	target := types.Target{
		ID:            id,
		Kind:          types.KindLibrary,
		Language:      types.LangGo,
		Sources:       []string{src},
		DeclaredDeps:  deps,
		OutputPath:    filepath.Join(workspace, "out", name[2:]+".out"),
		HandlerConfig: handlerConfig,
	}
	require.NoError(t, g.AddTarget(target))
	for _, d := range deps {
		require.NoError(t, g.AddEdge(id, d))
	}
	return id
}

func newTestExecutor(t *testing.T) (*Executor, *graph.Graph, *mockhandler.Handler) {
	t.Helper()
	dir := t.TempDir()
	g := graph.New()
	store := cache.New(filepath.Join(dir, "cache"), cache.DefaultLimits(), nil)
	artifacts := artifact.New(filepath.Join(dir, "artifacts"), artifact.DefaultLimits())
	pub := events.NewPublisher()
	h := mockhandler.New()

	e := New(g, store, artifacts, pub)
	e.RegisterHandler(types.LangGo, types.KindLibrary, h)
	return e, g, h
}

func TestRun_LinearChainSucceeds(t *testing.T) {
	e, g, _ := newTestExecutor(t)
	workspace := t.TempDir()

	a := addTarget(t, g, workspace, "//:a", "package a")
	b := addTarget(t, g, workspace, "//:b", "package b", a)

	result, err := e.Run(context.Background(), Options{Workers: 2, WorkspaceRoot: workspace})
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.TargetID{a, b}, result.Completed)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.Skipped)

	stateA, _ := g.State(a)
	stateB, _ := g.State(b)
	assert.Equal(t, types.Success, stateA)
	assert.Equal(t, types.Success, stateB)
}

func TestRun_IndependentTargetsBothSucceed(t *testing.T) {
	e, g, _ := newTestExecutor(t)
	workspace := t.TempDir()

	a := addTarget(t, g, workspace, "//:a", "package a")
	b := addTarget(t, g, workspace, "//:b", "package b")

	result, err := e.Run(context.Background(), Options{Workers: 4, WorkspaceRoot: workspace})
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.TargetID{a, b}, result.Completed)
}

func TestRun_FailurePropagatesSkipToTransitiveDependents(t *testing.T) {
	e, g, h := newTestExecutor(t)
	workspace := t.TempDir()

	a := addTarget(t, g, workspace, "//:a", "package a")
	b := addTarget(t, g, workspace, "//:b", "package b", a)
	c := addTarget(t, g, workspace, "//:c", "package c", b)

	h.FailTargets[a.String()] = true

	result, err := e.Run(context.Background(), Options{Workers: 2, FaultPolicy: KeepGoing, WorkspaceRoot: workspace})
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.TargetID{a}, result.Failed)
	assert.ElementsMatch(t, []types.TargetID{b, c}, result.Skipped)

	stateC, _ := g.State(c)
	assert.Equal(t, types.Skipped, stateC)
}

func TestRun_KeepGoingBuildsIndependentBranchDespiteFailure(t *testing.T) {
	e, g, h := newTestExecutor(t)
	workspace := t.TempDir()

	a := addTarget(t, g, workspace, "//:a", "package a")
	indep := addTarget(t, g, workspace, "//:indep", "package indep")

	h.FailTargets[a.String()] = true

	result, err := e.Run(context.Background(), Options{Workers: 2, FaultPolicy: KeepGoing, WorkspaceRoot: workspace})
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.TargetID{a}, result.Failed)
	assert.ElementsMatch(t, []types.TargetID{indep}, result.Completed)
}

func TestRun_FailFastStopsAdmittingNewWork(t *testing.T) {
	e, g, h := newTestExecutor(t)
	workspace := t.TempDir()

	// "a" sorts before "indep" lexicographically, and both are depth 0, so
	// with a single worker "a" is admitted first.
	a := addTarget(t, g, workspace, "//:a", "package a")
	indep := addTarget(t, g, workspace, "//:indep", "package indep")
	h.FailTargets[a.String()] = true

	result, err := e.Run(context.Background(), Options{Workers: 1, FaultPolicy: FailFast, WorkspaceRoot: workspace})
	require.NoError(t, err)
	assert.Contains(t, result.Failed, a)

	stateIndep, _ := g.State(indep)
	assert.Equal(t, types.Ready, stateIndep, "fail-fast must leave already-ready work undispatched, not build it")
}

func TestRun_ProducedDiscoveriesExtendGraph(t *testing.T) {
	e, g, h := newTestExecutor(t)
	workspace := t.TempDir()

	a := addTarget(t, g, workspace, "//:a", "package a")
	generatedID := tid(t, "//:generated")
	generated := types.Target{
		ID:       generatedID,
		Kind:     types.KindLibrary,
		Language: types.LangGo,
	}
	// Configure the mock handler to emit one discovered target when
	// building //:a.
	h.Discoveries[a.String()] = handlerapi.BuildOutcome{
		Status:      handlerapi.StatusSuccess,
		Discoveries: []handlerapi.DiscoveredTarget{{Target: generated}},
	}

	result, err := e.Run(context.Background(), Options{Workers: 2, WorkspaceRoot: workspace})
	require.NoError(t, err)
	assert.Contains(t, result.Completed, a)

	_, ok := g.Target(generatedID)
	assert.True(t, ok, "discovered target should have been added to the graph")
}

func TestRun_AcceptedHandlerConfigBuilds(t *testing.T) {
	e, g, _ := newTestExecutor(t)
	workspace := t.TempDir()

	a := addTargetWithConfig(t, g, workspace, "//:a", "package a", map[string]any{"compiler": "go"})

	result, err := e.Run(context.Background(), Options{Workers: 1, WorkspaceRoot: workspace})
	require.NoError(t, err)
	assert.Contains(t, result.Completed, a)
	assert.Empty(t, result.Failed)
}

func TestRun_RejectedHandlerConfigFailsWithKindConfig(t *testing.T) {
	e, g, _ := newTestExecutor(t)
	workspace := t.TempDir()

	a := addTargetWithConfig(t, g, workspace, "//:a", "package a", map[string]any{"compiler": 5})

	evCh, unsubscribe := e.events.Subscribe()
	defer unsubscribe()

	result, err := e.Run(context.Background(), Options{Workers: 1, FaultPolicy: KeepGoing, WorkspaceRoot: workspace})
	require.NoError(t, err)
	assert.Contains(t, result.Failed, a)

	reason := failureReasonFor(t, evCh, a)
	assert.True(t, strings.HasPrefix(reason, string(wverrors.KindConfig)+":"), "expected a %s error, got %q", wverrors.KindConfig, reason)
}

// failureReasonFor drains ch until it sees the target-failed event for id,
// returning its Reason. The Executor only surfaces a build's error through
// this event, not through Result, so this is the only way a caller can
// recover what went wrong with a specific target.
func failureReasonFor(t *testing.T, ch <-chan events.Event, id types.TargetID) string {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if ev.Kind == events.KindTargetFailed && ev.Target == id {
				return ev.Reason
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for target-failed event for %s", id)
		}
	}
}

func TestResume_RefusesMismatchedGraph(t *testing.T) {
	dir := t.TempDir()
	g := graph.New()
	workspace := t.TempDir()
	addTarget(t, g, workspace, "//:a", "package a")

	cpPath := filepath.Join(dir, "checkpoint.bin")
	require.NoError(t, WriteCheckpoint(cpPath, Checkpoint{GraphFingerprint: 12345}))

	err := Resume(g, cpPath)
	assert.Error(t, err)
}

func TestResume_MarksCompletedTargetsTerminal(t *testing.T) {
	dir := t.TempDir()
	g := graph.New()
	workspace := t.TempDir()
	a := addTarget(t, g, workspace, "//:a", "package a")

	cpPath := filepath.Join(dir, "checkpoint.bin")
	cp := Checkpoint{CompletedIDs: []string{a.String()}, GraphFingerprint: graphFingerprint(g)}
	require.NoError(t, WriteCheckpoint(cpPath, cp))

	require.NoError(t, Resume(g, cpPath))
	state, _ := g.State(a)
	assert.Equal(t, types.Success, state)
}

func TestRun_RespectsContextCancellation(t *testing.T) {
	e, g, _ := newTestExecutor(t)
	workspace := t.TempDir()
	addTarget(t, g, workspace, "//:a", "package a")

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond) // ensure deadline has passed before Run starts

	result, err := e.Run(ctx, Options{Workers: 1, WorkspaceRoot: workspace})
	assert.Error(t, err)
	assert.True(t, result.Cancelled)
}
