package main

import (
	"flag"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/wavebuild/wavebuild/internal/cache"
	"github.com/wavebuild/wavebuild/internal/config"
	"github.com/wavebuild/wavebuild/internal/executor"
	"github.com/wavebuild/wavebuild/internal/graph"
	"github.com/wavebuild/wavebuild/internal/types"
)

func contextWithWorkers(t *testing.T, workers int) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	workersFlag := &cli.IntFlag{Name: "workers"}
	require.NoError(t, workersFlag.Apply(set))
	if workers != 0 {
		require.NoError(t, set.Set("workers", itoa(workers)))
	}
	return cli.NewContext(nil, set, nil)
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}

func testTarget(t *testing.T, name string, kind types.Kind, deps ...string) types.Target {
	t.Helper()
	id, err := types.Intern(name)
	require.NoError(t, err)
	var declared []types.TargetID
	for _, d := range deps {
		dep, err := types.Intern(d)
		require.NoError(t, err)
		declared = append(declared, dep)
	}
	return types.Target{ID: id, Kind: kind, Language: types.LangGo, DeclaredDeps: declared}
}

func buildLinearGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	a := testTarget(t, "//a:a", types.KindLibrary)
	b := testTarget(t, "//b:b", types.KindLibrary, "//a:a")
	c := testTarget(t, "//c:c", types.KindExecutable, "//b:b")
	d := testTarget(t, "//d:d", types.KindLibrary)
	for _, tg := range []types.Target{a, b, c, d} {
		require.NoError(t, g.AddTarget(tg))
	}
	for _, tg := range []types.Target{a, b, c, d} {
		for _, dep := range tg.DeclaredDeps {
			require.NoError(t, g.AddEdge(tg.ID, dep))
		}
	}
	return g
}

func TestScopeGraphEmptyTargetKeepsEverythingPending(t *testing.T) {
	g := buildLinearGraph(t)
	require.NoError(t, scopeGraph(g, ""))
	for _, id := range g.AllIDs() {
		state, ok := g.State(id)
		require.True(t, ok)
		assert.Equal(t, types.Pending, state)
	}
}

func TestScopeGraphSkipsOutsideClosure(t *testing.T) {
	g := buildLinearGraph(t)
	require.NoError(t, scopeGraph(g, "//b:b"))

	inClosure := []string{"//a:a", "//b:b"}
	for _, name := range inClosure {
		id, err := types.Intern(name)
		require.NoError(t, err)
		state, _ := g.State(id)
		assert.Equal(t, types.Pending, state, name)
	}

	outside := []string{"//c:c", "//d:d"}
	for _, name := range outside {
		id, err := types.Intern(name)
		require.NoError(t, err)
		state, _ := g.State(id)
		assert.Equal(t, types.Skipped, state, name)
	}
}

func TestScopeGraphUnknownTargetErrors(t *testing.T) {
	g := buildLinearGraph(t)
	err := scopeGraph(g, "//nope:nope")
	assert.Error(t, err)
}

func TestScopeToTestTargetsSkipsUnrelated(t *testing.T) {
	g := graph.New()
	lib := testTarget(t, "//lib:lib", types.KindLibrary)
	tested := testTarget(t, "//lib:lib_test", types.KindTest, "//lib:lib")
	unrelated := testTarget(t, "//other:other", types.KindLibrary)
	for _, tg := range []types.Target{lib, tested, unrelated} {
		require.NoError(t, g.AddTarget(tg))
	}
	for _, tg := range []types.Target{lib, tested, unrelated} {
		for _, dep := range tg.DeclaredDeps {
			require.NoError(t, g.AddEdge(tg.ID, dep))
		}
	}

	require.NoError(t, scopeToTestTargets(g))

	libState, _ := g.State(lib.ID)
	assert.Equal(t, types.Pending, libState)
	testState, _ := g.State(tested.ID)
	assert.Equal(t, types.Pending, testState)
	otherState, _ := g.State(unrelated.ID)
	assert.Equal(t, types.Skipped, otherState)
}

func TestScopeToTestTargetsErrorsWithoutAnyTests(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddTarget(testTarget(t, "//a:a", types.KindLibrary)))
	assert.Error(t, scopeToTestTargets(g))
}

func TestBuildExitError(t *testing.T) {
	assert.NoError(t, buildExitError(executor.Result{}))

	id, err := types.Intern("//a:a")
	require.NoError(t, err)
	failErr := buildExitError(executor.Result{Failed: []types.TargetID{id}})
	assert.Error(t, failErr)
}

func TestCheckpointPath(t *testing.T) {
	got := checkpointPath("/ws")
	assert.Equal(t, "/ws/.builder-cache/checkpoints/latest.bin", got)
}

func TestResolveCacheLimitsOverridesDefaults(t *testing.T) {
	ws := &config.Workspace{
		Cache: config.CacheConfig{MaxSize: 42, MaxEntries: 7, MaxAgeDays: 3},
	}
	limits := resolveCacheLimits(ws)
	assert.Equal(t, int64(42), limits.MaxSize)
	assert.Equal(t, 7, limits.MaxEntries)
	assert.Equal(t, 3*24*time.Hour, limits.MaxAge)
}

func TestResolveCacheLimitsFallsBackToDefaults(t *testing.T) {
	ws := &config.Workspace{}
	limits := resolveCacheLimits(ws)
	assert.Equal(t, cache.DefaultLimits(), limits)
}

func TestHasDep(t *testing.T) {
	g := buildLinearGraph(t)
	a, err := types.Intern("//a:a")
	require.NoError(t, err)
	b, err := types.Intern("//b:b")
	require.NoError(t, err)
	d, err := types.Intern("//d:d")
	require.NoError(t, err)
	assert.True(t, hasDep(g, b, a))
	assert.False(t, hasDep(g, b, d))
}

func TestResolveWorkersFlagTakesPrecedence(t *testing.T) {
	c := contextWithWorkers(t, 8)
	ws := &config.Workspace{Parallelism: 2}
	assert.Equal(t, 8, resolveWorkers(c, ws))
}

func TestResolveWorkersFallsBackToWorkspace(t *testing.T) {
	c := contextWithWorkers(t, 0)
	ws := &config.Workspace{Parallelism: 3}
	assert.Equal(t, 3, resolveWorkers(c, ws))
}

func TestResolveWorkersFallsBackToExecutorDefault(t *testing.T) {
	c := contextWithWorkers(t, 0)
	ws := &config.Workspace{}
	assert.Equal(t, 0, resolveWorkers(c, ws))
}

func TestToIgnorePatterns(t *testing.T) {
	pats := toIgnorePatterns([]string{"*.log", "!keep.log"})
	require.Len(t, pats, 2)
	assert.Equal(t, "*.log", pats[0].Raw)
	assert.False(t, pats[0].Negate)
	assert.Equal(t, "keep.log", pats[1].Raw)
	assert.True(t, pats[1].Negate)
}
