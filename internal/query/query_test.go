package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavebuild/wavebuild/internal/graph"
	"github.com/wavebuild/wavebuild/internal/types"
)

func tid(t *testing.T, s string) types.TargetID {
	t.Helper()
	id, err := types.Intern(s)
	require.NoError(t, err)
	return id
}

func addTarget(t *testing.T, g *graph.Graph, name string, kind types.Kind, deps ...string) types.TargetID {
	t.Helper()
	id := tid(t, name)
	var declared []types.TargetID
	for _, d := range deps {
		declared = append(declared, tid(t, d))
	}
	require.NoError(t, g.AddTarget(types.Target{ID: id, Kind: kind, DeclaredDeps: declared}))
	for _, d := range declared {
		require.NoError(t, g.AddEdge(id, d))
	}
	return id
}

func buildSampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	addTarget(t, g, "//app:util", types.KindLibrary)
	addTarget(t, g, "//app:main", types.KindExecutable, "//app:util")
	addTarget(t, g, "//app:main_test", types.KindTest, "//app:util")
	return g
}

func run(t *testing.T, g *graph.Graph, src string) Value {
	t.Helper()
	prog, err := Parse(src)
	require.NoError(t, err)
	v, err := Eval(prog, g)
	require.NoError(t, err)
	return v
}

func TestParseAndEvalTargetLiteral(t *testing.T) {
	g := buildSampleGraph(t)
	v := run(t, g, `//app:util`)
	ids := v.IDs()
	require.Len(t, ids, 1)
	assert.Equal(t, "//app:util", ids[0].String())
}

func TestDepsAndRdeps(t *testing.T) {
	g := buildSampleGraph(t)

	deps := run(t, g, `deps(//app:main)`)
	assert.ElementsMatch(t, []string{"//app:util"}, idStrings(deps.IDs()))

	rdeps := run(t, g, `rdeps(//app:util)`)
	assert.ElementsMatch(t, []string{"//app:main", "//app:main_test"}, idStrings(rdeps.IDs()))
}

func TestDepsWithDepthBound(t *testing.T) {
	g := graph.New()
	addTarget(t, g, "//a:a", types.KindLibrary)
	addTarget(t, g, "//b:b", types.KindLibrary, "//a:a")
	addTarget(t, g, "//c:c", types.KindLibrary, "//b:b")

	shallow := run(t, g, `deps(//c:c,1)`)
	assert.ElementsMatch(t, []string{"//b:b"}, idStrings(shallow.IDs()))

	deep := run(t, g, `deps(//c:c,2)`)
	assert.ElementsMatch(t, []string{"//a:a", "//b:b"}, idStrings(deep.IDs()))
}

func TestSetOperators(t *testing.T) {
	g := buildSampleGraph(t)

	union := run(t, g, `deps(//app:main) + deps(//app:main_test)`)
	assert.ElementsMatch(t, []string{"//app:util"}, idStrings(union.IDs()))

	diff := run(t, g, `rdeps(//app:util) - kind("test", rdeps(//app:util))`)
	assert.ElementsMatch(t, []string{"//app:main"}, idStrings(diff.IDs()))

	intersect := run(t, g, `rdeps(//app:util) & kind("test", rdeps(//app:util))`)
	assert.ElementsMatch(t, []string{"//app:main_test"}, idStrings(intersect.IDs()))
}

func TestKindFilter(t *testing.T) {
	g := buildSampleGraph(t)
	v := run(t, g, `kind("executable", rdeps(//app:util))`)
	assert.ElementsMatch(t, []string{"//app:main"}, idStrings(v.IDs()))
}

func TestAttrAndFilter(t *testing.T) {
	g := buildSampleGraph(t)

	byAttr := run(t, g, `attr("kind", "test", rdeps(//app:util))`)
	assert.ElementsMatch(t, []string{"//app:main_test"}, idStrings(byAttr.IDs()))

	byRegex := run(t, g, `filter("kind", "^exec", rdeps(//app:util))`)
	assert.ElementsMatch(t, []string{"//app:main"}, idStrings(byRegex.IDs()))
}

func TestSiblingsAndBuildFiles(t *testing.T) {
	g := buildSampleGraph(t)

	siblings := run(t, g, `siblings(//app:main)`)
	assert.ElementsMatch(t, []string{"//app:util", "//app:main_test"}, idStrings(siblings.IDs()))

	bf := run(t, g, `buildfiles(//app:main)`)
	require.Equal(t, valStrings, bf.kind)
}

func TestShortestSomepathAllpaths(t *testing.T) {
	g := graph.New()
	a := addTarget(t, g, "//a:a", types.KindLibrary)
	addTarget(t, g, "//b:b", types.KindLibrary, "//a:a")
	c := addTarget(t, g, "//c:c", types.KindLibrary, "//b:b")

	shortest := run(t, g, `shortest(//c:c, //a:a)`)
	require.Equal(t, valPath, shortest.kind)
	assert.Equal(t, []types.TargetID{c, tid(t, "//b:b"), a}, shortest.path)

	all := run(t, g, `allpaths(//c:c, //a:a)`)
	require.Equal(t, valPaths, all.kind)
	assert.Len(t, all.paths, 1)

	some := run(t, g, `somepath(//c:c, //a:a)`)
	require.Equal(t, valPath, some.kind)
	assert.NotEmpty(t, some.path)
}

func TestLetBinding(t *testing.T) {
	g := buildSampleGraph(t)
	v := run(t, g, `let consumers = rdeps(//app:util) ; kind("executable", consumers)`)
	assert.ElementsMatch(t, []string{"//app:main"}, idStrings(v.IDs()))
}

func TestAllIdentifier(t *testing.T) {
	g := buildSampleGraph(t)
	v := run(t, g, `all`)
	assert.ElementsMatch(t,
		[]string{"//app:util", "//app:main", "//app:main_test"},
		idStrings(v.IDs()))
}

func TestMinusRequiresDelimiterToBeOperator(t *testing.T) {
	g := graph.New()
	addTarget(t, g, "//pkg:my-target", types.KindLibrary)
	v := run(t, g, `//pkg:my-target`)
	ids := v.IDs()
	require.Len(t, ids, 1)
	assert.Equal(t, "//pkg:my-target", ids[0].String())
}

func TestSinglePathFunctionsRejectNonSingletonArgument(t *testing.T) {
	g := buildSampleGraph(t)
	prog, err := Parse(`shortest(all, //app:util)`)
	require.NoError(t, err)
	_, err = Eval(prog, g)
	require.Error(t, err)
}

func TestRenderFormats(t *testing.T) {
	g := buildSampleGraph(t)
	v := run(t, g, `rdeps(//app:util)`)

	pretty, err := Render(v, FormatPretty, g)
	require.NoError(t, err)
	assert.NotEmpty(t, pretty)

	list, err := Render(v, FormatList, g)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	j, err := Render(v, FormatJSON, g)
	require.NoError(t, err)
	assert.Contains(t, j, `"kind": "set"`)

	dot, err := Render(v, FormatDot, g)
	require.NoError(t, err)
	assert.Contains(t, dot, "digraph wavebuild {")
	assert.Contains(t, dot, "//app:main")
}

func TestRenderDotRestrictsEdgesToResultSet(t *testing.T) {
	g := buildSampleGraph(t)
	v := run(t, g, `//app:main + //app:main_test`)
	dot, err := Render(v, FormatDot, g)
	require.NoError(t, err)
	assert.NotContains(t, dot, "//app:util")
}

func idStrings(ids []types.TargetID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
