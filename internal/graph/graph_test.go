package graph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavebuild/wavebuild/internal/types"
)

func tid(t *testing.T, s string) types.TargetID {
	t.Helper()
	id, err := types.Intern(s)
	require.NoError(t, err)
	return id
}

func addTarget(t *testing.T, g *Graph, name string, deps ...string) types.TargetID {
	t.Helper()
	id := tid(t, name)
	var declared []types.TargetID
	for _, d := range deps {
		declared = append(declared, tid(t, d))
	}
	require.NoError(t, g.AddTarget(types.Target{ID: id, Kind: types.KindLibrary, DeclaredDeps: declared}))
	for _, d := range declared {
		require.NoError(t, g.AddEdge(id, d))
	}
	return id
}

func TestDuplicateTarget(t *testing.T) {
	g := New()
	id := tid(t, "//a:a")
	require.NoError(t, g.AddTarget(types.Target{ID: id}))
	err := g.AddTarget(types.Target{ID: id})
	require.Error(t, err)
}

func TestUnknownTargetOnEdge(t *testing.T) {
	g := New()
	id := tid(t, "//a:a")
	require.NoError(t, g.AddTarget(types.Target{ID: id}))
	err := g.AddEdge(id, tid(t, "//b:missing"))
	require.Error(t, err)
}

func TestCycleRejected(t *testing.T) {
	g := New()
	x := addTarget(t, g, "//x:x")
	y := addTarget(t, g, "//y:y")
	z := addTarget(t, g, "//z:z")

	require.NoError(t, g.AddEdge(x, y))
	require.NoError(t, g.AddEdge(y, z))

	err := g.AddEdge(z, x)
	require.Error(t, err)

	// Graph must remain unchanged: z should have no forward edges.
	assert.Empty(t, g.Deps(z))
	// And still queryable.
	assert.NotNil(t, g.TopologicalOrder())
}

func TestWavesPartitionRespectsEdges(t *testing.T) {
	g := New()
	util := addTarget(t, g, "//app:util")
	main := addTarget(t, g, "//app:main", "//app:util")

	waves := g.Waves()
	require.Len(t, waves, 2)
	assert.Equal(t, []types.TargetID{util}, waves[0])
	assert.Equal(t, []types.TargetID{main}, waves[1])
}

func TestWaves_RandomDAGProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		g := New()
		n := 5 + rng.Intn(60)
		ids := make([]types.TargetID, n)
		for i := 0; i < n; i++ {
			id := tid(t, randTargetName(i))
			ids[i] = id
			require.NoError(t, g.AddTarget(types.Target{ID: id}))
		}
		// Only allow edges from higher index to lower index so no cycle is
		// possible by construction, then verify the wave invariant.
		for i := 0; i < n; i++ {
			edgeCount := rng.Intn(3)
			for e := 0; e < edgeCount && i > 0; e++ {
				j := rng.Intn(i)
				_ = g.AddEdge(ids[i], ids[j]) // may already exist; ignore error
			}
		}

		waves := g.Waves()
		waveIndex := make(map[types.TargetID]int)
		for wi, wave := range waves {
			for _, id := range wave {
				waveIndex[id] = wi
			}
		}
		for i := 0; i < n; i++ {
			for _, dep := range g.Deps(ids[i]) {
				assert.Less(t, waveIndex[dep], waveIndex[ids[i]])
			}
		}
	}
}

func randTargetName(i int) string {
	return "//pkg:" + string(rune('a'+(i%26))) + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func TestDynamicExtend(t *testing.T) {
	g := New()
	origin := addTarget(t, g, "//proto:all")

	msg := tid(t, "//proto:msg_pb_cc")
	err := g.DynamicExtend(Discovery{
		Origin:  origin,
		Created: []types.Target{{ID: msg, Kind: types.KindLibrary}},
		CreatedDeps: []Edge{
			{From: msg, To: origin},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.TargetID{origin}, g.Deps(msg))
}

func TestDynamicExtend_RollsBackOnCycle(t *testing.T) {
	g := New()
	origin := addTarget(t, g, "//proto:all")
	before := g.Len()

	bad := tid(t, "//proto:bad")
	err := g.DynamicExtend(Discovery{
		Created: []types.Target{{ID: bad}},
		CreatedDeps: []Edge{
			{From: origin, To: bad},
			{From: bad, To: origin},
		},
	})
	require.Error(t, err)
	assert.Equal(t, before, g.Len())
}

func TestShortestAndAllpaths(t *testing.T) {
	g := New()
	a := addTarget(t, g, "//a:a")
	b := addTarget(t, g, "//b:b", "//a:a")
	c := addTarget(t, g, "//c:c", "//b:b")

	path := g.Shortest(c, a)
	require.Equal(t, []types.TargetID{c, b, a}, path)

	all := g.Allpaths(c, a)
	require.Len(t, all, 1)
	assert.Equal(t, []types.TargetID{c, b, a}, all[0])
}

func TestRdeps(t *testing.T) {
	g := New()
	util := addTarget(t, g, "//app:util")
	addTarget(t, g, "//app:main", "//app:util")

	rdeps := g.Rdeps(util)
	require.Len(t, rdeps, 1)
	assert.Equal(t, "//app:main", rdeps[0].String())
}
