package peer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(id string, queue int, alive bool) Snapshot {
	return Snapshot{WorkerID: id, Alive: alive, Metrics: LoadMetrics{QueueDepth: queue}}
}

func TestPickVictimLeastLoaded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	candidates := []Snapshot{snap("a", 5, true), snap("b", 1, true), snap("c", 3, true)}
	v, ok := pickVictim(rng, StrategyLeastLoaded, candidates, false)
	require.True(t, ok)
	assert.Equal(t, "b", v.WorkerID)
}

func TestPickVictimMostLoaded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	candidates := []Snapshot{snap("a", 5, true), snap("b", 1, true), snap("c", 3, true)}
	v, ok := pickVictim(rng, StrategyMostLoaded, candidates, false)
	require.True(t, ok)
	assert.Equal(t, "a", v.WorkerID)
}

func TestPickVictimExcludesZeroQueueDepth(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	candidates := []Snapshot{snap("a", 0, true), snap("b", 0, true)}
	_, ok := pickVictim(rng, StrategyRandom, candidates, false)
	assert.False(t, ok)
}

func TestPickVictimPowerOfTwoPicksHigherQueue(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	// mirror replays the same two draws powerOfTwo makes, so the test knows
	// which candidates were sampled in each trial.
	mirror := rand.New(rand.NewSource(7))
	candidates := []Snapshot{snap("low", 1, true), snap("high", 9, true)}
	// Run many trials; PowerOfTwo must never return a lower-queue victim
	// when the higher one was sampled in either draw.
	for i := 0; i < 50; i++ {
		a, b := mirror.Intn(2), mirror.Intn(2)
		want := "low"
		if a == 1 || b == 1 {
			want = "high"
		}
		v, ok := pickVictim(rng, StrategyPowerOfTwo, candidates, false)
		require.True(t, ok)
		assert.Equal(t, want, v.WorkerID)
	}
}

func TestPickVictimAdaptiveSwitchesToMostLoaded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	candidates := []Snapshot{snap("a", 5, true), snap("b", 1, true)}
	v, ok := pickVictim(rng, StrategyAdaptive, candidates, true)
	require.True(t, ok)
	assert.Equal(t, "a", v.WorkerID)
}

func TestPickVictimTieBreaksOnWorkerID(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	candidates := []Snapshot{snap("zeta", 2, true), snap("alpha", 2, true)}
	v, ok := pickVictim(rng, StrategyLeastLoaded, candidates, false)
	require.True(t, ok)
	assert.Equal(t, "alpha", v.WorkerID)
}
