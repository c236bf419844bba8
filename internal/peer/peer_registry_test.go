package peer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerRegistryRegisterSelfIsNoop(t *testing.T) {
	pr := NewPeerRegistry("self", time.Minute)
	pr.RegisterPeer("self", "ws://self")
	_, ok := pr.Snapshot("self")
	assert.False(t, ok)
}

func TestPeerRegistryUpdateMetricsRevivesDeadPeer(t *testing.T) {
	pr := NewPeerRegistry("self", time.Minute)
	pr.RegisterPeer("w1", "ws://w1")
	pr.MarkDead("w1")

	snap, ok := pr.Snapshot("w1")
	require.True(t, ok)
	assert.False(t, snap.Alive)

	pr.UpdateMetrics("w1", time.Now(), LoadMetrics{QueueDepth: 3, CPU: 0.4, Mem: 0.2})
	snap, ok = pr.Snapshot("w1")
	require.True(t, ok)
	assert.True(t, snap.Alive)
	assert.Equal(t, 3, snap.Metrics.QueueDepth)
}

func TestPeerRegistryPruneStale(t *testing.T) {
	pr := NewPeerRegistry("self", time.Minute)
	pr.RegisterPeer("stale", "ws://stale")
	pr.UpdateMetrics("stale", time.Now().Add(-2*time.Hour), LoadMetrics{})

	pr.PruneStale(time.Now())
	_, ok := pr.Snapshot("stale")
	assert.False(t, ok)
}

func TestPeerRegistryAliveOnlyListsAlivePeers(t *testing.T) {
	pr := NewPeerRegistry("self", time.Minute)
	pr.RegisterPeer("a", "ws://a")
	pr.RegisterPeer("b", "ws://b")
	pr.MarkDead("b")

	alive := pr.Alive()
	require.Len(t, alive, 1)
	assert.Equal(t, "a", alive[0].WorkerID)
}
