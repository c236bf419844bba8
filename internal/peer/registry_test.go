package peer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRegistryHeartbeatDiscardsStaleSeq(t *testing.T) {
	r := NewRegistry()
	r.Register("w1", "ws://w1")

	now := time.Now()
	assert.True(t, r.Heartbeat(HeartBeat{Worker: "w1", Seq: 5, State: StateIdle, T: now}))
	assert.False(t, r.Heartbeat(HeartBeat{Worker: "w1", Seq: 5, State: StateExecuting, T: now.Add(time.Second)}))
	assert.False(t, r.Heartbeat(HeartBeat{Worker: "w1", Seq: 3, State: StateExecuting, T: now.Add(time.Second)}))
	assert.True(t, r.Heartbeat(HeartBeat{Worker: "w1", Seq: 6, State: StateExecuting, T: now.Add(time.Second)}))

	info, ok := r.Get("w1")
	require.True(t, ok)
	assert.Equal(t, StateExecuting, info.State)
	assert.Equal(t, uint64(6), info.LastSeq)
}

func TestRegistryHeartbeatUnknownWorker(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Heartbeat(HeartBeat{Worker: "ghost", Seq: 1, T: time.Now()}))
}

func TestRegistrySelectWorkerExcludesUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.SetHeartbeatTimeout(5 * time.Second)
	r.Register("healthy", "ws://h")
	r.Register("stale", "ws://s")

	now := time.Now()
	require.True(t, r.Heartbeat(HeartBeat{Worker: "healthy", Seq: 1, State: StateIdle, Metrics: LoadMetrics{QueueDepth: 2}, T: now}))
	require.True(t, r.Heartbeat(HeartBeat{Worker: "stale", Seq: 1, State: StateIdle, Metrics: LoadMetrics{QueueDepth: 0}, T: now.Add(-time.Minute)}))

	w, ok := r.SelectWorker(now)
	require.True(t, ok)
	assert.Equal(t, "healthy", w.WorkerID)
}

func TestRegistrySelectWorkerMinimizesLoadTieBreakOnID(t *testing.T) {
	r := NewRegistry()
	r.Register("b", "ws://b")
	r.Register("a", "ws://a")

	now := time.Now()
	require.True(t, r.Heartbeat(HeartBeat{Worker: "b", Seq: 1, Metrics: LoadMetrics{QueueDepth: 1, CPU: 0.5}, T: now}))
	require.True(t, r.Heartbeat(HeartBeat{Worker: "a", Seq: 1, Metrics: LoadMetrics{QueueDepth: 1, CPU: 0.5}, T: now}))

	w, ok := r.SelectWorker(now)
	require.True(t, ok)
	assert.Equal(t, "a", w.WorkerID)
}

func TestRegistrySelectWorkerNoneHealthy(t *testing.T) {
	r := NewRegistry()
	_, ok := r.SelectWorker(time.Now())
	assert.False(t, ok)
}

func TestRegistryUnregisterRemoves(t *testing.T) {
	r := NewRegistry()
	r.Register("w1", "ws://w1")
	r.Unregister("w1")
	_, ok := r.Get("w1")
	assert.False(t, ok)
}

func TestRegistryListSortedByID(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", "ws://z")
	r.Register("alpha", "ws://a")
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].WorkerID)
	assert.Equal(t, "zeta", list[1].WorkerID)
}
