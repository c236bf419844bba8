package peer

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorClientRegisterAndSyncPeers(t *testing.T) {
	registry := NewRegistry()
	srv := NewServer(registry, nil)
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	client := NewCoordinatorClient(ts.URL)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, client.Register(ctx, "w1", "ws://w1"))
	require.True(t, registry.Heartbeat(sampleHeartbeat("w1")))

	pr := NewPeerRegistry("self", time.Minute)
	require.NoError(t, client.SyncPeers(ctx, pr))

	snap, ok := pr.Snapshot("w1")
	require.True(t, ok)
	assert.Equal(t, "ws://w1", snap.Address)
}

func sampleHeartbeat(worker string) HeartBeat {
	return HeartBeat{Worker: worker, Seq: 1, State: StateIdle, Metrics: LoadMetrics{QueueDepth: 1}, T: time.Now()}
}
