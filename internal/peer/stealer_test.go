package peer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPeers(t *testing.T, withQueue map[string]int) *PeerRegistry {
	t.Helper()
	pr := NewPeerRegistry("thief", time.Minute)
	for id, q := range withQueue {
		pr.RegisterPeer(id, "ws://"+id)
		pr.UpdateMetrics(id, time.Now(), LoadMetrics{QueueDepth: q})
	}
	return pr
}

func TestStealerNoAliveVictims(t *testing.T) {
	pr := NewPeerRegistry("thief", time.Minute)
	s := NewStealer("thief", DefaultConfig(), pr, TransportFunc(func(ctx context.Context, addr string, req StealRequest) (StealResponse, error) {
		t.Fatal("transport should not be called with no alive victims")
		return StealResponse{}, nil
	}), nil, nil, 1)

	_, err := s.Steal(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoAliveVictims)
}

func TestStealerSuccessOnFirstVictim(t *testing.T) {
	pr := newTestPeers(t, map[string]int{"v1": 5})
	cfg := DefaultConfig()
	cfg.Strategy = StrategyLeastLoaded
	action := &ActionRequest{ActionID: "a1"}
	s := NewStealer("thief", cfg, pr, TransportFunc(func(ctx context.Context, addr string, req StealRequest) (StealResponse, error) {
		assert.Equal(t, "ws://v1", addr)
		return StealResponse{HasWork: true, Action: action}, nil
	}), nil, nil, 1)

	got, err := s.Steal(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ActionID)
	assert.Equal(t, 1.0, s.SuccessRate())
}

func TestStealerTriesNextVictimOnNoWork(t *testing.T) {
	pr := newTestPeers(t, map[string]int{"v1": 1, "v2": 2})
	cfg := DefaultConfig()
	cfg.Strategy = StrategyMostLoaded
	cfg.RetryBackoff = time.Millisecond

	called := map[string]bool{}
	s := NewStealer("thief", cfg, pr, TransportFunc(func(ctx context.Context, addr string, req StealRequest) (StealResponse, error) {
		called[req.Victim] = true
		if req.Victim == "v2" {
			return StealResponse{HasWork: false}, nil
		}
		return StealResponse{HasWork: true, Action: &ActionRequest{ActionID: "from-" + req.Victim}}, nil
	}), nil, nil, 1)

	got, err := s.Steal(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "from-v1", got.ActionID)
	assert.True(t, called["v2"])
	assert.True(t, called["v1"])
}

func TestStealerNetworkErrorMarksVictimDeadAndRetries(t *testing.T) {
	pr := newTestPeers(t, map[string]int{"v1": 5, "v2": 1})
	cfg := DefaultConfig()
	cfg.Strategy = StrategyMostLoaded // deterministically picks v1 (queue 5) first
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxRetries = 2

	attempts := 0
	s := NewStealer("thief", cfg, pr, TransportFunc(func(ctx context.Context, addr string, req StealRequest) (StealResponse, error) {
		attempts++
		if req.Victim == "v1" {
			return StealResponse{}, errors.New("connection refused")
		}
		return StealResponse{HasWork: true, Action: &ActionRequest{ActionID: "ok"}}, nil
	}), nil, nil, 2)

	got, err := s.Steal(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.ActionID)

	snap, ok := pr.Snapshot("v1")
	require.True(t, ok)
	assert.False(t, snap.Alive)
}

func TestStealerExhaustsRetriesReturnsError(t *testing.T) {
	pr := newTestPeers(t, map[string]int{"v1": 1})
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxRetries = 1

	s := NewStealer("thief", cfg, pr, TransportFunc(func(ctx context.Context, addr string, req StealRequest) (StealResponse, error) {
		return StealResponse{}, errors.New("network down")
	}), nil, nil, 1)

	_, err := s.Steal(context.Background(), 0)
	require.Error(t, err)
}

func TestStealerCountsFailureOnNoWork(t *testing.T) {
	pr := newTestPeers(t, map[string]int{"v1": 1})
	cfg := DefaultConfig()
	cfg.MaxRetries = 0

	s := NewStealer("thief", cfg, pr, TransportFunc(func(ctx context.Context, addr string, req StealRequest) (StealResponse, error) {
		return StealResponse{HasWork: false}, nil
	}), nil, nil, 1)

	_, err := s.Steal(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoAliveVictims)
	assert.Equal(t, int64(1), s.counters.attempts.Load())
	assert.Equal(t, int64(1), s.counters.failures.Load())
	assert.Equal(t, int64(0), s.counters.successes.Load())
}

func TestHandleStealRequestNoLocalWork(t *testing.T) {
	resp := HandleStealRequest(func() *ActionRequest { return nil })
	assert.False(t, resp.HasWork)
}

func TestHandleStealRequestWithLocalWork(t *testing.T) {
	resp := HandleStealRequest(func() *ActionRequest { return &ActionRequest{ActionID: "x"} })
	require.True(t, resp.HasWork)
	assert.Equal(t, "x", resp.Action.ActionID)
}
