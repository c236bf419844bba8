package peer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// HeartbeatSender maintains one long-lived websocket connection to the
// coordinator's /heartbeat endpoint and emits a HeartBeat envelope on
// every tick, carrying a monotonically increasing sequence number so the
// coordinator can discard anything stale or duplicated in transit.
type HeartbeatSender struct {
	worker        string
	coordinatorWS string // ws://host:port base
	interval      time.Duration
	compression   Compression
	log           *zap.Logger

	seq atomic.Uint64
}

// NewHeartbeatSender constructs a sender for worker against coordinatorWS
// (its ws:// base URL), beating every interval.
func NewHeartbeatSender(worker, coordinatorWS string, interval time.Duration, compression Compression, log *zap.Logger) *HeartbeatSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &HeartbeatSender{worker: worker, coordinatorWS: coordinatorWS, interval: interval, compression: compression, log: log}
}

// StateFunc is polled once per tick to build the HeartBeat's live payload.
type StateFunc func() (State, LoadMetrics)

// Run dials the coordinator and streams heartbeats until ctx is cancelled
// or the connection drops. Callers typically run this in its own
// goroutine and let it reconnect by calling Run again after a backoff.
func (h *HeartbeatSender) Run(ctx context.Context, state StateFunc) error {
	conn, _, err := wsDialer.DialContext(ctx, h.coordinatorWS+"/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("peer: dial heartbeat endpoint: %w", err)
	}
	defer conn.Close()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st, metrics := state()
			hb := HeartBeat{
				Worker:  h.worker,
				Seq:     h.seq.Add(1),
				State:   st,
				Metrics: metrics,
				T:       time.Now(),
			}
			env, err := encodeEnvelope("heartbeat", hb, h.compression)
			if err != nil {
				h.log.Warn("heartbeat encode failed", zap.Error(err))
				continue
			}
			if err := conn.WriteJSON(env); err != nil {
				return fmt.Errorf("peer: write heartbeat: %w", err)
			}
		}
	}
}
