package peer

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wavebuild/wavebuild/internal/metrics"
	"github.com/wavebuild/wavebuild/internal/wverrors"
)

// Config tunes the work-stealing engine.
type Config struct {
	Strategy       Strategy
	StealTimeout   time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	MinLocalQueue  int     // steal only when local queue depth is at or below this
	StealThreshold float64 // adaptive: success rate below which Adaptive switches to MostLoaded
}

// DefaultConfig mirrors sane defaults for a single-coordinator, few-worker
// deployment.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyAdaptive,
		StealTimeout:   2 * time.Second,
		RetryBackoff:   100 * time.Millisecond,
		MaxRetries:     3,
		MinLocalQueue:  1,
		StealThreshold: 0.3,
	}
}

// Transport sends a StealRequest to victim's address and waits for its
// StealResponse, or returns an error (including ctx deadline/cancel).
// gorilla/websocket-backed implementations live in transport.go; tests
// substitute an in-process func.
type Transport interface {
	SendStealRequest(ctx context.Context, victimAddress string, req StealRequest) (StealResponse, error)
}

// TransportFunc adapts a plain function to Transport.
type TransportFunc func(ctx context.Context, victimAddress string, req StealRequest) (StealResponse, error)

func (f TransportFunc) SendStealRequest(ctx context.Context, victimAddress string, req StealRequest) (StealResponse, error) {
	return f(ctx, victimAddress, req)
}

// stealCounters are the atomic counters the spec calls out by name:
// attempts, successes, failures, timeouts, network_errors.
type stealCounters struct {
	attempts      atomic.Int64
	successes     atomic.Int64
	failures      atomic.Int64
	timeouts      atomic.Int64
	networkErrors atomic.Int64
}

// SuccessRate returns successes/attempts, or 0 if there have been no
// attempts yet.
func (c *stealCounters) SuccessRate() float64 {
	attempts := c.attempts.Load()
	if attempts == 0 {
		return 0
	}
	return float64(c.successes.Load()) / float64(attempts)
}

// Stealer is one worker's work-stealing engine: it consults its
// PeerRegistry to pick a victim per Config.Strategy, and drives the
// StealRequest/StealResponse exchange through a Transport.
type Stealer struct {
	self      string
	cfg       Config
	peers     *PeerRegistry
	transport Transport
	metrics   *metrics.PeerMetrics
	log       *zap.Logger

	counters stealCounters
	rng      *rand.Rand
}

// NewStealer constructs a Stealer. m and log may be nil (metrics/logging
// become no-ops); rngSeed lets tests make PowerOfTwo/Random deterministic.
func NewStealer(self string, cfg Config, peers *PeerRegistry, transport Transport, m *metrics.PeerMetrics, log *zap.Logger, rngSeed int64) *Stealer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stealer{
		self:      self,
		cfg:       cfg,
		peers:     peers,
		transport: transport,
		metrics:   m,
		log:       log,
		rng:       rand.New(rand.NewSource(rngSeed)),
	}
}

// ErrNoAliveVictims is returned when no peer currently reports queued
// work.
var ErrNoAliveVictims = errors.New("peer: no alive peers with work")

// Steal runs one steal decision: choose a victim per strategy, send a
// StealRequest, and on has_work=true return the ActionRequest. On
// has_work=false it retries against the next victim up to MaxRetries with
// exponential backoff. localQueueDepth is not read: callers should
// only invoke Steal when their own queue is at or below MinLocalQueue,
// matching the spec's "steal decision on a worker with low local queue";
// Steal itself doesn't re-check this so tests can force an attempt.
func (s *Stealer) Steal(ctx context.Context, localQueueDepth int) (*ActionRequest, error) {
	alive := s.peers.Alive()
	if len(withWork(alive)) == 0 {
		s.log.Debug("steal failed: no alive peers with work", zap.String("worker", s.self))
		return nil, ErrNoAliveVictims
	}

	useMostLoaded := s.cfg.Strategy == StrategyAdaptive && s.counters.attempts.Load() > 0 &&
		s.counters.SuccessRate() < s.cfg.StealThreshold

	backoff := s.cfg.RetryBackoff
	tried := make(map[string]bool)

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		remaining := excludeTried(withWork(s.peers.Alive()), tried)
		if len(remaining) == 0 {
			return nil, ErrNoAliveVictims
		}
		victim, ok := pickVictim(s.rng, s.cfg.Strategy, remaining, useMostLoaded)
		if !ok {
			return nil, ErrNoAliveVictims
		}
		tried[victim.WorkerID] = true

		action, err := s.attempt(ctx, victim)
		if err != nil {
			if attempt == s.cfg.MaxRetries {
				return nil, err
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			continue
		}
		if action != nil {
			return action, nil
		}
		// has_work=false: back off, then try the next victim.
		if attempt < s.cfg.MaxRetries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, ErrNoAliveVictims
}

func (s *Stealer) attempt(ctx context.Context, victim Snapshot) (*ActionRequest, error) {
	s.counters.attempts.Add(1)
	s.recordAttempt()

	deadline := time.Now().Add(s.cfg.StealTimeout)
	attemptCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	resp, err := s.transport.SendStealRequest(attemptCtx, victim.Address, StealRequest{
		Thief:    s.self,
		Victim:   victim.WorkerID,
		Deadline: deadline,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.counters.timeouts.Add(1)
			s.peers.MarkDead(victim.WorkerID)
			return nil, wverrors.Wrap(wverrors.KindDistribution, "steal timeout", err)
		}
		s.counters.networkErrors.Add(1)
		s.peers.MarkDead(victim.WorkerID)
		return nil, wverrors.Wrap(wverrors.KindDistribution, "peer unreachable", err)
	}

	if !resp.HasWork {
		s.counters.failures.Add(1)
		return nil, nil
	}
	s.counters.successes.Add(1)
	s.recordSuccess()
	return resp.Action, nil
}

func (s *Stealer) recordAttempt() {
	if s.metrics == nil {
		return
	}
	s.metrics.StealAttempts.WithLabelValues(string(s.cfg.Strategy)).Inc()
}

func (s *Stealer) recordSuccess() {
	if s.metrics == nil {
		return
	}
	s.metrics.StealSuccess.WithLabelValues(string(s.cfg.Strategy)).Inc()
}

// SuccessRate exposes the engine's running success rate, mainly for tests
// and diagnostics.
func (s *Stealer) SuccessRate() float64 { return s.counters.SuccessRate() }

func excludeTried(alive []Snapshot, tried map[string]bool) []Snapshot {
	out := make([]Snapshot, 0, len(alive))
	for _, s := range alive {
		if !tried[s.WorkerID] {
			out = append(out, s)
		}
	}
	return out
}

// TryStealLocalFunc is the caller-supplied hook a victim uses to decide how
// much local work to give away; the engine only forwards the result.
type TryStealLocalFunc func() *ActionRequest

// HandleStealRequest is the victim-side handler: it calls tryStealLocal and
// builds the StealResponse. Kept as a free function (not a Stealer method)
// since a victim's engine and a thief's engine are logically independent,
// and a node is usually acting as both at once.
func HandleStealRequest(tryStealLocal TryStealLocalFunc) StealResponse {
	action := tryStealLocal()
	if action == nil {
		return StealResponse{HasWork: false}
	}
	return StealResponse{HasWork: true, Action: action}
}
