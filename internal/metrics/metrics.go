// Package metrics centralizes the prometheus collectors that don't belong
// to a single cache/store instance: executor wave/queue gauges and peer
// work-stealing counters. internal/cache registers its own hit/miss/evicted
// counters directly against the Registerer it's given, following the same
// "each package owns its collectors, wired through an injected Registerer"
// shape used there — this package exists because the executor and peer
// coordinator don't otherwise have a natural owner for theirs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector the process exposes, all sharing one
// prometheus.Registerer so a single /metrics endpoint serves cache,
// executor and peer metrics together.
type Registry struct {
	reg      prometheus.Registerer
	Executor ExecutorMetrics
	Peer     PeerMetrics
}

// NewRegistry registers every collector against reg (pass
// prometheus.NewRegistry() for an isolated test registry, or
// prometheus.DefaultRegisterer for the process-wide one).
func NewRegistry(reg prometheus.Registerer) *Registry {
	return &Registry{
		reg:      reg,
		Executor: newExecutorMetrics(reg),
		Peer:     newPeerMetrics(reg),
	}
}

// Handler returns the HTTP handler serving this registry's metrics in the
// Prometheus exposition format. Only meaningful when Registry was built
// around a *prometheus.Registry rather than the global DefaultRegisterer.
func (r *Registry) Handler() http.Handler {
	if gatherer, ok := r.reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// ExecutorMetrics tracks the wave-based scheduler's live state: how many
// targets are in each NodeState and how deep the ready queue currently is,
// so a running build's progress is visible without subscribing to the
// event stream.
type ExecutorMetrics struct {
	QueueDepth     prometheus.Gauge
	ActiveWorkers  prometheus.Gauge
	WaveNumber     prometheus.Gauge
	TargetsByState *prometheus.GaugeVec
	Completed      *prometheus.CounterVec
}

func newExecutorMetrics(reg prometheus.Registerer) ExecutorMetrics {
	m := ExecutorMetrics{
		QueueDepth:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "waveforge_executor_ready_queue_depth", Help: "targets currently in the ready queue"}),
		ActiveWorkers:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "waveforge_executor_active_workers", Help: "workers currently executing a target"}),
		WaveNumber:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "waveforge_executor_wave_number", Help: "current wave index of the running build"}),
		TargetsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "waveforge_executor_targets_by_state", Help: "number of targets currently in each NodeState"}, []string{"state"}),
		Completed:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "waveforge_executor_targets_completed_total", Help: "targets that reached a terminal state, by outcome"}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.QueueDepth, m.ActiveWorkers, m.WaveNumber, m.TargetsByState, m.Completed)
	}
	return m
}

// PeerMetrics tracks work-stealing activity across the distributed
// coordination subsystem: attempts, outcomes and the strategy in play.
type PeerMetrics struct {
	StealAttempts *prometheus.CounterVec
	StealSuccess  *prometheus.CounterVec
	ActivePeers   prometheus.Gauge
	HeartbeatAge  *prometheus.GaugeVec
}

func newPeerMetrics(reg prometheus.Registerer) PeerMetrics {
	m := PeerMetrics{
		StealAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "waveforge_peer_steal_attempts_total", Help: "steal attempts by strategy"}, []string{"strategy"}),
		StealSuccess:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "waveforge_peer_steal_success_total", Help: "successful steals by strategy"}, []string{"strategy"}),
		ActivePeers:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "waveforge_peer_active_peers", Help: "peers considered alive by the registry"}),
		HeartbeatAge:  prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "waveforge_peer_heartbeat_age_seconds", Help: "seconds since the last heartbeat, by worker"}, []string{"worker"}),
	}
	if reg != nil {
		reg.MustRegister(m.StealAttempts, m.StealSuccess, m.ActivePeers, m.HeartbeatAge)
	}
	return m
}
