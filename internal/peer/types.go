// Package peer implements distributed work-stealing coordination: a
// coordinator-side Registry of worker health and load, a worker-side
// PeerRegistry of known siblings, and a Stealer engine that picks a victim
// and exchanges StealRequest/StealResponse envelopes over a websocket
// transport. Structured logging here uses go.uber.org/zap rather than the
// stdlib-log-based internal/logx the rest of the module uses, following
// Voskan-arena-cache's WithLogger(*zap.Logger) shape — this is the one
// ambient-logging departure in the module, reserved for the
// highest-volume, most latency-sensitive subsystem (heartbeats and steal
// attempts on a tight timer).
package peer

import "time"

// State is a worker's lifecycle state as seen by the coordinator.
type State string

const (
	StateIdle      State = "idle"
	StateExecuting State = "executing"
	StateStealing  State = "stealing"
	StateUploading State = "uploading"
	StateFailed    State = "failed"
	StateDraining  State = "draining"
)

// Strategy selects how a thief picks a victim among its known peers.
type Strategy string

const (
	StrategyRandom      Strategy = "random"
	StrategyLeastLoaded Strategy = "least_loaded"
	StrategyMostLoaded  Strategy = "most_loaded"
	StrategyPowerOfTwo  Strategy = "power_of_two"
	StrategyAdaptive    Strategy = "adaptive"
)

// Compression is the per-envelope indicator on the wire; no cross-version
// compatibility is implied, envelopes carry Version alongside it.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLz4  Compression = "lz4"
)

// ProtocolVersion is the current wire protocol generation. Bumped whenever
// an envelope shape changes in a way older peers can't decode.
const ProtocolVersion = 1

// LoadMetrics is the subset of a worker's live load the registry and
// steal-victim selection reason about.
type LoadMetrics struct {
	QueueDepth int
	CPU        float64 // 0..1
	Mem        float64 // 0..1
}

// Load computes the weighted score selection minimizes: 0.6 times the raw
// queue depth plus 0.4 times CPU usage.
func (m LoadMetrics) Load() float64 {
	return 0.6*float64(m.QueueDepth) + 0.4*m.CPU
}

// WorkerInfo is the coordinator's view of one registered worker.
type WorkerInfo struct {
	WorkerID      string
	Address       string
	State         State
	Metrics       LoadMetrics
	LastHeartbeat time.Time
	LastSeq       uint64
}

// HeartBeat is sent periodically by a worker to the coordinator (or to a
// peer, for worker-to-worker liveness). Seq is a monotonic per-worker
// sequence number; receivers discard stale or duplicate beats.
type HeartBeat struct {
	Worker  string
	Seq     uint64
	State   State
	Metrics LoadMetrics
	T       time.Time
}

// StealRequest is sent by a thief to a candidate victim.
type StealRequest struct {
	Thief    string
	Victim   string
	Deadline time.Time
}

// StealResponse is the victim's reply. Action is populated only when
// HasWork is true.
type StealResponse struct {
	HasWork bool
	Action  *ActionRequest
}

// ActionRequest describes one unit of stealable work, shaped so it can be
// scheduled locally by the thief exactly like a normally-dispatched
// target build action.
type ActionRequest struct {
	ActionID     string
	Command      []string
	Env          map[string]string
	Inputs       []string
	Outputs      []string
	Capabilities []string
	Priority     int
	Timeout      time.Duration
}

// ActionStatus is an ActionResult's terminal outcome.
type ActionStatus string

const (
	ActionSuccess   ActionStatus = "success"
	ActionFailure   ActionStatus = "failure"
	ActionTimeout   ActionStatus = "timeout"
	ActionCancelled ActionStatus = "cancelled"
	ActionError     ActionStatus = "error"
)

// ActionResult is reported back by whichever worker actually ran the
// stolen action.
type ActionResult struct {
	ActionID string
	Status   ActionStatus
	Outputs  []string
	Stderr   string
}

// Envelope wraps any of the above payloads for wire transport, carrying
// the protocol version and compression indicator. Payload is the
// JSON-encoded shape, zstd-compressed when Compression is CompressionZstd;
// any other Compression value leaves it uncompressed.
type Envelope struct {
	Version     int
	Compression Compression
	Kind        string
	Payload     []byte
}
