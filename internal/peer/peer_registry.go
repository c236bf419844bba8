package peer

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

func float64Bits(f float64) uint64     { return math.Float64bits(f) }
func float64FromBits(b uint64) float64 { return math.Float64frombits(b) }

// peerEntry tracks one known sibling from a worker's point of view.
// Load fields are atomic so PickVictim (called from the steal hot path)
// never blocks on the registry mutex; the mutex only guards the map of
// entries itself (insertion/removal), matching the spec's "lock-protected
// mutation, lock-free reads over atomic fields" split.
type peerEntry struct {
	address string

	lastSeenUnixNano atomic.Int64
	alive            atomic.Bool
	queueDepthBits   atomic.Uint64 // int64 queue depth, stored via bit pattern
	cpuBits          atomic.Uint64 // float64 cpu usage via math.Float64bits
	memBits          atomic.Uint64
}

// Snapshot is a point-in-time read of one peer's liveness and load.
type Snapshot struct {
	WorkerID string
	Address  string
	LastSeen time.Time
	Alive    bool
	Metrics  LoadMetrics
}

// PeerRegistry is the worker-side table of known siblings. Registering
// self is a no-op (RegisterPeer silently skips workerID == self).
type PeerRegistry struct {
	self string

	mu             sync.RWMutex
	peers          map[string]*peerEntry
	staleThreshold time.Duration
}

// NewPeerRegistry constructs a PeerRegistry for the worker identified by
// self, with the given stale-pruning threshold.
func NewPeerRegistry(self string, staleThreshold time.Duration) *PeerRegistry {
	return &PeerRegistry{
		self:           self,
		peers:          make(map[string]*peerEntry),
		staleThreshold: staleThreshold,
	}
}

// RegisterPeer adds or refreshes a peer's address. A no-op when workerID
// is this worker's own id.
func (pr *PeerRegistry) RegisterPeer(workerID, address string) {
	if workerID == pr.self {
		return
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	e, ok := pr.peers[workerID]
	if !ok {
		e = &peerEntry{}
		pr.peers[workerID] = e
	}
	e.address = address
	e.alive.Store(true)
	e.lastSeenUnixNano.Store(time.Now().UnixNano())
}

// UpdateMetrics records a fresh load reading for workerID and marks it
// alive again — a dead peer revives on any subsequent metrics update, as
// the spec requires.
func (pr *PeerRegistry) UpdateMetrics(workerID string, now time.Time, m LoadMetrics) {
	pr.mu.RLock()
	e, ok := pr.peers[workerID]
	pr.mu.RUnlock()
	if !ok {
		return
	}
	e.queueDepthBits.Store(uint64(int64(m.QueueDepth)))
	e.cpuBits.Store(float64Bits(m.CPU))
	e.memBits.Store(float64Bits(m.Mem))
	e.lastSeenUnixNano.Store(now.UnixNano())
	e.alive.Store(true)
}

// MarkDead flags workerID as dead without removing it from the table;
// reversible by any later UpdateMetrics call.
func (pr *PeerRegistry) MarkDead(workerID string) {
	pr.mu.RLock()
	e, ok := pr.peers[workerID]
	pr.mu.RUnlock()
	if ok {
		e.alive.Store(false)
	}
}

// PruneStale removes peers whose last-seen timestamp is older than the
// configured stale threshold.
func (pr *PeerRegistry) PruneStale(now time.Time) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	for id, e := range pr.peers {
		lastSeen := time.Unix(0, e.lastSeenUnixNano.Load())
		if now.Sub(lastSeen) > pr.staleThreshold {
			delete(pr.peers, id)
		}
	}
}

// Snapshot returns a consistent read of one peer, or false if unknown.
func (pr *PeerRegistry) Snapshot(workerID string) (Snapshot, bool) {
	pr.mu.RLock()
	e, ok := pr.peers[workerID]
	pr.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(workerID, e), true
}

// Alive returns every peer currently marked alive, sorted by id.
func (pr *PeerRegistry) Alive() []Snapshot {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	var out []Snapshot
	for id, e := range pr.peers {
		if e.alive.Load() {
			out = append(out, snapshotOf(id, e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out
}

func snapshotOf(id string, e *peerEntry) Snapshot {
	return Snapshot{
		WorkerID: id,
		Address:  e.address,
		LastSeen: time.Unix(0, e.lastSeenUnixNano.Load()),
		Alive:    e.alive.Load(),
		Metrics: LoadMetrics{
			QueueDepth: int(int64(e.queueDepthBits.Load())),
			CPU:        float64FromBits(e.cpuBits.Load()),
			Mem:        float64FromBits(e.memBits.Load()),
		},
	}
}
