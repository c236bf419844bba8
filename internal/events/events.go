// Package events implements a typed, immutable build-event stream: a
// single producer (the Executor) fanning out to many subscribers (CLI
// progress rendering, the peer coordinator, metrics). Follows
// testhelpers.EventBus's shape (mutex-guarded listener map, per-listener
// channel), generalized from single-shot close-on-fire signals to a
// durable FIFO stream of typed payloads.
package events

import (
	"sync"
	"time"

	"github.com/wavebuild/wavebuild/internal/types"
)

// Kind is the closed event taxonomy.
type Kind string

const (
	KindBuildStarted    Kind = "build_started"
	KindTargetStarted   Kind = "target_started"
	KindTargetCompleted Kind = "target_completed"
	KindTargetCached    Kind = "target_cached"
	KindTargetFailed    Kind = "target_failed"
	KindTargetProgress  Kind = "target_progress"
	KindBuildCompleted  Kind = "build_completed"
	KindMessage         Kind = "message"
)

// Event is immutable once constructed; nothing in this package mutates an
// Event after Publish. Fields are a superset over every Kind's payload —
// only the fields relevant to Kind are meaningful for a given event.
type Event struct {
	Kind Kind
	// Timestamp is set by the publisher at construction time; Go's
	// time.Now() already carries a monotonic reading, satisfying the
	// "monotonic timestamp" requirement without extra bookkeeping.
	Timestamp time.Time

	Target types.TargetID

	TotalTargets int           // BuildStarted
	Parallelism  int           // BuildStarted
	Duration     time.Duration // TargetCompleted, BuildCompleted
	OutputSize   int64         // TargetCompleted
	Reason       string        // TargetFailed
	Fraction     float64       // TargetProgress
	Built        int           // BuildCompleted
	Cached       int           // BuildCompleted
	Failed       int           // BuildCompleted
	Level        string        // Message
	Text         string        // Message
}

// subscriberBuffer bounds how far a slow subscriber can lag before its
// oldest unread events are dropped — a stalled CLI renderer must never
// block the Executor's completion loop.
const subscriberBuffer = 256

// Publisher is a single-producer, multi-subscriber event stream. Each
// subscriber gets its own buffered channel so one slow reader never
// blocks another.
type Publisher struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
}

func NewPublisher() *Publisher {
	return &Publisher{subscribers: make(map[int]chan Event)}
}

// Subscribe returns a channel of future events and an unsubscribe func.
// Events published before Subscribe is called are never delivered to this
// subscriber (no replay buffer).
func (p *Publisher) Subscribe() (<-chan Event, func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	ch := make(chan Event, subscriberBuffer)
	p.subscribers[id] = ch
	p.mu.Unlock()

	unsubscribe := func() {
		p.mu.Lock()
		if existing, ok := p.subscribers[id]; ok {
			delete(p.subscribers, id)
			close(existing)
		}
		p.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish delivers e to every current subscriber, FIFO per subscriber. A
// subscriber whose buffer is full has its oldest event dropped to make
// room, rather than blocking the publisher — the Executor must never
// stall on event delivery.
func (p *Publisher) Publish(e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- e:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// Close closes every subscriber channel. Call once the build is fully done
// and no further events will be published.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subscribers {
		delete(p.subscribers, id)
		close(ch)
	}
}
