package main

import (
	"testing"
	"time"

	"github.com/wavebuild/wavebuild/internal/events"
)

// TestNewRendererDrainsAndStops exercises the renderer's subscribe/handle/
// stop lifecycle end to end; it asserts only that stop() returns once every
// published event has been consumed, not on the printed text itself.
func TestNewRendererDrainsAndStops(t *testing.T) {
	pub := events.NewPublisher()
	stop := newRenderer(pub, true)

	pub.Publish(events.Event{Kind: events.KindBuildStarted, TotalTargets: 2})
	pub.Publish(events.Event{Kind: events.KindTargetCompleted, Duration: time.Millisecond})
	pub.Publish(events.Event{Kind: events.KindTargetCached})
	pub.Publish(events.Event{Kind: events.KindBuildCompleted, Built: 1, Cached: 1})

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("renderer did not stop after its subscription was drained")
	}
}
