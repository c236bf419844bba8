package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistryRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.Executor.QueueDepth.Set(3)
	m.Executor.Completed.WithLabelValues("success").Inc()
	m.Peer.StealAttempts.WithLabelValues("random").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"waveforge_executor_ready_queue_depth",
		"waveforge_executor_targets_completed_total",
		"waveforge_peer_steal_attempts_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}
