package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerHandleRegisterAndListWorkers(t *testing.T) {
	registry := NewRegistry()
	srv := NewServer(registry, nil)

	body, err := json.Marshal(registerRequest{WorkerID: "w1", Address: "ws://w1"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/workers", nil)
	listW := httptest.NewRecorder()
	srv.Engine().ServeHTTP(listW, listReq)
	assert.Equal(t, http.StatusOK, listW.Code)

	var payload struct {
		Workers []workerView `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(listW.Body.Bytes(), &payload))
	require.Len(t, payload.Workers, 1)
	assert.Equal(t, "w1", payload.Workers[0].WorkerID)
}

func TestServerHandleRegisterRejectsMissingFields(t *testing.T) {
	registry := NewRegistry()
	srv := NewServer(registry, nil)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHeartbeatStreamOverWebsocket(t *testing.T) {
	registry := NewRegistry()
	registry.Register("w1", "ws://w1")
	srv := NewServer(registry, nil)

	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	sender := NewHeartbeatSender("w1", "ws"+strings.TrimPrefix(ts.URL, "http"), 10*time.Millisecond, CompressionNone, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	go func() {
		_ = sender.Run(ctx, func() (State, LoadMetrics) {
			return StateExecuting, LoadMetrics{QueueDepth: 2, CPU: 0.1}
		})
	}()

	<-ctx.Done()

	info, ok := registry.Get("w1")
	require.True(t, ok)
	assert.Equal(t, StateExecuting, info.State)
}
