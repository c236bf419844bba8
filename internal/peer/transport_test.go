package peer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketTransportRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/peer/steal", ServeSteal(func() *ActionRequest {
		return &ActionRequest{ActionID: "stolen-1"}
	}, CompressionNone, nil))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsAddr := "ws" + strings.TrimPrefix(ts.URL, "http")
	transport := WebSocketTransport{Compression: CompressionNone}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := transport.SendStealRequest(ctx, wsAddr, StealRequest{Thief: "t1", Victim: "v1", Deadline: time.Now().Add(time.Second)})
	require.NoError(t, err)
	require.True(t, resp.HasWork)
	assert.Equal(t, "stolen-1", resp.Action.ActionID)
}

func TestWebSocketTransportNoLocalWork(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/peer/steal", ServeSteal(func() *ActionRequest { return nil }, CompressionNone, nil))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsAddr := "ws" + strings.TrimPrefix(ts.URL, "http")
	transport := WebSocketTransport{Compression: CompressionNone}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := transport.SendStealRequest(ctx, wsAddr, StealRequest{Thief: "t1", Victim: "v1", Deadline: time.Now().Add(time.Second)})
	require.NoError(t, err)
	assert.False(t, resp.HasWork)
}

func TestWebSocketTransportWithZstdCompression(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/peer/steal", ServeSteal(func() *ActionRequest {
		return &ActionRequest{ActionID: "compressed", Command: []string{"go", "build"}}
	}, CompressionZstd, nil))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsAddr := "ws" + strings.TrimPrefix(ts.URL, "http")
	transport := WebSocketTransport{Compression: CompressionZstd}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := transport.SendStealRequest(ctx, wsAddr, StealRequest{Thief: "t1", Victim: "v1", Deadline: time.Now().Add(time.Second)})
	require.NoError(t, err)
	require.True(t, resp.HasWork)
	assert.Equal(t, "compressed", resp.Action.ActionID)
}
