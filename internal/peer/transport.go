package peer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsDialer is shared across outbound steal connections; short handshake
// timeout since the whole exchange is already bounded by the caller's
// context deadline.
var wsDialer = websocket.Dialer{HandshakeTimeout: 3 * time.Second}

// WebSocketTransport implements Transport by dialing the victim's
// /peer/steal endpoint, sending a StealRequest envelope, and reading back
// exactly one StealResponse envelope. One connection per attempt — the
// steal protocol is request/response, not a persistent stream, unlike the
// heartbeat connection in heartbeat.go.
type WebSocketTransport struct {
	Compression Compression
	Log         *zap.Logger
}

func (t WebSocketTransport) logger() *zap.Logger {
	if t.Log == nil {
		return zap.NewNop()
	}
	return t.Log
}

// SendStealRequest dials victimAddress (a ws://host:port base URL), sends
// req, and decodes the single StealResponse reply.
func (t WebSocketTransport) SendStealRequest(ctx context.Context, victimAddress string, req StealRequest) (StealResponse, error) {
	url := victimAddress + "/peer/steal"
	conn, _, err := wsDialer.DialContext(ctx, url, nil)
	if err != nil {
		return StealResponse{}, fmt.Errorf("peer: dial %s: %w", url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	reqEnv, err := encodeEnvelope("steal_request", req, t.Compression)
	if err != nil {
		return StealResponse{}, err
	}
	if err := conn.WriteJSON(reqEnv); err != nil {
		return StealResponse{}, fmt.Errorf("peer: write steal request: %w", err)
	}

	var respEnv Envelope
	if err := conn.ReadJSON(&respEnv); err != nil {
		return StealResponse{}, fmt.Errorf("peer: read steal response: %w", err)
	}
	var resp StealResponse
	if err := decodeEnvelope(respEnv, &resp); err != nil {
		return StealResponse{}, err
	}
	t.logger().Debug("steal exchange complete", zap.String("victim", req.Victim), zap.Bool("has_work", resp.HasWork))
	return resp, nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeSteal is the net/http handler a worker mounts at /peer/steal to
// answer incoming StealRequests from thieves. It upgrades the connection,
// reads one envelope, calls tryStealLocal, and writes back one
// StealResponse envelope.
func ServeSteal(tryStealLocal TryStealLocalFunc, compression Compression, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("steal upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		var reqEnv Envelope
		if err := conn.ReadJSON(&reqEnv); err != nil {
			log.Debug("steal request read failed", zap.Error(err))
			return
		}
		var req StealRequest
		if err := decodeEnvelope(reqEnv, &req); err != nil {
			log.Warn("steal request decode failed", zap.Error(err))
			return
		}

		resp := HandleStealRequest(tryStealLocal)
		respEnv, err := encodeEnvelope("steal_response", resp, compression)
		if err != nil {
			log.Warn("steal response encode failed", zap.Error(err))
			return
		}
		if err := conn.WriteJSON(respEnv); err != nil {
			log.Debug("steal response write failed", zap.Error(err))
		}
	}
}
