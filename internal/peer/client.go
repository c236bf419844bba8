package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// CoordinatorClient is the worker-side counterpart to Server: it registers
// with the coordinator and periodically discovers peers via /workers so
// they can be fed into PeerRegistry.RegisterPeer.
type CoordinatorClient struct {
	baseURL string // http://host:port
	http    *http.Client
}

// NewCoordinatorClient builds a client against the coordinator's HTTP base
// URL (register/workers use plain HTTP even though heartbeat/steal use
// websocket).
func NewCoordinatorClient(baseURL string) *CoordinatorClient {
	return &CoordinatorClient{baseURL: baseURL, http: &http.Client{}}
}

// Register announces this worker's address to the coordinator.
func (c *CoordinatorClient) Register(ctx context.Context, workerID, address string) error {
	body, err := json.Marshal(registerRequest{WorkerID: workerID, Address: address})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("peer: register request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer: register failed with status %d", resp.StatusCode)
	}
	return nil
}

// ListWorkers fetches the coordinator's current worker table, for seeding
// or refreshing a PeerRegistry.
func (c *CoordinatorClient) ListWorkers(ctx context.Context) ([]workerView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/workers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("peer: list workers request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer: list workers failed with status %d", resp.StatusCode)
	}
	var payload struct {
		Workers []workerView `json:"workers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("peer: decode worker list: %w", err)
	}
	return payload.Workers, nil
}

// SyncPeers refreshes pr with the coordinator's current worker list,
// registering any newly-seen workers and feeding fresh load metrics into
// already-known ones.
func (c *CoordinatorClient) SyncPeers(ctx context.Context, pr *PeerRegistry) error {
	workers, err := c.ListWorkers(ctx)
	if err != nil {
		return err
	}
	for _, w := range workers {
		pr.RegisterPeer(w.WorkerID, w.Address)
		pr.UpdateMetrics(w.WorkerID, w.LastHeartbeat, LoadMetrics{
			QueueDepth: w.QueueDepth,
			CPU:        w.CPU,
			Mem:        w.Mem,
		})
	}
	return nil
}
