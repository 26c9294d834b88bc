// Package remote talks to a running terrasmith API: it reads server state and
// submits pipelines through the admin endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/persistence"
)

// Status mirrors GET /api/v1/status.
type Status struct {
	Name          string `json:"name"`
	UptimeSeconds int    `json:"uptime_seconds"`
	Running       bool   `json:"running"`
	StreamClients int    `json:"stream_clients"`
	Tiles         int    `json:"tiles"`
}

// RunResult is the response from POST /api/v1/pipeline.
type RunResult struct {
	RunID     string `json:"run_id"`
	Seed      int64  `json:"seed"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Tiles     []struct {
		Name  string          `json:"name"`
		Stats heightmap.Stats `json:"stats"`
	} `json:"tiles"`
}

// Client calls the terrasmith HTTP API.
type Client struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewClient creates a Client targeting the given API base URL. adminKey is
// only needed for Submit.
func NewClient(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Minute, // Submit blocks until the run finishes
		},
	}
}

// Status fetches the server status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.fetchJSON(ctx, "/api/v1/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Tiles lists the stored tiles.
func (c *Client) Tiles(ctx context.Context) ([]persistence.TileInfo, error) {
	var tiles []persistence.TileInfo
	if err := c.fetchJSON(ctx, "/api/v1/tiles", &tiles); err != nil {
		return nil, err
	}
	return tiles, nil
}

// Submit posts a YAML pipeline and waits for the run to finish.
func (c *Client) Submit(ctx context.Context, pipelineYAML []byte) (*RunResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/pipeline", bytes.NewReader(pipelineYAML))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/yaml")
	req.Header.Set("Authorization", "Bearer "+c.AdminKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST pipeline: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pipeline rejected (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result RunResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// WaitReady polls the status endpoint with exponential backoff until it
// responds or ctx ends.
func (c *Client) WaitReady(ctx context.Context, initial, maxBackoff time.Duration) error {
	backoff := initial
	for {
		_, err := c.Status(ctx)
		if err == nil {
			return nil
		}
		slog.Info("API not ready, retrying", "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for API: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (c *Client) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
