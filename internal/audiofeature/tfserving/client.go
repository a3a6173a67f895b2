// Package tfserving calls an audio embedding model hosted by TensorFlow
// Serving, such as VGGish exported with a waveform input.
package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config contains connection details for a TensorFlow Serving model.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is a minimal REST client for the predict API.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a client for cfg.Model at cfg.BaseURL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "vggish"
	}
	return &Client{
		url:    fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimRight(cfg.BaseURL, "/"), model),
		client: &http.Client{Timeout: timeout},
	}
}

// EmbedFrames sends the waveform and returns one embedding per frame.
func (c *Client) EmbedFrames(ctx context.Context, waveform []float32) ([][]float32, error) {
	data, err := json.Marshal(map[string]any{"inputs": waveform})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tfserving predict failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out struct {
		Outputs [][]float32 `json:"outputs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tfserving response: %w", err)
	}
	if len(out.Outputs) == 0 {
		return nil, fmt.Errorf("tfserving returned no frames")
	}
	return out.Outputs, nil
}
