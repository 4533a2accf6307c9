// Package embed talks to an external embedding service. A missing or
// unreachable backend degrades to ports.ErrEmbeddingUnavailable so the
// classifier can fall back to regex scoring.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"newsdesk/internal/faults"
	"newsdesk/internal/ports"
)

// Client encodes text batches over HTTP.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.EmbeddingProvider = (*Client)(nil)

// NewClient creates a reusable HTTP client. An empty endpoint yields a
// client that always reports the backend unavailable.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Encode sends all texts in one request and returns one vector per text.
func (c *Client) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if c.endpoint == "" {
		return nil, ports.ErrEmbeddingUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]any{"texts": texts})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		classified := faults.FromStatus(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
		if faults.IsTransient(classified) || faults.IsRateLimited(classified) {
			return nil, fmt.Errorf("%w: status %s", ports.ErrEmbeddingUnavailable, resp.Status)
		}
		return nil, fmt.Errorf("embedding request: %w", classified)
	}

	var parsed struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding request: got %d vectors for %d texts", len(parsed.Embeddings), len(texts))
	}
	return parsed.Embeddings, nil
}
