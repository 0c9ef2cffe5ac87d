// Package search provides the supplementary web-knowledge collaborator used
// by the tool-routing stage when the transcript cannot answer the query.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Params describe one knowledge lookup.
type Params struct {
	Query       string `json:"query"`
	VisualLabel string `json:"visual_label"`
}

// KnowledgeClient answers a query with supplementary factual text.
type KnowledgeClient interface {
	Query(ctx context.Context, params Params) (string, error)
}

// Client calls a knowledge/search HTTP service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ KnowledgeClient = (*Client)(nil)

// NewClient creates a knowledge client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Query implements KnowledgeClient.
func (c *Client) Query(ctx context.Context, params Params) (string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search failed with status %d", resp.StatusCode)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}

// Mock is a scriptable KnowledgeClient for tests.
type Mock struct {
	mu    sync.Mutex
	Text  string
	Err   error
	calls int
}

var _ KnowledgeClient = (*Mock)(nil)

// Query records the call and returns the scripted text.
func (m *Mock) Query(ctx context.Context, params Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.Text, m.Err
}

// CallCount returns how many times Query was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
