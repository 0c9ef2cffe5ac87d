// Package embed provides the image-text similarity collaborator used by the
// guardrail's deterministic tier.
package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SimilarityClient scores how well a text describes an image, in [0, 1].
type SimilarityClient interface {
	Similarity(ctx context.Context, image []byte, text string) (float64, error)
}

// Client calls an embedding-similarity HTTP service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ SimilarityClient = (*Client)(nil)

// NewClient creates a similarity client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type similarityRequest struct {
	ImageB64 string `json:"image_b64"`
	Text     string `json:"text"`
}

type similarityResponse struct {
	Score float64 `json:"score"`
}

// Similarity implements SimilarityClient.
func (c *Client) Similarity(ctx context.Context, image []byte, text string) (float64, error) {
	body, err := json.Marshal(similarityRequest{
		ImageB64: base64.StdEncoding.EncodeToString(image),
		Text:     text,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/similarity", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("similarity request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("similarity failed with status %d", resp.StatusCode)
	}

	var parsed similarityResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Score < 0 || parsed.Score > 1 {
		return 0, fmt.Errorf("similarity score out of range: %f", parsed.Score)
	}
	return parsed.Score, nil
}

// Mock is a scriptable SimilarityClient for tests.
type Mock struct {
	mu    sync.Mutex
	Score float64
	Err   error
	calls int
}

var _ SimilarityClient = (*Mock)(nil)

// Similarity records the call and returns the scripted score.
func (m *Mock) Similarity(ctx context.Context, image []byte, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.Score, m.Err
}

// CallCount returns how many times Similarity was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
