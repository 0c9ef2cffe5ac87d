package genai

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

// KeyPool rotates API keys round-robin so free-tier rate limits are spread
// across the pool instead of exhausting one key.
type KeyPool struct {
	mu   sync.Mutex
	keys []string
	next int
}

// NewKeyPool creates a rotating key pool. An empty pool yields empty keys,
// which suits gateways that do their own auth.
func NewKeyPool(keys []string) *KeyPool {
	return &KeyPool{keys: keys}
}

// Next returns the next key in round-robin order.
func (p *KeyPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return ""
	}
	key := p.keys[p.next]
	p.next = (p.next + 1) % len(p.keys)
	return key
}

// Client calls an OpenAI-compatible gateway for multimodal inference.
type Client struct {
	baseURL    string
	model      string
	pool       *KeyPool
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a model client for one endpoint + model pair.
func NewClient(baseURL, model string, pool *KeyPool, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		pool:       pool,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 4,
	}
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Infer implements ModelClient. On 429 it rotates to the next key and backs
// off exponentially before retrying, up to maxRetries attempts.
func (c *Client) Infer(ctx context.Context, req InferRequest) (string, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) buildRequest(req InferRequest) chatRequest {
	parts := make([]contentPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
			},
		})
	}
	parts = append(parts, contentPart{Type: "text", Text: req.Text})

	messages := make([]chatMessage, 0, 2)
	if req.Instructions != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: []contentPart{{Type: "text", Text: req.Instructions}},
		})
	}
	messages = append(messages, chatMessage{Role: "user", Content: parts})

	return chatRequest{Model: c.model, Messages: messages}
}

func (c *Client) doOnce(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := c.pool.Next(); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("rate limited (429): %s", truncate(string(data), 120))
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("inference error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("inference returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}

// IsRateLimited reports whether an error from Infer was a 429.
func IsRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "rate limited (429)")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
