// Package transcript provides the tiered transcript source and the temporal
// windowing used by the pipeline's context stage.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Segment is one timed line of a video transcript.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Source fetches a transcript for a video.
type Source interface {
	Query(ctx context.Context, videoID string) ([]Segment, error)
}

// Tier is one fallback level of the transcript source chain.
type Tier struct {
	Name    string
	BaseURL string
	Token   string // bearer token for authenticated tiers
}

// Client walks primary → alternate → direct-extraction tiers behind a single
// Query call. The aggregate ceiling bounds total time across all tiers: a
// tier in flight when the ceiling lapses is the last one tried.
type Client struct {
	tiers      []Tier
	ceiling    time.Duration
	httpClient *http.Client
}

var _ Source = (*Client)(nil)

// NewClient creates a tiered transcript client. Tiers with an empty BaseURL
// are dropped.
func NewClient(tiers []Tier, ceiling time.Duration) *Client {
	kept := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.BaseURL != "" {
			kept = append(kept, t)
		}
	}
	return &Client{
		tiers:      kept,
		ceiling:    ceiling,
		httpClient: &http.Client{},
	}
}

// Query implements Source.
func (c *Client) Query(ctx context.Context, videoID string) ([]Segment, error) {
	if len(c.tiers) == 0 {
		return nil, fmt.Errorf("no transcript tiers configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.ceiling)
	defer cancel()

	var lastErr error
	for _, tier := range c.tiers {
		segments, err := c.fetchTier(ctx, tier, videoID)
		if err == nil {
			return segments, nil
		}
		lastErr = fmt.Errorf("tier %s: %w", tier.Name, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all transcript tiers exhausted: %w", lastErr)
}

func (c *Client) fetchTier(ctx context.Context, tier Tier, videoID string) ([]Segment, error) {
	url := strings.TrimSuffix(tier.BaseURL, "/") + "/v1/transcripts/" + videoID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if tier.Token != "" {
		req.Header.Set("Authorization", "Bearer "+tier.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var parsed struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Segments) == 0 {
		return nil, fmt.Errorf("empty transcript")
	}
	return parsed.Segments, nil
}
