package domain

import "fmt"

// QueryRequest is the inbound payload to submit a run. Image payloads are
// passed by store reference; the ingest endpoint produces the references.
type QueryRequest struct {
	SessionID    string     `json:"session_id"`
	VideoID      string     `json:"video_id"`
	Timestamp    float64    `json:"timestamp"`
	BBox         [4]float64 `json:"bbox"`
	ViewportW    float64    `json:"viewport_w"`
	ViewportH    float64    `json:"viewport_h"`
	Query        string     `json:"query"`
	FullFrameRef string     `json:"full_frame_ref"`
	SnippetRef   string     `json:"snippet_ref"`
}

// Validate checks the required fields of a query request.
func (r *QueryRequest) Validate() error {
	if r.VideoID == "" {
		return fmt.Errorf("video_id is required")
	}
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	if r.FullFrameRef == "" {
		return fmt.Errorf("full_frame_ref is required")
	}
	if r.SnippetRef == "" {
		return fmt.Errorf("snippet_ref is required")
	}
	if r.Timestamp < 0 {
		return fmt.Errorf("timestamp must be >= 0")
	}
	if r.BBox[2] <= 0 || r.BBox[3] <= 0 {
		return fmt.Errorf("bbox width and height must be > 0")
	}
	return nil
}

// IngestRequest is the inbound payload to the frame ingest endpoint: a
// base64-encoded full frame plus the selection to crop out of it.
type IngestRequest struct {
	SessionID    string     `json:"session_id"`
	FullFrameB64 string     `json:"full_frame_b64"`
	BBox         [4]float64 `json:"bbox"`
	ViewportW    float64    `json:"viewport_w"`
	ViewportH    float64    `json:"viewport_h"`
}

// Validate checks the required fields of an ingest request.
func (r *IngestRequest) Validate() error {
	if r.FullFrameB64 == "" {
		return fmt.Errorf("full_frame_b64 is required")
	}
	if r.BBox[2] <= 0 || r.BBox[3] <= 0 {
		return fmt.Errorf("bbox width and height must be > 0")
	}
	if r.ViewportW <= 0 || r.ViewportH <= 0 {
		return fmt.Errorf("viewport dimensions must be > 0")
	}
	return nil
}

// IngestResponse returns the store references for an ingested frame pair.
type IngestResponse struct {
	SessionID    string `json:"session_id"`
	FullFrameRef string `json:"full_frame_ref"`
	SnippetRef   string `json:"snippet_ref"`
	ExpiresInSec int    `json:"expires_in_sec"`
}

// SubmitResponse acknowledges a submitted run on non-streaming paths.
type SubmitResponse struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`
}
