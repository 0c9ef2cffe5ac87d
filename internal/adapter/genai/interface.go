// Package genai provides an abstraction over multimodal inference backends.
package genai

import "context"

// InferRequest carries one multimodal inference call: zero or more images
// (raw encoded bytes), a text body and optional system instructions.
type InferRequest struct {
	Images       [][]byte
	Text         string
	Instructions string
}

// ModelClient defines the interface for multimodal inference.
type ModelClient interface {
	// Infer runs a single non-streaming inference and returns the text
	// output. It must observe ctx and return promptly on cancellation.
	Infer(ctx context.Context, req InferRequest) (string, error)
}

// Ensure Client implements ModelClient.
var _ ModelClient = (*Client)(nil)
