package genai

import (
	"context"
	"sync"
)

// MockClient is a scriptable ModelClient for tests.
type MockClient struct {
	mu sync.Mutex

	// Respond produces the reply for a request. When nil, Reply is
	// returned verbatim.
	Respond func(req InferRequest) (string, error)
	Reply   string
	Err     error

	calls []InferRequest
}

var _ ModelClient = (*MockClient)(nil)

// NewMockClient creates a mock that always returns reply.
func NewMockClient(reply string) *MockClient {
	return &MockClient{Reply: reply}
}

// Infer records the call and returns the scripted response.
func (m *MockClient) Infer(ctx context.Context, req InferRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.Respond != nil {
		return m.Respond(req)
	}
	return m.Reply, m.Err
}

// Calls returns a snapshot of recorded requests.
func (m *MockClient) Calls() []InferRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InferRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Infer was invoked.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
