package transcript

import (
	"context"
	"sync"
)

// Mock is a scriptable Source for tests.
type Mock struct {
	mu       sync.Mutex
	Segments []Segment
	Err      error
	calls    int
}

var _ Source = (*Mock)(nil)

// Query records the call and returns the scripted transcript.
func (m *Mock) Query(ctx context.Context, videoID string) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.Segments, m.Err
}

// CallCount returns how many times Query was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
