package recognize

import (
	"context"
	"sync"
)

// Mock implements Recognizer for testing.
type Mock struct {
	// RecognizeFunc is called when Recognize is invoked.
	RecognizeFunc func(ctx context.Context, req Request) (*Result, error)

	mu       sync.Mutex
	requests []Request
}

// NewMock returns a mock answering every request with text.
func NewMock(text string) *Mock {
	return &Mock{
		RecognizeFunc: func(ctx context.Context, req Request) (*Result, error) {
			return &Result{Text: text}, nil
		},
	}
}

// Recognize records req and calls RecognizeFunc.
func (m *Mock) Recognize(ctx context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.RecognizeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &Result{}, nil
}

// Requests returns every recorded request.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

var _ Recognizer = (*Mock)(nil)
