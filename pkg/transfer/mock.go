package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-snapocr/pkg/normalize"
)

// Mock implements Sender for testing.
type Mock struct {
	// SendFunc is called when Send is invoked.
	SendFunc func(ctx context.Context, img normalize.EncodedImage) (*Result, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Send invocation.
type MockCall struct {
	Image normalize.EncodedImage
	Time  time.Time
}

// NewMock returns a mock that answers every upload with text.
func NewMock(text string) *Mock {
	return &Mock{
		SendFunc: func(ctx context.Context, img normalize.EncodedImage) (*Result, error) {
			return &Result{Text: text}, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SendFunc: func(ctx context.Context, img normalize.EncodedImage) (*Result, error) {
			return nil, err
		},
	}
}

// Send calls SendFunc and records the call.
func (m *Mock) Send(ctx context.Context, img normalize.EncodedImage) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Image: img, Time: time.Now()})
	fn := m.SendFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, img)
	}
	return &Result{}, nil
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Send calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ Sender = (*Mock)(nil)
