package capture

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/teslashibe/go-snapocr/pkg/camera"
)

// MockCamera implements Camera for testing.
type MockCamera struct {
	// OpenFunc overrides Open. When nil a MockStream of Width x Height is returned.
	OpenFunc func(ctx context.Context, c camera.Constraints) (Stream, error)

	// Width and Height size the frames of default streams.
	Width  int
	Height int

	mu      sync.Mutex
	streams []*MockStream
	calls   []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method      string
	Constraints camera.Constraints
	Time        time.Time
}

// NewMockCamera creates a camera producing frames of the given size.
func NewMockCamera(width, height int) *MockCamera {
	return &MockCamera{Width: width, Height: height}
}

// Open records the call and returns a new stream.
func (m *MockCamera) Open(ctx context.Context, c camera.Constraints) (Stream, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Open", Constraints: c, Time: time.Now()})
	openFunc := m.OpenFunc
	m.mu.Unlock()

	if openFunc != nil {
		return openFunc(ctx, c)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := NewMockStream(m.Width, m.Height)
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

// Streams returns every stream opened so far.
func (m *MockCamera) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockStream, len(m.streams))
	copy(out, m.streams)
	return out
}

// ActiveStreams counts streams with at least one running track.
func (m *MockCamera) ActiveStreams() int {
	count := 0
	for _, s := range m.Streams() {
		if s.Tracks() > 0 {
			count++
		}
	}
	return count
}

// CallCount returns the number of Open calls.
func (m *MockCamera) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastConstraints returns the constraints of the latest Open call.
func (m *MockCamera) LastConstraints() (camera.Constraints, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return camera.Constraints{}, false
	}
	return m.calls[len(m.calls)-1].Constraints, true
}

// MockStream is an in-memory stream with a configurable number of tracks.
type MockStream struct {
	// FrameFunc overrides Frame.
	FrameFunc func() (image.Image, error)

	mu     sync.Mutex
	width  int
	height int
	tracks int
	stops  int
}

// NewMockStream creates a single-track stream producing uniform frames.
func NewMockStream(width, height int) *MockStream {
	return &MockStream{width: width, height: height, tracks: 1}
}

// Frame returns a mid-gray frame, or ErrNotStreaming once stopped.
func (s *MockStream) Frame() (image.Image, error) {
	s.mu.Lock()
	stopped := s.tracks == 0
	fn := s.FrameFunc
	s.mu.Unlock()

	if stopped {
		return nil, ErrNotStreaming
	}
	if fn != nil {
		return fn()
	}
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = gray.R, gray.G, gray.B, gray.A
	}
	return img, nil
}

// Tracks returns the number of running tracks.
func (s *MockStream) Tracks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks
}

// Stop stops all tracks.
func (s *MockStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = 0
	s.stops++
	return nil
}

// Stops returns how many times Stop was called.
func (s *MockStream) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

var (
	_ Camera = (*MockCamera)(nil)
	_ Stream = (*MockStream)(nil)
)
