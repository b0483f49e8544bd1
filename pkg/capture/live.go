package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-snapocr/pkg/camera"
)

// Live is the live-stream capture variant. It exclusively owns at most one
// open Stream.
type Live struct {
	camera Camera
	logger *slog.Logger

	mu     sync.Mutex
	stream Stream
}

// NewLive wraps a camera backend.
func NewLive(cam Camera, logger *slog.Logger) *Live {
	if logger == nil {
		logger = slog.Default()
	}
	return &Live{
		camera: cam,
		logger: logger.With("component", "capture.live"),
	}
}

// Open releases any open stream and then requests a new one.
// On failure no stream is held.
func (l *Live) Open(ctx context.Context, c camera.Constraints) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeLocked()

	if errs := c.Validate(); len(errs) > 0 {
		return fmt.Errorf("%w: invalid constraints: %v", ErrDeviceUnavailable, errs)
	}

	s, err := l.camera.Open(ctx, c)
	if err != nil {
		return classifyOpenError(err)
	}
	l.stream = s

	l.logger.Info("stream opened",
		"facing", c.FacingMode,
		"width", c.Width,
		"height", c.Height,
		"pixels", c.Pixels(),
		"tracks", s.Tracks())
	return nil
}

// Frame extracts one still from the open stream.
func (l *Live) Frame() (Still, error) {
	l.mu.Lock()
	s := l.stream
	l.mu.Unlock()

	if s == nil {
		return Still{}, ErrNotStreaming
	}
	img, err := s.Frame()
	if err != nil {
		return Still{}, err
	}
	if img == nil || img.Bounds().Empty() {
		return Still{}, ErrNoFrame
	}
	return Still{Image: img}, nil
}

// Acquire implements Source.
func (l *Live) Acquire(ctx context.Context) (Still, error) {
	if err := ctx.Err(); err != nil {
		return Still{}, err
	}
	return l.Frame()
}

// Active reports whether a stream is held.
func (l *Live) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stream != nil
}

// Tracks returns the number of running hardware tracks, zero when closed.
func (l *Live) Tracks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stream == nil {
		return 0
	}
	return l.stream.Tracks()
}

// Close stops every track of the open stream. Safe to call repeatedly.
func (l *Live) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *Live) closeLocked() error {
	if l.stream == nil {
		return nil
	}
	s := l.stream
	l.stream = nil
	if err := s.Stop(); err != nil {
		l.logger.Warn("stream stop failed", "error", err)
		return err
	}
	l.logger.Info("stream closed")
	return nil
}

var _ Source = (*Live)(nil)
