package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/go-snapocr/pkg/camera"
	"gocv.io/x/gocv"
)

// GocvCamera opens local capture devices through OpenCV.
type GocvCamera struct {
	// DefaultDevice is used when the constraints leave Device at -1.
	DefaultDevice int

	// UserDevice is used for FacingUser when set (>= 0). Local capture APIs
	// cannot query facing, so the mapping is configured.
	UserDevice int
}

// NewGocvCamera returns a camera that opens the given device index by default.
func NewGocvCamera(device int) *GocvCamera {
	return &GocvCamera{DefaultDevice: device, UserDevice: -1}
}

// Open implements Camera.
func (g *GocvCamera) Open(ctx context.Context, c camera.Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := c.Device
	if id < 0 {
		id = g.DefaultDevice
		if c.FacingMode == camera.FacingUser && g.UserDevice >= 0 {
			id = g.UserDevice
		}
	}

	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, classifyOpenError(fmt.Errorf("open device %d: %w", id, err))
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d did not open", ErrDeviceUnavailable, id)
	}

	// Ideal resolution; the driver picks the closest mode it supports.
	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))

	return &gocvStream{vc: vc, mat: gocv.NewMat()}, nil
}

type gocvStream struct {
	mu      sync.Mutex
	vc      *gocv.VideoCapture
	mat     gocv.Mat // reused between reads
	stopped bool
}

func (s *gocvStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrNotStreaming
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, ErrNoFrame
	}
	// ToImage copies out of the Mat, so the next Read cannot clobber it.
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (s *gocvStream) Tracks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}
	return 1
}

func (s *gocvStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	matErr := s.mat.Close()
	if err := s.vc.Close(); err != nil {
		return fmt.Errorf("release device: %w", err)
	}
	return matErr
}

var _ Camera = (*GocvCamera)(nil)
