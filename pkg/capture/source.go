// Package capture produces still images from a live camera stream or a
// one-shot file picker.
//
// Both variants satisfy Source. The live variant additionally owns a
// hardware stream: Live keeps at most one open and releases it before a new
// one is opened and on Close.
package capture

import (
	"context"
	"image"

	"github.com/teslashibe/go-snapocr/pkg/camera"
)

// Source produces one still image on demand.
type Source interface {
	Acquire(ctx context.Context) (Still, error)
}

// Still is a single captured bitmap.
type Still struct {
	// Image holds the decoded pixels at native resolution.
	Image image.Image

	// Name is the original file name for picked files, empty for frames.
	Name string
}

// Size returns the native pixel dimensions.
func (s Still) Size() (int, int) {
	if s.Image == nil {
		return 0, 0
	}
	b := s.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Camera opens hardware streams.
type Camera interface {
	// Open requests camera access with the given preferences. It fails with
	// ErrPermissionDenied or ErrDeviceUnavailable.
	Open(ctx context.Context, c camera.Constraints) (Stream, error)
}

// Stream is an open camera stream.
type Stream interface {
	// Frame extracts the current frame as a still bitmap.
	Frame() (image.Image, error)

	// Tracks returns the number of hardware tracks still running.
	Tracks() int

	// Stop stops every track. Calling it more than once is safe.
	Stop() error
}
