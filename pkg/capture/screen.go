package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// AllDisplays captures the union of every active display.
const AllDisplays = -1

// Screen grabs the desktop as a still. It holds no resources between
// captures.
type Screen struct {
	// Display is the display index, or AllDisplays.
	Display int
}

// Acquire captures the configured display.
func (s Screen) Acquire(ctx context.Context) (Still, error) {
	if err := ctx.Err(); err != nil {
		return Still{}, err
	}

	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return Still{}, fmt.Errorf("%w: no active displays", ErrDeviceUnavailable)
	}

	var bounds image.Rectangle
	switch {
	case s.Display == AllDisplays:
		bounds = screenshot.GetDisplayBounds(0)
		for i := 1; i < n; i++ {
			bounds = bounds.Union(screenshot.GetDisplayBounds(i))
		}
	case s.Display < 0 || s.Display >= n:
		return Still{}, fmt.Errorf("%w: display %d of %d", ErrDeviceUnavailable, s.Display, n)
	default:
		bounds = screenshot.GetDisplayBounds(s.Display)
	}

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return Still{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	return Still{Image: img}, nil
}

var _ Source = Screen{}
