package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for capture conditions.
var (
	// ErrPermissionDenied is returned when camera access is refused.
	ErrPermissionDenied = errors.New("capture: camera permission denied")

	// ErrDeviceUnavailable is returned when no camera can be opened.
	ErrDeviceUnavailable = errors.New("capture: camera device unavailable")

	// ErrNotStreaming is returned when a frame is requested with no open stream.
	ErrNotStreaming = errors.New("capture: no live stream open")

	// ErrNoFrame is returned when the stream is open but produced nothing.
	ErrNoFrame = errors.New("capture: no frame available")

	// ErrNoSelection is returned when the picker resolves with no file.
	ErrNoSelection = errors.New("capture: no file selected")

	// ErrUnsupportedImage is returned when a picked file cannot be decoded.
	ErrUnsupportedImage = errors.New("capture: unsupported image")
)

// classifyOpenError maps a backend failure onto the acquisition error kinds.
// Errors already carrying a kind, and context errors, pass through.
func classifyOpenError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not allowed") ||
		strings.Contains(msg, "denied") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
