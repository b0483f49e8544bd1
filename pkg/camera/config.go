// Package camera describes what the capture client asks of a camera.
// Values are preferences: a device may grant a different resolution or facing.
package camera

import "fmt"

// FacingMode selects which physical camera is preferred.
type FacingMode string

// Facing modes understood by camera backends.
const (
	FacingEnvironment FacingMode = "environment" // rear camera
	FacingUser        FacingMode = "user"        // front camera
	FacingAny         FacingMode = ""
)

// Resolution limits accepted by Validate.
const (
	MinWidth  = 160
	MinHeight = 120
	MaxWidth  = 7680
	MaxHeight = 4320
)

// Constraints holds the preferred stream parameters.
type Constraints struct {
	// FacingMode is the preferred camera, "environment" for document capture.
	FacingMode FacingMode `json:"facing_mode"`

	// Width and Height are the preferred (ideal) frame size in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Device pins a specific capture device index. -1 lets the backend pick
	// based on FacingMode.
	Device int `json:"device"`

	// Audio is never requested; kept so constraints round-trip with browser clients.
	Audio bool `json:"audio"`
}

// DefaultConstraints returns the document-capture defaults: rear camera at 1920x1080.
func DefaultConstraints() Constraints {
	return Constraints{
		FacingMode: FacingEnvironment,
		Width:      1920,
		Height:     1080,
		Device:     -1,
	}
}

// Validate checks if the constraint values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Constraints) Validate() []string {
	var errors []string

	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between %d and %d", MinWidth, MaxWidth))
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between %d and %d", MinHeight, MaxHeight))
	}
	switch c.FacingMode {
	case FacingEnvironment, FacingUser, FacingAny:
	default:
		errors = append(errors, "facing_mode must be environment, user, or empty")
	}
	if c.Device < -1 {
		errors = append(errors, "device must be -1 (auto) or a device index")
	}
	if c.Audio {
		errors = append(errors, "audio capture is not supported")
	}

	return errors
}

// Pixels returns the preferred frame area.
func (c Constraints) Pixels() int {
	return c.Width * c.Height
}
