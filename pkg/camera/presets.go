package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	Preset4K      = "4k"
	PresetSelfie  = "selfie"
)

// Presets returns all available preset constraints.
func Presets() map[string]Constraints {
	return map[string]Constraints{
		PresetDefault: DefaultConstraints(),
		Preset720p:    HD720Constraints(),
		Preset1080p:   DefaultConstraints(),
		Preset4K:      UHD4KConstraints(),
		PresetSelfie:  SelfieConstraints(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		Preset720p,
		Preset1080p,
		Preset4K,
		PresetSelfie,
	}
}

// GetPreset returns a preset by name, or nil if not found.
func GetPreset(name string) *Constraints {
	if c, ok := Presets()[name]; ok {
		return &c
	}
	return nil
}

// HD720Constraints asks for 720p from the rear camera.
// Useful on devices that stutter at 1080p.
func HD720Constraints() Constraints {
	c := DefaultConstraints()
	c.Width = 1280
	c.Height = 720
	return c
}

// UHD4KConstraints asks for 4K. Frames are still downscaled before upload.
func UHD4KConstraints() Constraints {
	c := DefaultConstraints()
	c.Width = 3840
	c.Height = 2160
	return c
}

// SelfieConstraints prefers the front camera.
func SelfieConstraints() Constraints {
	c := DefaultConstraints()
	c.FacingMode = FacingUser
	return c
}
