package camera

import (
	"errors"
	"testing"
)

func TestDefaultConstraints(t *testing.T) {
	c := DefaultConstraints()
	if c.FacingMode != FacingEnvironment {
		t.Errorf("FacingMode = %q, want environment", c.FacingMode)
	}
	if c.Width != 1920 || c.Height != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", c.Width, c.Height)
	}
	if errs := c.Validate(); len(errs) != 0 {
		t.Errorf("default constraints invalid: %v", errs)
	}
}

func TestConstraintsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Constraints)
	}{
		{"tiny width", func(c *Constraints) { c.Width = 10 }},
		{"huge height", func(c *Constraints) { c.Height = 10000 }},
		{"bad facing", func(c *Constraints) { c.FacingMode = "sideways" }},
		{"bad device", func(c *Constraints) { c.Device = -5 }},
		{"audio", func(c *Constraints) { c.Audio = true }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConstraints()
			tc.mutate(&c)
			if errs := c.Validate(); len(errs) == 0 {
				t.Error("expected validation errors")
			}
		})
	}
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range PresetNames() {
		p := GetPreset(name)
		if p == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := p.Validate(); len(errs) != 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
	if GetPreset("nope") != nil {
		t.Error("unknown preset should be nil")
	}
}

func TestManagerUpdate(t *testing.T) {
	m := NewManager()

	var applied Constraints
	m.OnChange = func(c Constraints) error {
		applied = c
		return nil
	}

	if err := m.Update(map[string]interface{}{"preset": Preset720p, "device": float64(2)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := m.Get()
	if got.Width != 1280 || got.Height != 720 || got.Device != 2 {
		t.Errorf("got %+v", got)
	}
	if applied != got {
		t.Errorf("OnChange saw %+v, want %+v", applied, got)
	}

	if err := m.Update(map[string]interface{}{"width": 5}); err == nil {
		t.Error("expected validation error")
	}
	if m.Get().Width != 1280 {
		t.Error("invalid update must not be stored")
	}

	if err := m.Update(map[string]interface{}{"preset": "nope"}); err == nil {
		t.Error("expected unknown preset error")
	}
}

func TestManagerCallbackError(t *testing.T) {
	m := NewManager()
	m.OnChange = func(Constraints) error { return errors.New("busy") }
	if err := m.Set(HD720Constraints()); err == nil {
		t.Error("expected callback error to surface")
	}
}

func TestNewManagerWithPreset(t *testing.T) {
	m, err := NewManagerWithPreset(PresetSelfie)
	if err != nil {
		t.Fatal(err)
	}
	if m.Get().FacingMode != FacingUser {
		t.Errorf("FacingMode = %q", m.Get().FacingMode)
	}
	if _, err := NewManagerWithPreset("bogus"); err == nil {
		t.Error("expected error")
	}
	if m.JSON()["width"] != float64(1920) {
		t.Errorf("JSON width = %v", m.JSON()["width"])
	}
}
