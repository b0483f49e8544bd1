package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the constraints used the next time a stream is opened.
type Manager struct {
	constraints Constraints
	mu          sync.RWMutex

	// Callback when constraints change (e.g. to reopen a live stream)
	OnChange func(c Constraints) error
}

// NewManager creates a manager with the default constraints.
func NewManager() *Manager {
	return &Manager{constraints: DefaultConstraints()}
}

// NewManagerWithPreset creates a manager starting from a named preset.
func NewManagerWithPreset(name string) (*Manager, error) {
	p := GetPreset(name)
	if p == nil {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	return &Manager{constraints: *p}, nil
}

// Get returns the current constraints.
func (m *Manager) Get() Constraints {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.constraints
}

// Set validates and stores new constraints.
func (m *Manager) Set(c Constraints) error {
	if errs := c.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	m.mu.Lock()
	m.constraints = c
	callback := m.OnChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(c); err != nil {
			return fmt.Errorf("failed to apply constraints: %w", err)
		}
	}
	return nil
}

// Update applies a partial update. A "preset" key replaces the base before
// the remaining keys are applied.
func (m *Manager) Update(params map[string]interface{}) error {
	c := m.Get()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		c = *preset
	}

	for key, value := range params {
		switch key {
		case "width":
			if v, ok := toInt(value); ok {
				c.Width = v
			}
		case "height":
			if v, ok := toInt(value); ok {
				c.Height = v
			}
		case "device":
			if v, ok := toInt(value); ok {
				c.Device = v
			}
		case "facing_mode":
			if v, ok := value.(string); ok {
				c.FacingMode = FacingMode(v)
			}
		}
	}

	return m.Set(c)
}

// JSON returns the current constraints as a generic map.
func (m *Manager) JSON() map[string]interface{} {
	data, _ := json.Marshal(m.Get())
	var result map[string]interface{}
	_ = json.Unmarshal(data, &result)
	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
