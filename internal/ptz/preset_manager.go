package ptz

import "sync"

// PresetManager owns the fixed, device-enumerated list of presets and
// the sweep cursor into it. Design Note 9's one-way ownership: a
// Controller holds a *PresetManager and calls its methods, but nothing
// else is handed a reference that could mutate it out from under the
// controller's own locking discipline.
type PresetManager struct {
	mu      sync.Mutex
	presets []Preset
	sweep   int
}

// NewPresetManager builds a PresetManager over presets in the order the
// device (or static configuration) enumerates them.
func NewPresetManager(presets []Preset) *PresetManager {
	return &PresetManager{presets: presets}
}

// Len reports how many presets are known.
func (m *PresetManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.presets)
}

// All returns a copy of the known presets, in enumerated order.
func (m *PresetManager) All() []Preset {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Preset, len(m.presets))
	copy(out, m.presets)
	return out
}

// Next advances the sweep cursor and returns the token of the next
// preset to visit, wrapping at the end of the list.
func (m *PresetManager) Next() (token string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.presets) == 0 {
		return "", false
	}
	m.sweep = (m.sweep + 1) % len(m.presets)
	return m.presets[m.sweep].Token, true
}

// Reset rewinds the sweep cursor to the first preset.
func (m *PresetManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep = 0
}
