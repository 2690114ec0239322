package irrigation

import (
	"sync"
)

// Manager keeps one armed coordinator per growspace.
type Manager struct {
	source   SettingsSource
	actuator Actuator
	opts     []Option

	mu     sync.Mutex
	coords map[string]*Coordinator
}

// NewManager constructs a manager. The options are applied to every
// coordinator it creates.
func NewManager(source SettingsSource, actuator Actuator, opts ...Option) *Manager {
	return &Manager{
		source:   source,
		actuator: actuator,
		opts:     opts,
		coords:   make(map[string]*Coordinator),
	}
}

// Ensure arms the coordinator of a growspace, creating it on first use.
// Call after any schedule or settings change.
func (m *Manager) Ensure(growspaceID string) *Coordinator {
	m.mu.Lock()
	c, ok := m.coords[growspaceID]
	if !ok {
		c = NewCoordinator(growspaceID, m.source, m.actuator, m.opts...)
		m.coords[growspaceID] = c
	}
	m.mu.Unlock()
	c.Arm()
	return c
}

// Remove shuts down and forgets the coordinator of a growspace.
func (m *Manager) Remove(growspaceID string) {
	m.mu.Lock()
	c, ok := m.coords[growspaceID]
	delete(m.coords, growspaceID)
	m.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Close shuts down all coordinators.
func (m *Manager) Close() {
	m.mu.Lock()
	coords := make([]*Coordinator, 0, len(m.coords))
	for _, c := range m.coords {
		coords = append(coords, c)
	}
	m.coords = make(map[string]*Coordinator)
	m.mu.Unlock()
	for _, c := range coords {
		c.Close()
	}
}
