package capture

import (
	"errors"
	"sync"

	"hotmic/internal/plugin"
)

// ErrDuplicateBinding is returned when a device id is already bound to
// another channel.
var ErrDuplicateBinding = errors.New("capture: device already bound to another channel")

// DeviceResolver abstracts device enumeration so the manager can resolve a
// stored device id against currently active devices without depending on a
// concrete audio backend. A real host wires this to
// github.com/gordonklaus/portaudio's device list; tests use a fake.
type DeviceResolver interface {
	// IsActive reports whether deviceID currently names an active device.
	IsActive(deviceID int) bool
	// DefaultDevice returns the platform default capture device id.
	DefaultDevice() int
}

// Manager owns the per-channel Capture registry and enforces that no two
// channels bind the same device id.
//
// The registry is mutated from the UI thread (Bind/Unbind/ReResolve, under
// Engine's graphMu) while Get is called concurrently from every capture
// (device) thread — so the map itself needs its own lock distinct from
// graphMu. The audio thread never calls Get: it reads capture pointers
// off the routing snapshot, which the engine resolves through Get at
// snapshot construction. Individual Capture values are never replaced
// after Bind, only their contents mutated through their own atomics, so
// Get's caller may hold the returned pointer across the lock.
type Manager struct {
	mu sync.RWMutex

	resolver DeviceResolver
	captures map[int]*Capture // channel id -> capture
	bindings map[int]int      // device id -> channel id
	ringCap  int
	scratch  int
}

// NewManager returns an empty Manager. ringCapacity and scratchCapacity
// size every Capture created through Bind.
func NewManager(resolver DeviceResolver, ringCapacity, scratchCapacity int) *Manager {
	return &Manager{
		resolver: resolver,
		captures: make(map[int]*Capture),
		bindings: make(map[int]int),
		ringCap:  ringCapacity,
		scratch:  scratchCapacity,
	}
}

// Bind creates (or rebinds) channelID's capture to deviceID with the given
// down-mix mode. If deviceID is already bound to a different channel,
// Bind returns ErrDuplicateBinding and leaves the existing binding
// untouched — the later binding attempt is rejected.
func (m *Manager) Bind(channelID, deviceID int, mode plugin.ChannelMode) (*Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingChannel, ok := m.bindings[deviceID]; ok && existingChannel != channelID {
		return nil, ErrDuplicateBinding
	}

	resolved := m.resolveDevice(deviceID)

	if prevCap, ok := m.captures[channelID]; ok {
		delete(m.bindings, prevCap.DeviceID)
	}

	c := New(resolved, mode, m.ringCap, m.scratch)
	m.captures[channelID] = c
	m.bindings[resolved] = channelID
	return c, nil
}

// resolveDevice returns deviceID if it currently names an active device,
// otherwise falls back to the resolver's default device.
func (m *Manager) resolveDevice(deviceID int) int {
	if m.resolver == nil || m.resolver.IsActive(deviceID) {
		return deviceID
	}
	return m.resolver.DefaultDevice()
}

// Unbind removes channelID's capture binding entirely.
func (m *Manager) Unbind(channelID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.captures[channelID]; ok {
		delete(m.bindings, c.DeviceID)
		delete(m.captures, channelID)
	}
}

// Get returns channelID's Capture, or nil if unbound. Safe to call from
// any capture (device) thread concurrently with a UI thread's Bind/Unbind.
// Not for the audio thread — it takes the registry lock; the audio thread
// reads captures off its routing snapshot instead.
func (m *Manager) Get(channelID int) *Capture {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.captures[channelID]
}

// ReResolve re-resolves every bound channel's device id against the
// resolver, used by the device recovery task after a device list change.
// Channels whose device id is no longer active are rebound to the
// resolver's default device.
func (m *Manager) ReResolve() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for channelID, c := range m.captures {
		resolved := m.resolveDevice(c.DeviceID)
		if resolved != c.DeviceID {
			delete(m.bindings, c.DeviceID)
			c.DeviceID = resolved
			m.bindings[resolved] = channelID
		}
	}
}

// ClearAll discards all buffered samples across every bound capture, used
// on preset pause.
func (m *Manager) ClearAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.captures {
		c.Clear()
	}
}
