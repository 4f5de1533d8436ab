package capture

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hotmic/internal/plugin"
)

type fakeResolver struct {
	active  map[int]bool
	default_ int
}

func (f fakeResolver) IsActive(id int) bool { return f.active[id] }
func (f fakeResolver) DefaultDevice() int   { return f.default_ }

func TestBindCreatesCapture(t *testing.T) {
	m := NewManager(fakeResolver{active: map[int]bool{1: true}}, 16, 4)
	c, err := m.Bind(0, 1, plugin.ModeSum)
	require.NoError(t, err)
	require.Equal(t, 1, c.DeviceID)
	require.Same(t, c, m.Get(0))
}

func TestBindRejectsDuplicateDevice(t *testing.T) {
	m := NewManager(fakeResolver{active: map[int]bool{1: true}}, 16, 4)
	_, err := m.Bind(0, 1, plugin.ModeSum)
	require.NoError(t, err)

	_, err = m.Bind(1, 1, plugin.ModeSum)
	require.ErrorIs(t, err, ErrDuplicateBinding)
	require.Nil(t, m.Get(1))
}

func TestRebindingSameChannelFreesOldDevice(t *testing.T) {
	m := NewManager(fakeResolver{active: map[int]bool{1: true, 2: true}}, 16, 4)
	_, err := m.Bind(0, 1, plugin.ModeSum)
	require.NoError(t, err)

	_, err = m.Bind(0, 2, plugin.ModeSum)
	require.NoError(t, err)

	// Device 1 is now free for another channel.
	_, err = m.Bind(1, 1, plugin.ModeSum)
	require.NoError(t, err)
}

func TestBindFallsBackToDefaultWhenDeviceInactive(t *testing.T) {
	m := NewManager(fakeResolver{active: map[int]bool{}, default_: 9}, 16, 4)
	c, err := m.Bind(0, 5, plugin.ModeSum)
	require.NoError(t, err)
	require.Equal(t, 9, c.DeviceID)
}

func TestUnbindFreesDeviceForReuse(t *testing.T) {
	m := NewManager(fakeResolver{active: map[int]bool{1: true}}, 16, 4)
	_, err := m.Bind(0, 1, plugin.ModeSum)
	require.NoError(t, err)

	m.Unbind(0)
	require.Nil(t, m.Get(0))

	_, err = m.Bind(1, 1, plugin.ModeSum)
	require.NoError(t, err)
}

func TestReResolveRebindsInvalidatedDevice(t *testing.T) {
	resolver := &mutableResolver{active: map[int]bool{1: true}}
	m := NewManager(resolver, 16, 4)
	_, err := m.Bind(0, 1, plugin.ModeSum)
	require.NoError(t, err)

	resolver.active[1] = false
	resolver.def = 7
	m.ReResolve()

	require.Equal(t, 7, m.Get(0).DeviceID)
}

type mutableResolver struct {
	active map[int]bool
	def    int
}

func (r *mutableResolver) IsActive(id int) bool { return r.active[id] }
func (r *mutableResolver) DefaultDevice() int   { return r.def }
