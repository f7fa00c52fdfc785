package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBackend records writes and can fail individual pins.
type mockBackend struct {
	levels     map[int]int
	configured map[int]bool
	writeErrs  map[int]error
	writes     int
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		levels:     make(map[int]int),
		configured: make(map[int]bool),
		writeErrs:  make(map[int]error),
	}
}

func (b *mockBackend) ConfigureOutput(pin int) error {
	b.configured[pin] = true
	b.levels[pin] = 0
	return nil
}

func (b *mockBackend) Write(pin, level int) error {
	if err := b.writeErrs[pin]; err != nil {
		return err
	}
	b.writes++
	b.levels[pin] = level
	return nil
}

func testChannels() []Channel {
	return []Channel{{ID: 1, Pin: 17}, {ID: 2, Pin: 27}}
}

func TestNewManagerConfiguresPins(t *testing.T) {
	b := newMockBackend()
	m, err := NewManager(b, testChannels())
	require.NoError(t, err)

	assert.True(t, b.configured[17])
	assert.True(t, b.configured[27])
	assert.Equal(t, []int{1, 2}, m.IDs())
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	b := newMockBackend()

	_, err := NewManager(b, nil)
	assert.Error(t, err)

	_, err = NewManager(b, []Channel{{ID: 1, Pin: 17}, {ID: 1, Pin: 27}})
	assert.Error(t, err)

	_, err = NewManager(b, []Channel{{ID: All, Pin: 17}})
	assert.Error(t, err)
}

func TestSetStateSingle(t *testing.T) {
	b := newMockBackend()
	m, err := NewManager(b, testChannels())
	require.NoError(t, err)

	require.NoError(t, m.SetState(1, true))
	assert.Equal(t, 1, b.levels[17])
	assert.Equal(t, 0, b.levels[27])

	on, err := m.State(1)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestSetStateUnknownChannel(t *testing.T) {
	b := newMockBackend()
	m, err := NewManager(b, testChannels())
	require.NoError(t, err)

	assert.ErrorIs(t, m.SetState(9, true), ErrUnknownChannel)
	_, err = m.State(9)
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestSwitchCountOnlyOnChange(t *testing.T) {
	b := newMockBackend()
	m, err := NewManager(b, testChannels())
	require.NoError(t, err)

	require.NoError(t, m.SetState(1, true))
	require.NoError(t, m.SetState(1, true)) // no change, no write
	require.NoError(t, m.SetState(1, false))

	assert.Equal(t, 2, b.writes)
	assert.Contains(t, m.DebugStatus(), "Relay 1 (pin 17): OFF, 2 switches")
	assert.Contains(t, m.DebugStatus(), "Total operations: 3")
}

func TestSetStateAllFansOut(t *testing.T) {
	b := newMockBackend()
	m, err := NewManager(b, testChannels())
	require.NoError(t, err)

	require.NoError(t, m.SetState(All, true))
	assert.Equal(t, 1, b.levels[17])
	assert.Equal(t, 1, b.levels[27])
}

func TestSetStateAllContinuesPastFailure(t *testing.T) {
	b := newMockBackend()
	m, err := NewManager(b, testChannels())
	require.NoError(t, err)

	b.writeErrs[17] = errors.New("stuck pin")

	err = m.SetState(All, true)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "relay 1")

	// The sibling still switched.
	assert.Equal(t, 1, b.levels[27])
	on, _ := m.State(2)
	assert.True(t, on)
	on, _ = m.State(1)
	assert.False(t, on)
}

func TestToggleAllWithMixedStates(t *testing.T) {
	b := newMockBackend()
	m, err := NewManager(b, testChannels())
	require.NoError(t, err)

	require.NoError(t, m.SetState(1, true)) // 1 ON, 2 OFF

	require.NoError(t, m.Toggle(All))

	on1, _ := m.State(1)
	on2, _ := m.State(2)
	assert.False(t, on1)
	assert.True(t, on2)

	// Each channel switched exactly once more.
	dbg := m.DebugStatus()
	assert.Contains(t, dbg, "Relay 1 (pin 17): OFF, 2 switches")
	assert.Contains(t, dbg, "Relay 2 (pin 27): ON, 1 switches")
}

func TestStatusRendering(t *testing.T) {
	b := newMockBackend()
	m, err := NewManager(b, testChannels())
	require.NoError(t, err)

	require.NoError(t, m.SetState(2, true))
	assert.Equal(t, "Relay 1: OFF\nRelay 2: ON", m.Status())
}

func TestShutdownForcesOff(t *testing.T) {
	b := newMockBackend()
	m, err := NewManager(b, testChannels())
	require.NoError(t, err)

	require.NoError(t, m.SetState(All, true))
	m.Shutdown()

	assert.Equal(t, 0, b.levels[17])
	assert.Equal(t, 0, b.levels[27])
	on1, _ := m.State(1)
	on2, _ := m.State(2)
	assert.False(t, on1)
	assert.False(t, on2)
}
