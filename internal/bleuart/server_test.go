package bleuart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundWriteDispatchesOneLine(t *testing.T) {
	s := NewServer("station", DefaultFragmentSize)

	lines := make(chan string, 1)
	s.SetHandler(func(line string) string {
		lines <- line
		return "ok"
	})

	s.handleWrite([]byte("status\r\n"), "/org/bluez/hci0/dev_AA")

	select {
	case line := <-lines:
		assert.Equal(t, "status", line)
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}

	assert.True(t, s.Connected())
}

func TestInboundWriteWithoutHandler(t *testing.T) {
	s := NewServer("station", DefaultFragmentSize)
	// Must not panic.
	s.handleWrite([]byte("scan"), "/org/bluez/hci0/dev_AA")
	assert.True(t, s.Connected())
}

func TestSendRequiresClient(t *testing.T) {
	s := NewServer("station", DefaultFragmentSize)
	s.started = true

	err := s.Send("hello")
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestDeviceNameTakesEffectOnNextStart(t *testing.T) {
	s := NewServer("station", DefaultFragmentSize)

	require.Equal(t, "station", s.DeviceName())
	s.SetDeviceName("field-unit")
	assert.Equal(t, "field-unit", s.DeviceName())

	// The advertised name is only captured when advertising starts.
	assert.Empty(t, s.advName)
}

func TestFragmentSizeFallback(t *testing.T) {
	s := NewServer("station", -1)
	assert.Equal(t, DefaultFragmentSize, s.fragmentSize)
}

func TestDebugStatusRendering(t *testing.T) {
	s := NewServer("station", 128)
	s.handleWrite([]byte("help"), "/org/bluez/hci0/dev_AA")

	dbg := s.DebugStatus()
	assert.Contains(t, dbg, "Fragment size: 128")
	assert.Contains(t, dbg, "Commands received: 1")
	assert.Contains(t, dbg, "dev_AA")
}
