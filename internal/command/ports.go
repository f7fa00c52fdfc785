package command

import (
	"time"

	"github.com/fieldlink/stationd/internal/bleuart"
	"github.com/fieldlink/stationd/internal/wifi"
)

// The router sees its collaborators through narrow interfaces so tests
// can substitute fakes. A nil collaborator renders a "not available"
// response instead of failing.

// Wireless is the connection manager surface the router needs.
type Wireless interface {
	Scan() ([]wifi.Network, error)
	Connect(ssid, password string) error
	Disconnect() error
	Status() wifi.Status
	Networks() []wifi.Network
}

// Actuators is the relay manager surface the router needs.
type Actuators interface {
	SetState(id int, on bool) error
	Toggle(id int) error
	Status() string
	DebugStatus() string
}

// Transport is the BLE server surface the router needs.
type Transport interface {
	StartAdvertising() error
	StopAdvertising() error
	Advertising() bool
	Connected() bool
	DeviceName() string
	SetDeviceName(name string)
	Scan(duration time.Duration) ([]bleuart.Device, error)
	DebugStatus() string
}

// Announcer publishes presence after a successful connect and withdraws
// it on disconnect.
type Announcer interface {
	Announce(ssid, addr string) error
	Withdraw()
}
