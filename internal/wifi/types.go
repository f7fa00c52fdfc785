package wifi

// Security classifies a network's authentication scheme.
type Security int

const (
	SecurityOpen Security = iota
	SecurityWEP
	SecurityWPA
	SecurityWPA2
	SecurityWPAWPA2
	SecurityWPA3
	SecurityUnknown
)

// String returns the display name for the security classification.
func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "Open"
	case SecurityWEP:
		return "WEP"
	case SecurityWPA:
		return "WPA"
	case SecurityWPA2:
		return "WPA2"
	case SecurityWPAWPA2:
		return "WPA/WPA2"
	case SecurityWPA3:
		return "WPA3"
	default:
		return "Unknown"
	}
}

// Network is a single scan result. Immutable once produced by a scan.
type Network struct {
	SSID     string
	RSSI     int8
	Security Security
}

// StateTag identifies the connection state machine position.
type StateTag int

const (
	StateIdle StateTag = iota
	StateScanning
	StateConnecting
	StateConnected
	StateRetrying
	StateFailed
)

// String returns the display name for the state tag.
func (t StateTag) String() string {
	switch t {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateRetrying:
		return "Retrying"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Status is a point-in-time snapshot of the connection state.
// SSID, Address and RSSI are only meaningful when State is StateConnected.
type Status struct {
	State   StateTag
	SSID    string
	Address string
	RSSI    int8
	Retries int
}
