package wifi

// EventKind identifies an asynchronous radio notification.
type EventKind int

const (
	// EventScanComplete carries the raw scan results.
	EventScanComplete EventKind = iota
	// EventLinkUp signals the association was established (no address yet).
	EventLinkUp
	// EventLinkDown signals the association was lost.
	EventLinkDown
	// EventAddressAcquired signals the link is fully up with an address.
	EventAddressAcquired
)

// Event is an asynchronous notification from the radio driver.
type Event struct {
	Kind EventKind

	// Networks holds the raw scan results for EventScanComplete. The
	// Manager filters, caps and sorts them; drivers deliver them as seen.
	Networks []Network

	// Addr and RSSI accompany EventAddressAcquired.
	Addr string
	RSSI int8
}

// Driver abstracts the platform radio. Request methods return once the
// request has been issued; completion arrives as an Event.
//
// Drivers must deliver events from their own goroutine, never synchronously
// from within a request call: the Manager's event handler takes the same
// lock the request paths hold.
type Driver interface {
	// Init performs one-time radio bring-up.
	Init() error

	// Subscribe registers the single event handler. Must be called before
	// Init; later calls replace the handler.
	Subscribe(handler func(Event))

	// StartScan issues a scan request. Completion arrives as
	// EventScanComplete.
	StartScan() error

	// Connect issues a connection request for the given network. Progress
	// arrives as EventLinkUp / EventAddressAcquired / EventLinkDown.
	Connect(ssid, password string) error

	// Reconnect reissues the last connection request. Used by the
	// automatic retry path after a link loss.
	Reconnect() error

	// Disconnect tears down the current association.
	Disconnect() error
}
