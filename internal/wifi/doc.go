// Package wifi manages the Wi-Fi station connection lifecycle.
//
// The Manager owns all connection state: the current state tag, the last
// scan's network list, the retry counter, and the last-known address. It is
// driven from two directions at once: foreground callers block inside Scan,
// Connect and Disconnect, while the Driver delivers asynchronous radio
// events (scan completion, link loss, address acquisition) from its own
// goroutine. All shared state is guarded by a single mutex, and blocking
// operations wait with a timeout on a channel that only the event path
// signals.
//
// # Scan
//
// Scan clears previous results, issues a scan request, and blocks until the
// driver reports completion or ScanTimeout elapses. Completed results are
// filtered (empty SSIDs dropped), capped at MaxNetworks, and stably sorted
// by signal strength, strongest first.
//
// # Connect and automatic retry
//
// Connect blocks until the link is fully up (address acquired), the retry
// budget is exhausted, or ConnectTimeout elapses. When an established link
// drops, the Manager reconnects automatically; after MaxRetry consecutive
// link losses with no intervening address acquisition the connection is
// marked Failed and no further attempts are made. Reconnect attempts are
// issued immediately with no inter-attempt delay.
//
// # Drivers
//
// The Driver interface abstracts the platform radio. A wpa_supplicant D-Bus
// driver is provided for Linux hosts; tests use an in-memory fake. Drivers
// must deliver events asynchronously, never from within a request call.
package wifi
