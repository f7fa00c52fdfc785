package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldlink/stationd/internal/logging"
	"github.com/fieldlink/stationd/internal/relay"
	"github.com/fieldlink/stationd/internal/wifi"
)

// Origin identifies the channel a command arrived on. Dispatch behaves
// identically for both; it is carried for logging only.
type Origin int

const (
	// Interactive is the line-oriented console.
	Interactive Origin = iota
	// SecondaryChannel is the BLE transport.
	SecondaryChannel
)

func (o Origin) String() string {
	if o == SecondaryChannel {
		return "ble"
	}
	return "console"
}

const (
	// BLE scan duration bounds, seconds. Out-of-range or non-numeric
	// input falls back to the default rather than failing the command.
	defaultScanDuration = 5
	minScanDuration     = 1
	maxScanDuration     = 60
)

// Router dispatches parsed command lines to its collaborators.
type Router struct {
	log       *zap.Logger
	wireless  Wireless
	relays    Actuators
	transport Transport
	announcer Announcer
}

// NewRouter wires the router to its collaborators. Any of them may be
// nil; the corresponding commands respond with "not available".
func NewRouter(wireless Wireless, relays Actuators, transport Transport, announcer Announcer) *Router {
	return &Router{
		log:       logging.GetLogger(),
		wireless:  wireless,
		relays:    relays,
		transport: transport,
		announcer: announcer,
	}
}

// Dispatch resolves the verb and runs the handler. It always returns
// exactly one response string, never panics and never returns empty
// output for a recognized command.
func (r *Router) Dispatch(tokens []string, origin Origin) string {
	if len(tokens) == 0 {
		return "Enter a command. Type 'help' for available commands."
	}

	verb := strings.ToLower(tokens[0])
	args := tokens[1:]

	r.log.Debug("dispatch",
		zap.String("verb", verb),
		zap.Int("args", len(args)),
		zap.Stringer("origin", origin))

	switch verb {
	case "help", "h":
		return helpText
	case "scan", "s":
		return r.handleScan()
	case "list", "l":
		return r.handleList()
	case "connect", "c":
		return r.handleConnect(args)
	case "status", "st":
		return r.handleStatus()
	case "disconnect", "d":
		return r.handleDisconnect()
	case "ble_start", "bs":
		return r.handleBLEStart()
	case "ble_stop", "bp":
		return r.handleBLEStop()
	case "ble_status", "bt":
		return r.handleBLEStatus()
	case "ble_name", "bn":
		return r.handleBLEName(args)
	case "ble_scan", "bsc":
		return r.handleBLEScan(args)
	case "ble_debug", "bd":
		return r.handleBLEDebug()
	case "relay_on", "ro":
		return r.handleRelaySet(args, true)
	case "relay_off", "rf":
		return r.handleRelaySet(args, false)
	case "relay_toggle", "rt":
		return r.handleRelayToggle(args)
	case "relay_status", "rs":
		return r.handleRelayStatus()
	case "relay_debug", "rd":
		return r.handleRelayDebug()
	}

	return fmt.Sprintf("Unknown command: '%s'. Type 'help' for available commands.", tokens[0])
}

const helpText = `=== Available Commands ===

--- WiFi Commands ---
help, h                     - Show this help message
scan, s                     - Scan for available WiFi networks
list, l                     - List previously scanned networks
connect, c <ssid> <pass>    - Connect to a WiFi network
connect, c <index>          - Connect to an open network by index
status, st                  - Show current connection status
disconnect, d               - Disconnect from current network

--- BLE Commands ---
ble_start, bs               - Start BLE advertising
ble_stop, bp                - Stop BLE advertising
ble_status, bt              - Show BLE status
ble_name, bn <name>         - Set BLE device name
ble_scan, bsc [duration]    - Scan for BLE devices (default: 5s)
ble_debug, bd               - Show detailed BLE debug info

--- Relay Commands ---
relay_on, ro [channel]      - Switch relay on (default: all)
relay_off, rf [channel]     - Switch relay off (default: all)
relay_toggle, rt [channel]  - Toggle relay (default: all)
relay_status, rs            - Show relay states
relay_debug, rd             - Show relay debug info`

func (r *Router) handleScan() string {
	if r.wireless == nil {
		return "Wireless manager not available."
	}

	nets, err := r.wireless.Scan()
	switch {
	case errors.Is(err, wifi.ErrBusy):
		return "Another operation is in progress. Try again shortly."
	case errors.Is(err, wifi.ErrTimeout):
		return "Scan timed out. Please try again."
	case err != nil:
		return "Failed to scan for WiFi networks. Please try again."
	case len(nets) == 0:
		return "No WiFi networks found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scan completed. Found %d networks:\n\n", len(nets))
	writeNetworkList(&b, nets)
	b.WriteString("\nUse 'connect <index>' to connect to an open network.")
	return b.String()
}

func (r *Router) handleList() string {
	if r.wireless == nil {
		return "Wireless manager not available."
	}

	nets := r.wireless.Networks()
	if len(nets) == 0 {
		return "No networks available. Run 'scan' first."
	}

	var b strings.Builder
	b.WriteString("Previously scanned networks:\n\n")
	writeNetworkList(&b, nets)
	b.WriteString("\nUse 'connect <index>' to connect to an open network.")
	return b.String()
}

func writeNetworkList(b *strings.Builder, nets []wifi.Network) {
	for i, n := range nets {
		fmt.Fprintf(b, "  [%d] %s (%s, RSSI: %d dBm)\n", i, n.SSID, n.Security, n.RSSI)
	}
}

func (r *Router) handleConnect(args []string) string {
	if r.wireless == nil {
		return "Wireless manager not available."
	}
	if len(args) == 0 {
		return "Usage: connect <ssid> <password>\n       connect <index>\nUse 'list' to see available networks."
	}

	var ssid, password string
	if len(args) == 1 {
		index, ok := parseDigits(args[0])
		if !ok {
			return "Usage: connect <ssid> <password>\n       connect <index>\nUse 'list' to see available networks."
		}

		nets := r.wireless.Networks()
		if len(nets) == 0 {
			return "No networks available. Run 'scan' first."
		}
		if index >= len(nets) {
			return "Network index out of range. Use 'list' to see available networks."
		}
		target := nets[index]
		if target.Security != wifi.SecurityOpen {
			return fmt.Sprintf("'%s' requires a password. Use: connect <ssid> <password>", target.SSID)
		}
		ssid = target.SSID
	} else {
		ssid = args[0]
		password = args[1]
	}

	err := r.wireless.Connect(ssid, password)
	switch {
	case errors.Is(err, wifi.ErrInvalidArgument):
		return fmt.Sprintf("Invalid network name: %v", err)
	case errors.Is(err, wifi.ErrBusy):
		return "Another operation is in progress. Try again shortly."
	case errors.Is(err, wifi.ErrTimeout):
		return fmt.Sprintf("Connection to '%s' timed out.", ssid)
	case err != nil:
		return fmt.Sprintf("Failed to connect to: %s\nPlease check the network name and password.", ssid)
	}

	st := r.wireless.Status()
	if r.announcer != nil {
		if aerr := r.announcer.Announce(st.SSID, st.Address); aerr != nil {
			r.log.Warn("announce failed", zap.Error(aerr))
		}
	}
	return fmt.Sprintf("Connected to: %s\nIP Address: %s\nSignal Strength: %d dBm",
		st.SSID, st.Address, st.RSSI)
}

func (r *Router) handleStatus() string {
	if r.wireless == nil {
		return "Wireless manager not available."
	}

	st := r.wireless.Status()
	if st.State == wifi.StateConnected {
		return fmt.Sprintf("Status: Connected\nNetwork: %s\nIP Address: %s\nSignal Strength: %d dBm",
			st.SSID, st.Address, st.RSSI)
	}
	return fmt.Sprintf("Status: %s\nNo active WiFi connection.", st.State)
}

func (r *Router) handleDisconnect() string {
	if r.wireless == nil {
		return "Wireless manager not available."
	}

	st := r.wireless.Status()
	if st.State != wifi.StateConnected {
		return "Not connected to any network."
	}

	ssid := st.SSID
	if err := r.wireless.Disconnect(); err != nil {
		return fmt.Sprintf("Failed to disconnect from %s.", ssid)
	}
	if r.announcer != nil {
		r.announcer.Withdraw()
	}
	return fmt.Sprintf("Disconnected from %s.", ssid)
}

func (r *Router) handleBLEStart() string {
	if r.transport == nil {
		return "BLE transport not available."
	}
	if err := r.transport.StartAdvertising(); err != nil {
		return fmt.Sprintf("Failed to start BLE advertising: %v", err)
	}
	return fmt.Sprintf("BLE advertising started.\nDevice name: %s", r.transport.DeviceName())
}

func (r *Router) handleBLEStop() string {
	if r.transport == nil {
		return "BLE transport not available."
	}
	if err := r.transport.StopAdvertising(); err != nil {
		return fmt.Sprintf("Failed to stop BLE advertising: %v", err)
	}
	return "BLE advertising stopped."
}

func (r *Router) handleBLEStatus() string {
	if r.transport == nil {
		return "BLE transport not available."
	}
	return fmt.Sprintf("=== BLE Status ===\nAdvertising: %s\nConnected: %s\nDevice Name: %s\n\nUse 'ble_debug' for detailed info.",
		yesNo(r.transport.Advertising()),
		yesNo(r.transport.Connected()),
		r.transport.DeviceName())
}

func (r *Router) handleBLEName(args []string) string {
	if r.transport == nil {
		return "BLE transport not available."
	}
	if len(args) == 0 {
		return "Usage: ble_name <device_name>\nExample: ble_name field-unit-1"
	}
	r.transport.SetDeviceName(args[0])
	return fmt.Sprintf("BLE device name set to: %s\nNote: Name change takes effect on next advertising start.", args[0])
}

func (r *Router) handleBLEScan(args []string) string {
	if r.transport == nil {
		return "BLE transport not available."
	}

	duration := defaultScanDuration
	if len(args) > 0 {
		if n, ok := parseDigits(args[0]); ok && n >= minScanDuration && n <= maxScanDuration {
			duration = n
		}
	}

	devices, err := r.transport.Scan(time.Duration(duration) * time.Second)
	if err != nil {
		return fmt.Sprintf("Failed to scan for BLE devices: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scan completed. Found %d devices:\n", len(devices))
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "  %s (%s) %d dBm\n", name, d.Address, d.RSSI)
	}
	if len(devices) == 0 {
		b.WriteString("No BLE devices found.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) handleBLEDebug() string {
	if r.transport == nil {
		return "BLE transport not available."
	}
	return r.transport.DebugStatus()
}

// relayTarget parses the optional channel argument; omitted means every
// channel.
func relayTarget(args []string) (int, bool) {
	if len(args) == 0 || strings.EqualFold(args[0], "all") {
		return relay.All, true
	}
	id, ok := parseDigits(args[0])
	if !ok {
		return 0, false
	}
	return id, true
}

func (r *Router) handleRelaySet(args []string, on bool) string {
	if r.relays == nil {
		return "Relay manager not available."
	}
	id, ok := relayTarget(args)
	if !ok {
		return fmt.Sprintf("Invalid relay channel: '%s'. Use a channel number or 'all'.", args[0])
	}
	if err := r.relays.SetState(id, on); err != nil {
		return fmt.Sprintf("Relay operation failed: %v\n%s", err, r.relays.Status())
	}
	return r.relays.Status()
}

func (r *Router) handleRelayToggle(args []string) string {
	if r.relays == nil {
		return "Relay manager not available."
	}
	id, ok := relayTarget(args)
	if !ok {
		return fmt.Sprintf("Invalid relay channel: '%s'. Use a channel number or 'all'.", args[0])
	}
	if err := r.relays.Toggle(id); err != nil {
		return fmt.Sprintf("Relay operation failed: %v\n%s", err, r.relays.Status())
	}
	return r.relays.Status()
}

func (r *Router) handleRelayStatus() string {
	if r.relays == nil {
		return "Relay manager not available."
	}
	return r.relays.Status()
}

func (r *Router) handleRelayDebug() string {
	if r.relays == nil {
		return "Relay manager not available."
	}
	return r.relays.DebugStatus()
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
