package command

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlink/stationd/internal/bleuart"
	"github.com/fieldlink/stationd/internal/relay"
	"github.com/fieldlink/stationd/internal/wifi"
)

type fakeWireless struct {
	networks   []wifi.Network
	scanErr    error
	connectErr error
	status     wifi.Status

	connectCalls []string // "ssid/password"
	disconnects  int
}

func (f *fakeWireless) Scan() ([]wifi.Network, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return f.networks, nil
}

func (f *fakeWireless) Connect(ssid, password string) error {
	f.connectCalls = append(f.connectCalls, ssid+"/"+password)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.status = wifi.Status{State: wifi.StateConnected, SSID: ssid, Address: "10.0.0.5", RSSI: -50}
	return nil
}

func (f *fakeWireless) Disconnect() error {
	f.disconnects++
	f.status = wifi.Status{State: wifi.StateIdle}
	return nil
}

func (f *fakeWireless) Status() wifi.Status      { return f.status }
func (f *fakeWireless) Networks() []wifi.Network { return f.networks }

type fakeActuators struct {
	setCalls    []string // "id=on"
	toggleCalls []int
	failSet     error
}

func (f *fakeActuators) SetState(id int, on bool) error {
	f.setCalls = append(f.setCalls, fmt.Sprintf("%d=%v", id, on))
	return f.failSet
}

func (f *fakeActuators) Toggle(id int) error {
	f.toggleCalls = append(f.toggleCalls, id)
	return nil
}

func (f *fakeActuators) Status() string      { return "Relay 1: OFF\nRelay 2: OFF" }
func (f *fakeActuators) DebugStatus() string { return "Relay debug:" }

type fakeTransport struct {
	advertising  bool
	name         string
	scanDuration time.Duration
	devices      []bleuart.Device
}

func (f *fakeTransport) StartAdvertising() error { f.advertising = true; return nil }
func (f *fakeTransport) StopAdvertising() error  { f.advertising = false; return nil }
func (f *fakeTransport) Advertising() bool       { return f.advertising }
func (f *fakeTransport) Connected() bool         { return false }
func (f *fakeTransport) DeviceName() string      { return f.name }
func (f *fakeTransport) SetDeviceName(n string)  { f.name = n }
func (f *fakeTransport) DebugStatus() string     { return "BLE debug:" }

func (f *fakeTransport) Scan(duration time.Duration) ([]bleuart.Device, error) {
	f.scanDuration = duration
	return f.devices, nil
}

type fakeAnnouncer struct {
	announced []string
	withdraws int
}

func (f *fakeAnnouncer) Announce(ssid, addr string) error {
	f.announced = append(f.announced, ssid+"@"+addr)
	return nil
}

func (f *fakeAnnouncer) Withdraw() { f.withdraws++ }

func dispatch(r *Router, line string) string {
	return r.Dispatch(ParseLine(line), Interactive)
}

func TestEmptyLinePrompts(t *testing.T) {
	r := NewRouter(&fakeWireless{}, nil, nil, nil)
	resp := r.Dispatch(nil, Interactive)
	assert.Contains(t, resp, "Enter a command")
}

func TestUnknownCommandEchoesLiteral(t *testing.T) {
	r := NewRouter(&fakeWireless{}, nil, nil, nil)
	resp := dispatch(r, "frobnicate now")
	assert.Contains(t, resp, "Unknown command: 'frobnicate'")
}

func TestAliasesResolve(t *testing.T) {
	w := &fakeWireless{status: wifi.Status{State: wifi.StateIdle}}
	r := NewRouter(w, nil, nil, nil)

	long := dispatch(r, "status")
	short := dispatch(r, "st")
	upper := dispatch(r, "STATUS")
	assert.Equal(t, long, short)
	assert.Equal(t, long, upper)
}

func TestListBeforeScan(t *testing.T) {
	r := NewRouter(&fakeWireless{}, nil, nil, nil)
	resp := dispatch(r, "list")
	assert.Equal(t, "No networks available. Run 'scan' first.", resp)
}

func TestScanRendersNetworks(t *testing.T) {
	w := &fakeWireless{networks: []wifi.Network{
		{SSID: "HomeNet", RSSI: -45, Security: wifi.SecurityWPA2},
		{SSID: "CoffeeShop", RSSI: -60, Security: wifi.SecurityOpen},
	}}
	r := NewRouter(w, nil, nil, nil)

	resp := dispatch(r, "scan")
	assert.Contains(t, resp, "Found 2 networks")
	assert.Contains(t, resp, "[0] HomeNet (WPA2, RSSI: -45 dBm)")
	assert.Contains(t, resp, "[1] CoffeeShop (Open, RSSI: -60 dBm)")
}

func TestScanErrorsRender(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{wifi.ErrBusy, "Another operation is in progress"},
		{wifi.ErrTimeout, "Scan timed out"},
		{errors.New("driver exploded"), "Failed to scan"},
	}
	for _, tt := range tests {
		r := NewRouter(&fakeWireless{scanErr: tt.err}, nil, nil, nil)
		assert.Contains(t, dispatch(r, "scan"), tt.want)
	}
}

func TestConnectUsage(t *testing.T) {
	r := NewRouter(&fakeWireless{}, nil, nil, nil)
	resp := dispatch(r, "connect")
	assert.Contains(t, resp, "Usage: connect")
}

func TestConnectWithCredentials(t *testing.T) {
	w := &fakeWireless{}
	a := &fakeAnnouncer{}
	r := NewRouter(w, nil, nil, a)

	resp := dispatch(r, "connect HomeNet hunter2")
	assert.Contains(t, resp, "Connected to: HomeNet")
	assert.Contains(t, resp, "10.0.0.5")
	require.Len(t, w.connectCalls, 1)
	assert.Equal(t, "HomeNet/hunter2", w.connectCalls[0])
	assert.Equal(t, []string{"HomeNet@10.0.0.5"}, a.announced)
}

func TestConnectByIndexOpenOnly(t *testing.T) {
	w := &fakeWireless{networks: []wifi.Network{
		{SSID: "Secured", RSSI: -45, Security: wifi.SecurityWPA2},
		{SSID: "OpenNet", RSSI: -60, Security: wifi.SecurityOpen},
	}}
	r := NewRouter(w, nil, nil, nil)

	resp := dispatch(r, "connect 0")
	assert.Contains(t, resp, "requires a password")
	assert.Empty(t, w.connectCalls)

	resp = dispatch(r, "connect 1")
	assert.Contains(t, resp, "Connected to: OpenNet")
	require.Len(t, w.connectCalls, 1)
	assert.Equal(t, "OpenNet/", w.connectCalls[0])
}

func TestConnectByIndexBounds(t *testing.T) {
	w := &fakeWireless{networks: []wifi.Network{
		{SSID: "OpenNet", Security: wifi.SecurityOpen},
	}}
	r := NewRouter(w, nil, nil, nil)

	assert.Contains(t, dispatch(r, "connect 5"), "out of range")

	empty := NewRouter(&fakeWireless{}, nil, nil, nil)
	assert.Contains(t, dispatch(empty, "connect 0"), "Run 'scan' first")
}

func TestConnectFailureRenders(t *testing.T) {
	w := &fakeWireless{connectErr: wifi.ErrConnectFailed}
	r := NewRouter(w, nil, nil, nil)
	resp := dispatch(r, "connect HomeNet wrong")
	assert.Contains(t, resp, "Failed to connect to: HomeNet")
}

func TestDisconnectPaths(t *testing.T) {
	w := &fakeWireless{status: wifi.Status{State: wifi.StateIdle}}
	a := &fakeAnnouncer{}
	r := NewRouter(w, nil, nil, a)

	assert.Equal(t, "Not connected to any network.", dispatch(r, "disconnect"))
	assert.Zero(t, w.disconnects)

	w.status = wifi.Status{State: wifi.StateConnected, SSID: "HomeNet"}
	resp := dispatch(r, "disconnect")
	assert.Equal(t, "Disconnected from HomeNet.", resp)
	assert.Equal(t, 1, w.disconnects)
	assert.Equal(t, 1, a.withdraws)
}

func TestBLEScanDurationFallback(t *testing.T) {
	tests := []struct {
		arg  string
		want time.Duration
	}{
		{"", 5 * time.Second},
		{"abc", 5 * time.Second},
		{"0", 5 * time.Second},
		{"90", 5 * time.Second},
		{"10", 10 * time.Second},
		{"1", 1 * time.Second},
		{"60", 60 * time.Second},
	}
	for _, tt := range tests {
		tr := &fakeTransport{}
		r := NewRouter(nil, nil, tr, nil)
		line := "ble_scan"
		if tt.arg != "" {
			line += " " + tt.arg
		}
		dispatch(r, line)
		assert.Equal(t, tt.want, tr.scanDuration, "arg %q", tt.arg)
	}
}

func TestBLEScanRendersDevices(t *testing.T) {
	tr := &fakeTransport{devices: []bleuart.Device{
		{Name: "headset", Address: "AA:BB:CC:DD:EE:FF", RSSI: -40},
		{Address: "11:22:33:44:55:66", RSSI: -70},
	}}
	r := NewRouter(nil, nil, tr, nil)

	resp := dispatch(r, "ble_scan")
	assert.Contains(t, resp, "Found 2 devices")
	assert.Contains(t, resp, "headset (AA:BB:CC:DD:EE:FF) -40 dBm")
	assert.Contains(t, resp, "(unnamed) (11:22:33:44:55:66) -70 dBm")
}

func TestBLENameTakesEffectLater(t *testing.T) {
	tr := &fakeTransport{name: "station"}
	r := NewRouter(nil, nil, tr, nil)

	resp := dispatch(r, "ble_name field-unit-1")
	assert.Contains(t, resp, "BLE device name set to: field-unit-1")
	assert.Contains(t, resp, "next advertising start")
	assert.Equal(t, "field-unit-1", tr.name)

	assert.Contains(t, dispatch(r, "ble_name"), "Usage: ble_name")
}

func TestBLEStartStop(t *testing.T) {
	tr := &fakeTransport{name: "station"}
	r := NewRouter(nil, nil, tr, nil)

	resp := dispatch(r, "ble_start")
	assert.Contains(t, resp, "BLE advertising started")
	assert.True(t, tr.advertising)

	resp = dispatch(r, "bp")
	assert.Contains(t, resp, "BLE advertising stopped")
	assert.False(t, tr.advertising)
}

func TestRelayDefaultsToAll(t *testing.T) {
	a := &fakeActuators{}
	r := NewRouter(nil, a, nil, nil)

	dispatch(r, "relay_on")
	dispatch(r, "relay_off 2")
	dispatch(r, "relay_toggle all")

	assert.Equal(t, []string{fmt.Sprintf("%d=true", relay.All), "2=false"}, a.setCalls)
	assert.Equal(t, []int{relay.All}, a.toggleCalls)
}

func TestRelayInvalidChannel(t *testing.T) {
	a := &fakeActuators{}
	r := NewRouter(nil, a, nil, nil)
	resp := dispatch(r, "relay_on two")
	assert.Contains(t, resp, "Invalid relay channel: 'two'")
	assert.Empty(t, a.setCalls)
}

func TestRelayFailureIncludesStatus(t *testing.T) {
	a := &fakeActuators{failSet: errors.New("stuck pin")}
	r := NewRouter(nil, a, nil, nil)
	resp := dispatch(r, "relay_on 1")
	assert.Contains(t, resp, "Relay operation failed")
	assert.Contains(t, resp, "Relay 1: OFF")
}

func TestNilCollaborators(t *testing.T) {
	r := NewRouter(nil, nil, nil, nil)

	assert.Equal(t, "Wireless manager not available.", dispatch(r, "scan"))
	assert.Equal(t, "BLE transport not available.", dispatch(r, "ble_start"))
	assert.Equal(t, "Relay manager not available.", dispatch(r, "relay_status"))
}

func TestDispatchEquivalentAcrossOrigins(t *testing.T) {
	lines := []string{"scan", "connect HomeNet pw", "relay_toggle 1", "status", "disconnect"}

	run := func(origin Origin) ([]string, *fakeWireless, *fakeActuators) {
		w := &fakeWireless{networks: []wifi.Network{{SSID: "HomeNet", Security: wifi.SecurityWPA2}}}
		a := &fakeActuators{}
		r := NewRouter(w, a, nil, nil)
		var responses []string
		for _, line := range lines {
			responses = append(responses, r.Dispatch(ParseLine(line), origin))
		}
		return responses, w, a
	}

	consoleResp, consoleW, consoleA := run(Interactive)
	bleResp, bleW, bleA := run(SecondaryChannel)

	assert.Equal(t, consoleResp, bleResp)
	assert.Equal(t, consoleW.connectCalls, bleW.connectCalls)
	assert.Equal(t, consoleW.disconnects, bleW.disconnects)
	assert.Equal(t, consoleA.toggleCalls, bleA.toggleCalls)
}
