package bleuart

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/fieldlink/stationd/internal/logging"
)

const defaultAdapterPath = dbus.ObjectPath("/org/bluez/hci0")

// ErrNoClient indicates an outbound send with no attached client.
var ErrNoClient = fmt.Errorf("no client attached")

// Handler processes one inbound command line and returns the response to
// send back. It may block; the server invokes it off the bus goroutine.
type Handler func(line string) string

// Device is one result of a surrounding-device scan.
type Device struct {
	Name    string
	Address string
	RSSI    int16
}

// Server is the BLE side of the command console: a GATT application
// registered with BlueZ plus the advertising and connection bookkeeping
// around it.
type Server struct {
	mu  sync.Mutex
	log *zap.Logger

	conn    *dbus.Conn
	adapter dbus.ObjectPath
	app     *application

	deviceName   string
	advName      string // name captured at last advertising start
	fragmentSize int
	handler      Handler

	started     bool
	advertising bool
	notifying   bool
	client      dbus.ObjectPath

	rxCommands  uint64
	txFragments uint64
}

// NewServer creates a server that will advertise under deviceName and
// fragment outbound responses to at most fragmentSize bytes.
func NewServer(deviceName string, fragmentSize int) *Server {
	if fragmentSize <= 0 {
		fragmentSize = DefaultFragmentSize
	}
	return &Server{
		log:          logging.GetLogger(),
		adapter:      defaultAdapterPath,
		deviceName:   deviceName,
		fragmentSize: fragmentSize,
	}
}

// SetHandler installs the inbound command handler. Must be called before
// Start.
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Start connects to the system bus, exports the GATT tree and registers
// it with BlueZ. It does not start advertising.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}
	s.conn = conn

	s.app = newApplication()
	if err := s.exportTree(); err != nil {
		return err
	}

	adapter := conn.Object(busName, s.adapter)
	call := adapter.Call(gattManagerIface+".RegisterApplication", 0,
		appPath, map[string]dbus.Variant{})
	if call.Err != nil {
		return fmt.Errorf("register GATT application: %w", call.Err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace("/org/bluez"),
	); err != nil {
		return fmt.Errorf("subscribe to device signals: %w", err)
	}
	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	go s.watchSignals(signals)

	s.started = true
	s.log.Info("BLE console registered", zap.String("name", s.deviceName))
	return nil
}

// exportTree exports the application, service, characteristics and their
// property handlers. Caller holds mu.
func (s *Server) exportTree() error {
	exports := []struct {
		obj   interface{}
		path  dbus.ObjectPath
		iface string
	}{
		{s.app, appPath, omIface},
		{&propsOf{serviceIface, s.app.tree[servicePath][serviceIface]}, servicePath, propsIface},
		{&rxCharacteristic{srv: s}, rxCharPath, charIface},
		{&propsOf{charIface, s.app.tree[rxCharPath][charIface]}, rxCharPath, propsIface},
		{&txCharacteristic{srv: s}, txCharPath, charIface},
		{&propsOf{charIface, s.app.tree[txCharPath][charIface]}, txCharPath, propsIface},
	}
	for _, e := range exports {
		if err := s.conn.Export(e.obj, e.path, e.iface); err != nil {
			return fmt.Errorf("export %s at %s: %w", e.iface, e.path, err)
		}
	}
	return nil
}

// StartAdvertising registers an LE advertisement carrying the current
// device name. The name is captured here; a later SetDeviceName takes
// effect on the next call.
func (s *Server) StartAdvertising() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startAdvertisingLocked()
}

func (s *Server) startAdvertisingLocked() error {
	if !s.started {
		return fmt.Errorf("server not started")
	}
	if s.advertising && s.advName == s.deviceName {
		return nil
	}

	adv := newAdvertisement(s.deviceName)
	if err := s.conn.Export(adv, advPath, advIface); err != nil {
		return fmt.Errorf("export advertisement: %w", err)
	}
	if err := s.conn.Export(adv, advPath, propsIface); err != nil {
		return fmt.Errorf("export advertisement properties: %w", err)
	}

	adapter := s.conn.Object(busName, s.adapter)
	// A previous instance may still be registered after a reconnect cycle.
	adapter.Call(advManagerIface+".UnregisterAdvertisement", 0, advPath)

	call := adapter.Call(advManagerIface+".RegisterAdvertisement", 0,
		advPath, map[string]dbus.Variant{})
	if call.Err != nil {
		return fmt.Errorf("register advertisement: %w", call.Err)
	}

	s.advertising = true
	s.advName = s.deviceName
	s.log.Info("advertising", zap.String("name", s.advName))
	return nil
}

// StopAdvertising unregisters the advertisement. Already-stopped is a
// no-op success.
func (s *Server) StopAdvertising() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.advertising {
		return nil
	}

	adapter := s.conn.Object(busName, s.adapter)
	call := adapter.Call(advManagerIface+".UnregisterAdvertisement", 0, advPath)
	if call.Err != nil {
		return fmt.Errorf("unregister advertisement: %w", call.Err)
	}

	s.advertising = false
	s.log.Info("advertising stopped")
	return nil
}

// Advertising reports whether the advertisement is registered.
func (s *Server) Advertising() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advertising
}

// Connected reports whether a client is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != ""
}

// DeviceName returns the configured advertising name.
func (s *Server) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceName
}

// SetDeviceName changes the advertising name. The change takes effect
// the next time advertising starts.
func (s *Server) SetDeviceName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceName = name
}

// Send fragments the response and emits one notification per fragment,
// in order. Sends are serialized by the server mutex.
func (s *Server) Send(response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return fmt.Errorf("server not started")
	}
	if s.client == "" {
		return ErrNoClient
	}

	for _, frag := range Fragment([]byte(response), s.fragmentSize) {
		if err := s.conn.Emit(txCharPath,
			propsIface+".PropertiesChanged",
			charIface,
			map[string]dbus.Variant{"Value": dbus.MakeVariant(frag)},
			[]string{},
		); err != nil {
			return fmt.Errorf("notify failed: %w", err)
		}
		s.txFragments++
	}
	return nil
}

// handleWrite is called from the bus on every inbound characteristic
// write. One write carries one command line; the handler may block, so
// it runs on its own goroutine and the response goes back through Send.
func (s *Server) handleWrite(value []byte, device dbus.ObjectPath) {
	line := strings.TrimRight(string(value), "\r\n")

	s.mu.Lock()
	if device != "" && s.client != device {
		s.client = device
		s.log.Info("client attached", zap.String("device", string(device)))
	}
	s.rxCommands++
	handler := s.handler
	s.mu.Unlock()

	s.log.Debug("command received", zap.String("line", line))
	logging.LogRawBytes("ble rx", value)

	if handler == nil {
		return
	}

	go func() {
		response := handler(line)
		if err := s.Send(response); err != nil {
			s.log.Warn("response not delivered", zap.Error(err))
		}
	}()
}

// setNotifying tracks the client's notification subscription.
func (s *Server) setNotifying(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifying = on
}

// watchSignals watches for the attached client dropping the connection
// and re-advertises so the console stays reachable.
func (s *Server) watchSignals(signals chan *dbus.Signal) {
	for sig := range signals {
		if sig.Name != propsIface+".PropertiesChanged" || len(sig.Body) < 2 {
			continue
		}
		iface, _ := sig.Body[0].(string)
		if iface != deviceIface {
			continue
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			continue
		}
		v, ok := changed["Connected"]
		if !ok {
			continue
		}
		connected, _ := v.Value().(bool)
		if connected {
			continue
		}

		s.mu.Lock()
		if sig.Path != s.client {
			s.mu.Unlock()
			continue
		}
		s.log.Info("client detached", zap.String("device", string(sig.Path)))
		s.client = ""
		s.notifying = false
		if s.advertising {
			// Re-register so the next client can find us.
			s.advertising = false
			if err := s.startAdvertisingLocked(); err != nil {
				s.log.Error("re-advertise failed", zap.Error(err))
			}
		}
		s.mu.Unlock()
	}
}

// Scan discovers surrounding LE devices for the given duration.
func (s *Server) Scan(duration time.Duration) ([]Device, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, fmt.Errorf("server not started")
	}
	conn := s.conn
	adapterPath := s.adapter
	s.mu.Unlock()

	adapter := conn.Object(busName, adapterPath)
	adapter.Call(adapterIface+".SetDiscoveryFilter", 0, map[string]dbus.Variant{
		"Transport": dbus.MakeVariant("le"),
	})
	if call := adapter.Call(adapterIface+".StartDiscovery", 0); call.Err != nil {
		return nil, fmt.Errorf("start discovery: %w", call.Err)
	}
	time.Sleep(duration)
	adapter.Call(adapterIface+".StopDiscovery", 0)

	var objects objectTree
	root := conn.Object(busName, "/")
	if err := root.Call(omIface+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var devices []Device
	for path, ifaces := range objects {
		props, ok := ifaces[deviceIface]
		if !ok || !strings.HasPrefix(string(path), string(adapterPath)+"/") {
			continue
		}
		var d Device
		if v, ok := props["Address"]; ok {
			d.Address, _ = v.Value().(string)
		}
		if v, ok := props["Name"]; ok {
			d.Name, _ = v.Value().(string)
		}
		if v, ok := props["RSSI"]; ok {
			d.RSSI, _ = v.Value().(int16)
		}
		if d.Address == "" {
			continue
		}
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].RSSI > devices[j].RSSI })
	return devices, nil
}

// DebugStatus renders internal bookkeeping for the ble_debug command.
func (s *Server) DebugStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("BLE debug:")
	fmt.Fprintf(&b, "\n  Started: %v", s.started)
	fmt.Fprintf(&b, "\n  Advertising: %v (name %q)", s.advertising, s.advName)
	fmt.Fprintf(&b, "\n  Client: %s", orNone(string(s.client)))
	fmt.Fprintf(&b, "\n  Notifying: %v", s.notifying)
	fmt.Fprintf(&b, "\n  Fragment size: %d", s.fragmentSize)
	fmt.Fprintf(&b, "\n  Commands received: %d", s.rxCommands)
	fmt.Fprintf(&b, "\n  Fragments sent: %d", s.txFragments)
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
