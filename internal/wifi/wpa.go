package wifi

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/fieldlink/stationd/internal/logging"
)

const (
	wpaBusName      = "fi.w1.wpa_supplicant1"
	wpaObjectPath   = dbus.ObjectPath("/fi/w1/wpa_supplicant1")
	wpaIface        = "fi.w1.wpa_supplicant1"
	wpaIfaceIface   = "fi.w1.wpa_supplicant1.Interface"
	wpaBSSIface     = "fi.w1.wpa_supplicant1.BSS"
	dbusPropsIface  = "org.freedesktop.DBus.Properties"
	dbusPropsSignal = "org.freedesktop.DBus.Properties.PropertiesChanged"
	scanDoneSignal  = wpaIfaceIface + ".ScanDone"

	// addressPollInterval paces the IPv4 acquisition poll after the
	// supplicant reports a completed association.
	addressPollInterval = 500 * time.Millisecond
	addressPollBudget   = 15 * time.Second
)

// WPADriver implements Driver against wpa_supplicant's D-Bus control
// interface on the system bus. Address acquisition is detected by polling
// the kernel interface for an IPv4 address once the supplicant reports the
// association completed (DHCP itself is outside the supplicant).
type WPADriver struct {
	ifname  string
	log     *zap.Logger
	conn    *dbus.Conn
	ifPath  dbus.ObjectPath
	handler func(Event)

	// lastState tracks the supplicant State property so transient states
	// ("associating", "4way_handshake") don't produce spurious link-down
	// notifications.
	lastState string
}

// NewWPADriver creates a driver for the given wireless interface name.
func NewWPADriver(ifname string) *WPADriver {
	return &WPADriver{
		ifname: ifname,
		log:    logging.GetLogger(),
	}
}

// Subscribe registers the event handler. Must precede Init.
func (d *WPADriver) Subscribe(handler func(Event)) {
	d.handler = handler
}

// Init connects to the system bus, resolves (or creates) the supplicant
// interface object and starts the signal pump.
func (d *WPADriver) Init() error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}
	d.conn = conn

	path, err := d.resolveInterface()
	if err != nil {
		conn.Close()
		return err
	}
	d.ifPath = path

	// Match rules for scan completion and interface property changes.
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(wpaIfaceIface),
		dbus.WithMatchMember("ScanDone"),
		dbus.WithMatchObjectPath(d.ifPath),
	); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe ScanDone: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(dbusPropsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(d.ifPath),
	); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe PropertiesChanged: %w", err)
	}

	sigCh := make(chan *dbus.Signal, 16)
	conn.Signal(sigCh)
	go d.pump(sigCh)

	d.log.Info("wpa_supplicant driver ready",
		zap.String("interface", d.ifname),
		zap.String("path", string(d.ifPath)))
	return nil
}

// resolveInterface asks the supplicant for the interface object, creating
// it when the supplicant doesn't manage the interface yet.
func (d *WPADriver) resolveInterface() (dbus.ObjectPath, error) {
	root := d.conn.Object(wpaBusName, wpaObjectPath)

	var path dbus.ObjectPath
	err := root.Call(wpaIface+".GetInterface", 0, d.ifname).Store(&path)
	if err == nil {
		return path, nil
	}

	args := map[string]interface{}{"Ifname": d.ifname}
	if err := root.Call(wpaIface+".CreateInterface", 0, args).Store(&path); err != nil {
		return "", fmt.Errorf("interface %s not available from wpa_supplicant: %w", d.ifname, err)
	}
	return path, nil
}

// StartScan issues an active scan request.
func (d *WPADriver) StartScan() error {
	obj := d.conn.Object(wpaBusName, d.ifPath)
	args := map[string]interface{}{"Type": "active"}
	if err := obj.Call(wpaIfaceIface+".Scan", 0, args).Err; err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

// Connect replaces any configured network with the target and selects it.
func (d *WPADriver) Connect(ssid, password string) error {
	obj := d.conn.Object(wpaBusName, d.ifPath)

	if err := obj.Call(wpaIfaceIface+".RemoveAllNetworks", 0).Err; err != nil {
		return fmt.Errorf("remove networks: %w", err)
	}

	args := map[string]interface{}{"ssid": ssid}
	if password == "" {
		args["key_mgmt"] = "NONE"
	} else {
		args["psk"] = password
	}

	var netPath dbus.ObjectPath
	if err := obj.Call(wpaIfaceIface+".AddNetwork", 0, args).Store(&netPath); err != nil {
		return fmt.Errorf("add network: %w", err)
	}
	if err := obj.Call(wpaIfaceIface+".SelectNetwork", 0, netPath).Err; err != nil {
		return fmt.Errorf("select network: %w", err)
	}
	return nil
}

// Reconnect reissues the connection attempt for the selected network.
func (d *WPADriver) Reconnect() error {
	obj := d.conn.Object(wpaBusName, d.ifPath)
	if err := obj.Call(wpaIfaceIface+".Reconnect", 0).Err; err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	return nil
}

// Disconnect tears down the current association.
func (d *WPADriver) Disconnect() error {
	obj := d.conn.Object(wpaBusName, d.ifPath)
	if err := obj.Call(wpaIfaceIface+".Disconnect", 0).Err; err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// pump translates D-Bus signals into driver events on its own goroutine.
func (d *WPADriver) pump(sigCh chan *dbus.Signal) {
	for sig := range sigCh {
		switch sig.Name {
		case scanDoneSignal:
			d.emit(Event{Kind: EventScanComplete, Networks: d.collectScanResults()})

		case dbusPropsSignal:
			if len(sig.Body) < 2 {
				continue
			}
			// Interface property changes arrive on the interface object;
			// only the supplicant State matters here.
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			stateVar, ok := changed["State"]
			if !ok {
				continue
			}
			state, ok := stateVar.Value().(string)
			if !ok {
				continue
			}
			d.handleStateChange(state)
		}
	}
}

// handleStateChange maps supplicant states onto link events.
func (d *WPADriver) handleStateChange(state string) {
	prev := d.lastState
	d.lastState = state
	d.log.Debug("supplicant state change",
		zap.String("from", prev),
		zap.String("to", state))

	switch state {
	case "completed":
		d.emit(Event{Kind: EventLinkUp})
		go d.awaitAddress()
	case "disconnected":
		if prev == "completed" || prev == "disconnected" || prev == "" {
			d.emit(Event{Kind: EventLinkDown})
		} else if strings.HasPrefix(prev, "assoc") || prev == "4way_handshake" || prev == "group_handshake" || prev == "scanning" || prev == "authenticating" {
			// An attempt that never completed still counts as a loss for
			// the retry machinery.
			d.emit(Event{Kind: EventLinkDown})
		}
	}
}

// awaitAddress polls the kernel interface for an IPv4 address after a
// completed association and emits EventAddressAcquired once one appears.
func (d *WPADriver) awaitAddress() {
	deadline := time.Now().Add(addressPollBudget)
	for time.Now().Before(deadline) {
		if addr := interfaceIPv4(d.ifname); addr != "" {
			d.emit(Event{
				Kind: EventAddressAcquired,
				Addr: addr,
				RSSI: d.signalStrength(),
			})
			return
		}
		time.Sleep(addressPollInterval)
	}
	d.log.Warn("no address acquired after association", zap.String("interface", d.ifname))
}

// signalStrength reads the current RSSI via SignalPoll. Returns 0 when the
// supplicant can't report it.
func (d *WPADriver) signalStrength() int8 {
	obj := d.conn.Object(wpaBusName, d.ifPath)
	var out map[string]dbus.Variant
	if err := obj.Call(wpaIfaceIface+".SignalPoll", 0).Store(&out); err != nil {
		return 0
	}
	if v, ok := out["rssi"]; ok {
		if rssi, ok := v.Value().(int32); ok {
			return int8(rssi)
		}
	}
	return 0
}

// collectScanResults reads the interface's BSS list and converts each
// entry to a Network record. Filtering and ordering are the Manager's job.
func (d *WPADriver) collectScanResults() []Network {
	paths, err := d.getBSSPaths()
	if err != nil {
		d.log.Error("read BSS list failed", zap.Error(err))
		return nil
	}

	nets := make([]Network, 0, len(paths))
	for _, p := range paths {
		n, err := d.readBSS(p)
		if err != nil {
			d.log.Debug("skipping BSS", zap.String("path", string(p)), zap.Error(err))
			continue
		}
		nets = append(nets, n)
	}
	return nets
}

func (d *WPADriver) getBSSPaths() ([]dbus.ObjectPath, error) {
	obj := d.conn.Object(wpaBusName, d.ifPath)
	var v dbus.Variant
	if err := obj.Call(dbusPropsIface+".Get", 0, wpaIfaceIface, "BSSs").Store(&v); err != nil {
		return nil, err
	}
	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("BSSs property has unexpected type %T", v.Value())
	}
	return paths, nil
}

// readBSS reads one BSS object's SSID, signal level and security
// classification.
func (d *WPADriver) readBSS(path dbus.ObjectPath) (Network, error) {
	obj := d.conn.Object(wpaBusName, path)

	var props map[string]dbus.Variant
	if err := obj.Call(dbusPropsIface+".GetAll", 0, wpaBSSIface).Store(&props); err != nil {
		return Network{}, err
	}

	var n Network
	if v, ok := props["SSID"]; ok {
		if raw, ok := v.Value().([]byte); ok {
			n.SSID = string(raw)
		}
	}
	if v, ok := props["Signal"]; ok {
		if sig, ok := v.Value().(int16); ok {
			n.RSSI = clampRSSI(sig)
		}
	}
	n.Security = classifySecurity(props)
	return n, nil
}

// classifySecurity maps the BSS RSN/WPA/Privacy properties onto the closed
// Security enum.
func classifySecurity(props map[string]dbus.Variant) Security {
	rsnKeyMgmt := keyMgmt(props, "RSN")
	wpaKeyMgmt := keyMgmt(props, "WPA")

	for _, km := range rsnKeyMgmt {
		if strings.Contains(km, "sae") {
			return SecurityWPA3
		}
	}

	switch {
	case len(rsnKeyMgmt) > 0 && len(wpaKeyMgmt) > 0:
		return SecurityWPAWPA2
	case len(rsnKeyMgmt) > 0:
		return SecurityWPA2
	case len(wpaKeyMgmt) > 0:
		return SecurityWPA
	}

	if v, ok := props["Privacy"]; ok {
		if privacy, ok := v.Value().(bool); ok && privacy {
			return SecurityWEP
		}
	}
	return SecurityOpen
}

// keyMgmt extracts the KeyMgmt list from the RSN or WPA property dict.
func keyMgmt(props map[string]dbus.Variant, field string) []string {
	v, ok := props[field]
	if !ok {
		return nil
	}
	dict, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil
	}
	kmVar, ok := dict["KeyMgmt"]
	if !ok {
		return nil
	}
	km, ok := kmVar.Value().([]string)
	if !ok {
		return nil
	}
	return km
}

func clampRSSI(sig int16) int8 {
	if sig < -128 {
		return -128
	}
	if sig > 127 {
		return 127
	}
	return int8(sig)
}

// interfaceIPv4 returns the first global IPv4 address on the named
// interface, or "" when none is assigned.
func interfaceIPv4(name string) string {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ip4.IsLinkLocalUnicast() {
			continue
		}
		return ip4.String()
	}
	return ""
}

func (d *WPADriver) emit(e Event) {
	if d.handler != nil {
		d.handler(e)
	}
}
