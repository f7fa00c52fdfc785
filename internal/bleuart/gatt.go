package bleuart

import (
	"github.com/godbus/dbus/v5"
)

const (
	busName      = "org.bluez"
	adapterIface = "org.bluez.Adapter1"
	deviceIface  = "org.bluez.Device1"
	propsIface   = "org.freedesktop.DBus.Properties"
	omIface      = "org.freedesktop.DBus.ObjectManager"

	gattManagerIface = "org.bluez.GattManager1"
	serviceIface     = "org.bluez.GattService1"
	charIface        = "org.bluez.GattCharacteristic1"

	advManagerIface = "org.bluez.LEAdvertisingManager1"
	advIface        = "org.bluez.LEAdvertisement1"

	// UART-style service: one write characteristic inbound, one notify
	// characteristic outbound.
	ServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	RXCharUUID  = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	TXCharUUID  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"

	appPath     = dbus.ObjectPath("/com/fieldlink/stationd")
	servicePath = appPath + "/service0"
	rxCharPath  = servicePath + "/char0"
	txCharPath  = servicePath + "/char1"
	advPath     = appPath + "/advertisement0"
)

// objectTree is the managed-object tree handed to BlueZ at application
// registration.
type objectTree map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// application answers ObjectManager calls for the exported GATT tree.
type application struct {
	tree objectTree
}

func newApplication() *application {
	return &application{tree: objectTree{
		servicePath: {
			serviceIface: {
				"UUID":    dbus.MakeVariant(ServiceUUID),
				"Primary": dbus.MakeVariant(true),
			},
		},
		rxCharPath: {
			charIface: {
				"UUID":    dbus.MakeVariant(RXCharUUID),
				"Service": dbus.MakeVariant(servicePath),
				"Flags":   dbus.MakeVariant([]string{"write", "write-without-response"}),
			},
		},
		txCharPath: {
			charIface: {
				"UUID":    dbus.MakeVariant(TXCharUUID),
				"Service": dbus.MakeVariant(servicePath),
				"Flags":   dbus.MakeVariant([]string{"notify"}),
			},
		},
	}}
}

func (a *application) GetManagedObjects() (objectTree, *dbus.Error) {
	return a.tree, nil
}

// propsOf serves Properties.Get/GetAll for one exported object.
type propsOf struct {
	iface string
	props map[string]dbus.Variant
}

func (p *propsOf) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	if iface != p.iface {
		return dbus.Variant{}, dbus.MakeFailedError(errUnknownInterface(iface))
	}
	v, ok := p.props[name]
	if !ok {
		return dbus.Variant{}, dbus.MakeFailedError(errUnknownProperty(name))
	}
	return v, nil
}

func (p *propsOf) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != p.iface {
		return nil, dbus.MakeFailedError(errUnknownInterface(iface))
	}
	return p.props, nil
}

// rxCharacteristic receives inbound command lines.
type rxCharacteristic struct {
	srv *Server
}

func (c *rxCharacteristic) WriteValue(value []byte, options map[string]dbus.Variant) *dbus.Error {
	var device dbus.ObjectPath
	if v, ok := options["device"]; ok {
		device, _ = v.Value().(dbus.ObjectPath)
	}
	c.srv.handleWrite(value, device)
	return nil
}

// txCharacteristic carries outbound response fragments as notifications.
type txCharacteristic struct {
	srv *Server
}

func (c *txCharacteristic) StartNotify() *dbus.Error {
	c.srv.setNotifying(true)
	return nil
}

func (c *txCharacteristic) StopNotify() *dbus.Error {
	c.srv.setNotifying(false)
	return nil
}

// advertisement is the LE advertisement object. BlueZ reads its
// properties through the Properties interface.
type advertisement struct {
	props map[string]dbus.Variant
}

func newAdvertisement(localName string) *advertisement {
	return &advertisement{props: map[string]dbus.Variant{
		"Type":         dbus.MakeVariant("peripheral"),
		"ServiceUUIDs": dbus.MakeVariant([]string{ServiceUUID}),
		"LocalName":    dbus.MakeVariant(localName),
		"Includes":     dbus.MakeVariant([]string{"tx-power"}),
	}}
}

func (a *advertisement) Release() *dbus.Error { return nil }

func (a *advertisement) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	if iface != advIface {
		return dbus.Variant{}, dbus.MakeFailedError(errUnknownInterface(iface))
	}
	v, ok := a.props[name]
	if !ok {
		return dbus.Variant{}, dbus.MakeFailedError(errUnknownProperty(name))
	}
	return v, nil
}

func (a *advertisement) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != advIface {
		return nil, dbus.MakeFailedError(errUnknownInterface(iface))
	}
	return a.props, nil
}

type errUnknownInterface string

func (e errUnknownInterface) Error() string { return "unknown interface " + string(e) }

type errUnknownProperty string

func (e errUnknownProperty) Error() string { return "unknown property " + string(e) }
