// Package bluez talks to the BlueZ daemon over the D-Bus system bus.
//
// # Battery Provider
//
// BatteryProvider implements the org.bluez.BatteryProvider1 protocol so that
// the headphones' battery level shows up in the desktop's Bluetooth settings.
// The implementation follows the D-Bus ObjectManager pattern:
//
//  1. Single Connection Per Provider:
//     The provider keeps one system bus connection for its whole lifetime. Every
//     battery object is exported on that connection, and BlueZ only queries the
//     connection that registered the provider.
//
//  2. InterfacesAdded Signal:
//     Adding a battery object MUST emit InterfacesAdded on the ObjectManager
//     interface, otherwise BlueZ never picks it up.
//
// # Usage
//
//	provider, err := bluez.NewBatteryProvider(conn, adapterPath, log)
//	defer provider.Close()
//
//	provider.Publish(devicePath, state) // adds, updates or removes the battery
package bluez

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/sirupsen/logrus"

	"linuxsony/internal/headset"
)

const (
	batteryProviderManagerIface = "org.bluez.BatteryProviderManager1"
	batteryProviderIface        = "org.bluez.BatteryProvider1"
	providerPath                = "/org/linuxsony/battery"
	providerSource              = "linuxsony"
	headphonesBattery           = "headphones"
)

const providerIntrospect = `
<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
	<interface name="org.freedesktop.DBus.ObjectManager">
		<method name="GetManagedObjects">
			<arg name="objects" type="a{oa{sa{sv}}}" direction="out"/>
		</method>
		<signal name="InterfacesAdded">
			<arg name="object_path" type="o"/>
			<arg name="interfaces_and_properties" type="a{sa{sv}}"/>
		</signal>
		<signal name="InterfacesRemoved">
			<arg name="object_path" type="o"/>
			<arg name="interfaces" type="as"/>
		</signal>
	</interface>
</node>`

const batteryIntrospect = `
<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
	<interface name="org.bluez.BatteryProvider1">
		<property name="Percentage" type="y" access="read"/>
		<property name="Device" type="o" access="read"/>
		<property name="Source" type="s" access="read"/>
	</interface>
	<interface name="org.freedesktop.DBus.Properties">
		<method name="Get">
			<arg name="interface_name" type="s" direction="in"/>
			<arg name="property_name" type="s" direction="in"/>
			<arg name="value" type="v" direction="out"/>
		</method>
		<method name="GetAll">
			<arg name="interface_name" type="s" direction="in"/>
			<arg name="properties" type="a{sv}" direction="out"/>
		</method>
	</interface>
</node>`

// battery is one exported org.bluez.BatteryProvider1 object
type battery struct {
	mu         *sync.RWMutex // the provider's lock
	path       dbus.ObjectPath
	percentage uint8
	device     dbus.ObjectPath
}

func (b *battery) properties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Percentage": dbus.MakeVariant(b.percentage),
		"Device":     dbus.MakeVariant(b.device),
		"Source":     dbus.MakeVariant(providerSource),
	}
}

// Get implements org.freedesktop.DBus.Properties.Get
func (b *battery) Get(iface string, property string) (dbus.Variant, *dbus.Error) {
	if iface != batteryProviderIface {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{iface})
	}
	b.mu.RLock()
	v, ok := b.properties()[property]
	b.mu.RUnlock()
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownProperty", []interface{}{property})
	}
	return v, nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll
func (b *battery) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != batteryProviderIface {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{iface})
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.properties(), nil
}

// Set implements org.freedesktop.DBus.Properties.Set. All properties are read-only.
func (b *battery) Set(iface string, property string, value dbus.Variant) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.PropertyReadOnly", []interface{}{property})
}

// objectBus is the part of *dbus.Conn used to export battery objects
type objectBus interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// BatteryProvider publishes headphone battery levels to BlueZ
type BatteryProvider struct {
	conn    *dbus.Conn
	bus     objectBus
	adapter dbus.ObjectPath
	log     logrus.FieldLogger

	mu        sync.RWMutex
	batteries map[string]*battery
}

// NewBatteryProvider exports the provider on conn and registers it with the
// adapter at adapterPath (usually /org/bluez/hci0).
func NewBatteryProvider(conn *dbus.Conn, adapterPath dbus.ObjectPath, log logrus.FieldLogger) (*BatteryProvider, error) {
	bp := &BatteryProvider{
		conn:      conn,
		bus:       conn,
		adapter:   adapterPath,
		log:       log,
		batteries: make(map[string]*battery),
	}

	if err := conn.Export(bp, providerPath, "org.freedesktop.DBus.ObjectManager"); err != nil {
		return nil, fmt.Errorf("failed to export provider: %w", err)
	}
	if err := conn.Export(introspect.Introspectable(providerIntrospect), providerPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("failed to export provider: %w", err)
	}

	call := conn.Object(bluezService, adapterPath).Call(batteryProviderManagerIface+".RegisterBatteryProvider", 0, dbus.ObjectPath(providerPath))
	if call.Err != nil {
		return nil, fmt.Errorf("failed to register battery provider: %w", call.Err)
	}
	return bp, nil
}

// GetManagedObjects implements org.freedesktop.DBus.ObjectManager
func (bp *BatteryProvider) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	bp.mu.RLock()
	defer bp.mu.RUnlock()

	objects := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	for _, b := range bp.batteries {
		objects[b.path] = map[string]map[string]dbus.Variant{
			batteryProviderIface: b.properties(),
		}
	}
	return objects, nil
}

// Publish mirrors st onto the headphones battery object for devicePath. The
// object is created on the first reading, re-announced when the device
// changes, and removed when st carries no reading.
func (bp *BatteryProvider) Publish(devicePath dbus.ObjectPath, st headset.State) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	level, ok := st.LowestBattery()
	if !ok {
		return bp.removeLocked(headphonesBattery)
	}

	b, exists := bp.batteries[headphonesBattery]
	switch {
	case !exists:
		return bp.addLocked(headphonesBattery, level, devicePath)
	case b.device != devicePath:
		if err := bp.removeLocked(headphonesBattery); err != nil {
			return err
		}
		return bp.addLocked(headphonesBattery, level, devicePath)
	case b.percentage != level:
		return bp.updateLocked(b, level)
	default:
		return nil
	}
}

// addLocked exports a battery object and announces it to BlueZ
func (bp *BatteryProvider) addLocked(name string, percentage uint8, devicePath dbus.ObjectPath) error {
	b := &battery{
		mu:         &bp.mu,
		path:       dbus.ObjectPath(fmt.Sprintf("%s/%s", providerPath, name)),
		percentage: percentage,
		device:     devicePath,
	}

	if err := bp.bus.Export(b, b.path, "org.freedesktop.DBus.Properties"); err != nil {
		return err
	}
	if err := bp.bus.Export(introspect.Introspectable(batteryIntrospect), b.path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return err
	}
	bp.batteries[name] = b

	interfaces := map[string]map[string]dbus.Variant{batteryProviderIface: b.properties()}
	if err := bp.bus.Emit(providerPath, "org.freedesktop.DBus.ObjectManager.InterfacesAdded", b.path, interfaces); err != nil {
		return fmt.Errorf("failed to emit InterfacesAdded signal: %w", err)
	}

	bp.log.WithFields(logrus.Fields{"device": devicePath, "level": percentage}).Info("battery provider registered")
	return nil
}

func (bp *BatteryProvider) updateLocked(b *battery, percentage uint8) error {
	b.percentage = percentage

	changes := map[string]dbus.Variant{"Percentage": dbus.MakeVariant(percentage)}
	return bp.bus.Emit(b.path, "org.freedesktop.DBus.Properties.PropertiesChanged",
		batteryProviderIface, changes, []string{})
}

func (bp *BatteryProvider) removeLocked(name string) error {
	b, ok := bp.batteries[name]
	if !ok {
		return nil
	}

	if err := bp.bus.Emit(providerPath, "org.freedesktop.DBus.ObjectManager.InterfacesRemoved",
		b.path, []string{batteryProviderIface}); err != nil {
		return fmt.Errorf("failed to emit InterfacesRemoved signal: %w", err)
	}

	bp.bus.Export(nil, b.path, "org.freedesktop.DBus.Properties")
	bp.bus.Export(nil, b.path, "org.freedesktop.DBus.Introspectable")
	delete(bp.batteries, name)
	return nil
}

// Close removes every battery and unregisters the provider. The bus
// connection is left open.
func (bp *BatteryProvider) Close() error {
	bp.mu.Lock()
	err := bp.removeLocked(headphonesBattery)
	bp.mu.Unlock()
	if err != nil {
		bp.log.WithError(err).Warn("remove battery")
	}
	call := bp.conn.Object(bluezService, bp.adapter).Call(batteryProviderManagerIface+".UnregisterBatteryProvider", 0, dbus.ObjectPath(providerPath))
	return call.Err
}
