package bluez

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezService  = "org.bluez"
	deviceIface   = "org.bluez.Device1"
	adapterIface  = "org.bluez.Adapter1"
	battery1Iface = "org.bluez.Battery1"
)

// SonyServiceUUID is the RFCOMM service the headphones expose for control.
const SonyServiceUUID = "96cc203e-5068-46ad-b32d-e316f5e069ba"

// ErrDeviceNotFound is returned when no paired device matches.
var ErrDeviceNotFound = errors.New("no matching headphones found")

// Device is a paired Bluetooth device as BlueZ reports it
type Device struct {
	Path      dbus.ObjectPath
	Adapter   dbus.ObjectPath
	Address   string
	Alias     string
	Connected bool
	UUIDs     []string
	// Battery is the level BlueZ itself knows from org.bluez.Battery1, or -1.
	Battery int
}

// HasSonyService reports whether the device advertises the control service.
func (d Device) HasSonyService() bool {
	for _, u := range d.UUIDs {
		if strings.EqualFold(u, SonyServiceUUID) {
			return true
		}
	}
	return false
}

// Matches reports whether d is selected by address or alias. An address
// compares case-insensitively and wins over the alias substring.
func (d Device) Matches(address, alias string) bool {
	if address != "" {
		return strings.EqualFold(d.Address, address)
	}
	if alias != "" {
		return strings.Contains(strings.ToLower(d.Alias), strings.ToLower(alias))
	}
	return d.HasSonyService()
}

// ListDevices returns every device BlueZ knows, ordered by path.
func ListDevices(conn *dbus.Conn) ([]Device, error) {
	obj := conn.Object(bluezService, "/")
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("failed to get managed objects: %w", err)
	}
	return devicesFromObjects(objects), nil
}

// FindDevice picks the first device matching address or alias, preferring
// connected devices.
func FindDevice(conn *dbus.Conn, address, alias string) (Device, error) {
	devices, err := ListDevices(conn)
	if err != nil {
		return Device{}, err
	}
	return selectDevice(devices, address, alias)
}

func selectDevice(devices []Device, address, alias string) (Device, error) {
	var fallback *Device
	for i := range devices {
		d := devices[i]
		if !d.Matches(address, alias) {
			continue
		}
		if d.Connected {
			return d, nil
		}
		if fallback == nil {
			fallback = &devices[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return Device{}, ErrDeviceNotFound
}

func devicesFromObjects(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) []Device {
	var devices []Device
	for path, interfaces := range objects {
		props, ok := interfaces[deviceIface]
		if !ok {
			continue
		}
		d := Device{
			Path:      path,
			Adapter:   getObjectPathProp(props, "Adapter"),
			Address:   getStringProp(props, "Address"),
			Alias:     getStringProp(props, "Alias"),
			Connected: getBoolProp(props, "Connected"),
			UUIDs:     getStringArrayProp(props, "UUIDs"),
			Battery:   -1,
		}
		if bat, ok := interfaces[battery1Iface]; ok {
			if v, ok := bat["Percentage"]; ok {
				if p, ok := v.Value().(byte); ok {
					d.Battery = int(p)
				}
			}
		}
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices
}

func getStringProp(props map[string]dbus.Variant, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

func getBoolProp(props map[string]dbus.Variant, key string) bool {
	if v, ok := props[key]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

func getStringArrayProp(props map[string]dbus.Variant, key string) []string {
	if v, ok := props[key]; ok {
		if arr, ok := v.Value().([]string); ok {
			return arr
		}
	}
	return nil
}

func getObjectPathProp(props map[string]dbus.Variant, key string) dbus.ObjectPath {
	if v, ok := props[key]; ok {
		if p, ok := v.Value().(dbus.ObjectPath); ok {
			return p
		}
	}
	return ""
}

// ServiceName gives a readable label for well-known service UUIDs.
func ServiceName(uuid string) string {
	services := map[string]string{
		"0000110b-0000-1000-8000-00805f9b34fb": "Audio Sink",
		"0000110c-0000-1000-8000-00805f9b34fb": "A/V Remote Control Target",
		"0000110e-0000-1000-8000-00805f9b34fb": "A/V Remote Control",
		"0000111e-0000-1000-8000-00805f9b34fb": "Handsfree",
		"00001101-0000-1000-8000-00805f9b34fb": "Serial Port",
		SonyServiceUUID:                        "Sony Headphones Control",
	}
	if name, ok := services[strings.ToLower(uuid)]; ok {
		return name
	}
	return "Unknown Service"
}
