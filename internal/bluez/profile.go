package bluez

import (
	"context"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/sirupsen/logrus"

	"linuxsony/internal/transport"
)

const (
	profileManagerIface = "org.bluez.ProfileManager1"
	profileIface        = "org.bluez.Profile1"
	profilePath         = "/org/linuxsony/profile"
)

const profileIntrospect = `
<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
	<interface name="org.bluez.Profile1">
		<method name="Release"/>
		<method name="NewConnection">
			<arg name="device" type="o" direction="in"/>
			<arg name="fd" type="h" direction="in"/>
			<arg name="fd_properties" type="a{sv}" direction="in"/>
		</method>
		<method name="RequestDisconnection">
			<arg name="device" type="o" direction="in"/>
		</method>
	</interface>
</node>`

// Connection is an RFCOMM socket BlueZ handed over for a device.
type Connection struct {
	Device dbus.ObjectPath
	File   *os.File
}

// Profile is a client-role org.bluez.Profile1 for the headphones' control
// service. BlueZ opens the RFCOMM channel itself and passes the socket to
// NewConnection.
type Profile struct {
	conn  *dbus.Conn
	log   logrus.FieldLogger
	conns chan Connection
}

// RegisterProfile exports the profile object and registers it with BlueZ.
func RegisterProfile(conn *dbus.Conn, log logrus.FieldLogger) (*Profile, error) {
	p := &Profile{conn: conn, log: log, conns: make(chan Connection, 1)}

	if err := conn.Export(p, profilePath, profileIface); err != nil {
		return nil, fmt.Errorf("failed to export profile: %w", err)
	}
	if err := conn.Export(introspect.Introspectable(profileIntrospect), profilePath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("failed to export profile: %w", err)
	}

	opts := map[string]dbus.Variant{
		"Name":                  dbus.MakeVariant("linuxsony"),
		"Role":                  dbus.MakeVariant("client"),
		"AutoConnect":           dbus.MakeVariant(false),
		"RequireAuthentication": dbus.MakeVariant(false),
		"RequireAuthorization":  dbus.MakeVariant(false),
	}
	call := conn.Object(bluezService, "/org/bluez").Call(profileManagerIface+".RegisterProfile", 0,
		dbus.ObjectPath(profilePath), SonyServiceUUID, opts)
	if call.Err != nil {
		return nil, fmt.Errorf("failed to register profile: %w", call.Err)
	}
	return p, nil
}

// Release implements org.bluez.Profile1
func (p *Profile) Release() *dbus.Error {
	p.log.Debug("profile released")
	return nil
}

// NewConnection implements org.bluez.Profile1
func (p *Profile) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, props map[string]dbus.Variant) *dbus.Error {
	f, err := transport.FromFD(int(fd), string(device))
	if err != nil {
		p.log.WithError(err).Warn("unusable profile socket")
		return dbus.MakeFailedError(err)
	}

	p.log.WithField("device", device).Info("profile connected")
	select {
	case p.conns <- Connection{Device: device, File: f}:
	default:
		// nobody is waiting for a second connection
		f.Close()
		return dbus.NewError("org.bluez.Error.Rejected", []interface{}{"connection already pending"})
	}
	return nil
}

// RequestDisconnection implements org.bluez.Profile1
func (p *Profile) RequestDisconnection(device dbus.ObjectPath) *dbus.Error {
	p.log.WithField("device", device).Info("disconnection requested")
	return nil
}

// Connect asks BlueZ to open the control channel to device and waits for the
// socket to arrive.
func (p *Profile) Connect(ctx context.Context, device dbus.ObjectPath) (*os.File, error) {
	call := p.conn.Object(bluezService, device).CallWithContext(ctx, deviceIface+".ConnectProfile", 0, SonyServiceUUID)
	if call.Err != nil {
		return nil, fmt.Errorf("failed to connect profile: %w", call.Err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case c := <-p.conns:
			if c.Device == device {
				return c.File, nil
			}
			p.log.WithField("device", c.Device).Warn("ignoring connection for another device")
			c.File.Close()
		}
	}
}

// Close unregisters the profile.
func (p *Profile) Close() error {
	call := p.conn.Object(bluezService, "/org/bluez").Call(profileManagerIface+".UnregisterProfile", 0, dbus.ObjectPath(profilePath))
	return call.Err
}
