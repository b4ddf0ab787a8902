package daemon

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"linuxsony/internal/bluez"
	"linuxsony/internal/config"
	"linuxsony/internal/transport"
)

// Dialer opens links as configured. bus may be nil for the serial transport
// and for rfcomm with a configured address.
type Dialer struct {
	cfg     *config.Config
	bus     *dbus.Conn
	log     logrus.FieldLogger
	profile *bluez.Profile
}

// NewDialer prepares the configured transport. For the profile transport the
// BlueZ profile is registered here, once per process.
func NewDialer(cfg *config.Config, bus *dbus.Conn, log logrus.FieldLogger) (*Dialer, error) {
	d := &Dialer{cfg: cfg, bus: bus, log: log}
	if cfg.Transport.Kind != config.TransportProfile {
		return d, nil
	}
	if bus == nil {
		return nil, fmt.Errorf("transport profile requires the system bus")
	}
	p, err := bluez.RegisterProfile(bus, log)
	if err != nil {
		return nil, err
	}
	d.profile = p
	return d, nil
}

// Close unregisters the BlueZ profile, if any.
func (d *Dialer) Close() error {
	if d.profile == nil {
		return nil
	}
	return d.profile.Close()
}

// Dial implements DialFunc.
func (d *Dialer) Dial(ctx context.Context) (Link, error) {
	t := d.cfg.Transport
	switch t.Kind {
	case config.TransportSerial:
		port, err := transport.OpenSerial(t.SerialPort, t.BaudRate)
		if err != nil {
			return Link{}, err
		}
		return Link{Conn: port, Name: t.SerialPort}, nil

	case config.TransportRFCOMM:
		dev := bluez.Device{Address: d.cfg.Device.Address, Alias: d.cfg.Device.Address}
		if d.bus != nil {
			if found, err := bluez.FindDevice(d.bus, d.cfg.Device.Address, ""); err == nil {
				dev = found
			}
		}
		f, err := transport.DialRFCOMM(d.cfg.Device.Address, t.RFCOMMChannel)
		if err != nil {
			return Link{}, err
		}
		return Link{Conn: f, Name: dev.Alias, DevicePath: dev.Path}, nil

	default:
		dev, err := bluez.FindDevice(d.bus, d.cfg.Device.Address, d.cfg.Device.AliasMatch)
		if err != nil {
			return Link{}, err
		}
		if !dev.Connected {
			return Link{}, fmt.Errorf("%s (%s) is not connected", dev.Alias, dev.Address)
		}
		f, err := d.profile.Connect(ctx, dev.Path)
		if err != nil {
			return Link{}, err
		}
		return Link{Conn: f, Name: dev.Alias, DevicePath: dev.Path}, nil
	}
}
