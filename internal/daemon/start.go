package daemon

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"linuxsony/internal/bluez"
	"linuxsony/internal/config"
	"linuxsony/internal/logging"
)

// Start builds a daemon from cfg. It connects to the system bus, which only the
// profile transport strictly needs, and registers the battery provider when
// the bus is available. cleanup releases everything in reverse order.
func Start(cfg *config.Config, log logrus.FieldLogger) (*Daemon, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		if cfg.Transport.Kind == config.TransportProfile {
			return nil, nil, fmt.Errorf("failed to connect to system bus: %w", err)
		}
		log.WithError(err).Warn("system bus unavailable, BlueZ integration disabled")
		bus = nil
	} else {
		closers = append(closers, func() { bus.Close() })
	}

	dialer, err := NewDialer(cfg, bus, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() {
		if err := dialer.Close(); err != nil {
			log.WithError(err).Debug("unregister profile")
		}
	})

	d := New(cfg, Options{Dial: dialer.Dial, Logger: log})

	if bus != nil {
		provider, err := bluez.NewBatteryProvider(bus, "/org/bluez/hci0", logging.Component("bluez"))
		if err != nil {
			log.WithError(err).Warn("battery won't appear in the desktop's Bluetooth settings")
		} else {
			closers = append(closers, func() { provider.Close() })
			d.RegisterCallback(BatteryPublisher(provider, log))
		}
	}

	return d, cleanup, nil
}

