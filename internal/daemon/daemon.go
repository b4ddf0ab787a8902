// Package daemon keeps one headphones connection alive and exposes it to the
// tray, the window and the CLI.
//
// A Daemon opens the transport selected in the configuration, runs a
// devicestate.Coordinator over it and reconnects after the link drops.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"linuxsony/internal/bluez"
	"linuxsony/internal/config"
	"linuxsony/internal/devicestate"
	"linuxsony/internal/headset"
	"linuxsony/internal/ipc"
	"linuxsony/internal/logging"
	"linuxsony/internal/protocol"
)

// DefaultReconnectDelay is the pause between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// ErrNotConnected is reported to clients while no session is running.
var ErrNotConnected = errors.New("headphones not connected")

// Link is an open transport to one device.
type Link struct {
	Conn io.ReadWriteCloser
	// Name is shown to the user, e.g. the BlueZ alias or the tty path.
	Name string
	// DevicePath is the BlueZ object path, empty when BlueZ was not involved.
	DevicePath dbus.ObjectPath
}

// DialFunc opens a Link.
type DialFunc func(ctx context.Context) (Link, error)

// Update is passed to callbacks on every state change and on disconnect.
type Update struct {
	Connected  bool
	Name       string
	DevicePath dbus.ObjectPath
	State      headset.State
}

// Callback receives updates. It is called from the coordinator's goroutine.
type Callback func(Update)

// Options configures a Daemon.
type Options struct {
	Dial           DialFunc
	ReconnectDelay time.Duration
	Logger         logrus.FieldLogger
}

// Daemon owns the current connection
type Daemon struct {
	session protocol.SessionOptions
	dial    DialFunc
	delay   time.Duration
	log     logrus.FieldLogger

	mu        sync.Mutex
	coord     *devicestate.Coordinator
	link      Link
	callbacks []Callback
}

// New creates a daemon. opts.Dial is required; see Dialer for the
// configuration driven one.
func New(cfg *config.Config, opts Options) *Daemon {
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	log := opts.Logger
	if log == nil {
		log = logging.Component("daemon")
	}
	return &Daemon{
		session: SessionOptions(cfg),
		dial:    opts.Dial,
		delay:   delay,
		log:     log,
	}
}

// SessionOptions converts the protocol section of cfg.
func SessionOptions(cfg *config.Config) protocol.SessionOptions {
	opts := protocol.SessionOptions{
		AckTimeout: time.Duration(cfg.Protocol.AckTimeoutMs) * time.Millisecond,
		OutboxSize: cfg.Protocol.OutboxSize,
	}
	if r := cfg.Protocol.MaxRetries; r != nil {
		opts.MaxRetries = *r
		if *r == 0 {
			opts.MaxRetries = protocol.NoRetries
		}
	}
	return opts
}

// RegisterCallback adds a listener for state changes
func (d *Daemon) RegisterCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, cb)
}

// Snapshot returns the current connection and cached state.
func (d *Daemon) Snapshot() Update {
	d.mu.Lock()
	coord, link := d.coord, d.link
	d.mu.Unlock()

	if coord == nil {
		return Update{}
	}
	return Update{Connected: true, Name: link.Name, DevicePath: link.DevicePath, State: coord.State()}
}

// RequestNextAncMode cycles the noise control mode of the connected device.
func (d *Daemon) RequestNextAncMode() error {
	d.mu.Lock()
	coord := d.coord
	d.mu.Unlock()

	if coord == nil {
		return ErrNotConnected
	}
	coord.RequestNextAncMode()
	return nil
}

// Handle answers one IPC request.
func (d *Daemon) Handle(req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		snap := d.Snapshot()
		if !snap.Connected {
			return ipc.Response{}
		}
		return ipc.StatusFrom(snap.Name, snap.State)

	case ipc.CommandAncNext:
		if err := d.RequestNextAncMode(); err != nil {
			return ipc.Response{Error: err.Error()}
		}
		snap := d.Snapshot()
		return ipc.StatusFrom(snap.Name, snap.State)

	default:
		return ipc.Response{Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}
}

// Run connects, serves the session and reconnects until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	for {
		err := d.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		d.log.WithError(err).WithField("retry_in", d.delay).Warn("headphones session ended")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.delay):
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context) error {
	link, err := d.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	coord, err := devicestate.New(link.Conn, devicestate.Options{
		Session: d.session,
		Logger:  d.log.WithField("device", link.Name),
	})
	if err != nil {
		link.Conn.Close()
		return err
	}

	d.log.WithField("device", link.Name).Info("connected")
	coord.RegisterCallback(func(st headset.State) {
		d.notify(Update{Connected: true, Name: link.Name, DevicePath: link.DevicePath, State: st})
	})

	d.mu.Lock()
	d.coord, d.link = coord, link
	d.mu.Unlock()

	err = coord.Run(ctx)

	d.mu.Lock()
	d.coord, d.link = nil, Link{}
	d.mu.Unlock()
	d.notify(Update{Name: link.Name, DevicePath: link.DevicePath})

	return err
}

func (d *Daemon) notify(u Update) {
	d.mu.Lock()
	callbacks := make([]Callback, len(d.callbacks))
	copy(callbacks, d.callbacks)
	d.mu.Unlock()

	for _, cb := range callbacks {
		cb(u)
	}
}

// BatteryPublisher mirrors updates onto a BlueZ battery provider.
func BatteryPublisher(p *bluez.BatteryProvider, log logrus.FieldLogger) Callback {
	return func(u Update) {
		if u.DevicePath == "" {
			return
		}
		if err := p.Publish(u.DevicePath, u.State); err != nil {
			log.WithError(err).Warn("update BlueZ battery")
		}
	}
}
