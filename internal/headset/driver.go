// Package headset drives one connection to a pair of Sony headphones.
//
// The Driver sits between the caller's event loop and the protocol codec. It
// never blocks and never performs I/O: the caller feeds received bytes with
// Receive and then calls Poll repeatedly, acting on the returned Action:
//
//	ActionSend       write the bytes to the transport, poll again
//	ActionPollAgain  poll again immediately
//	ActionRefreshUI  cached state changed, redraw, poll again
//	ActionWait       stop polling until new bytes arrive or the timeout elapses
//
// Once the handshake completes the driver requests the noise control state and
// all battery kinds, and keeps a cache of the latest values the device reported.
package headset

import (
	"time"

	"github.com/sirupsen/logrus"

	"linuxsony/internal/logging"
	"linuxsony/internal/protocol"
)

// Codec is the protocol layer the driver talks through. *protocol.Session
// implements it.
type Codec interface {
	Send(cmd protocol.Command) error
	Receive(b []byte) error
	Advance() (protocol.Event, error)
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the time source used to turn codec deadlines into wait durations.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// WithLogger sets the logger for dispatch decisions.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver is the session state machine for one device. It is not safe for
// concurrent use; callers serialize all method calls.
type Driver struct {
	codec Codec
	queue []protocol.Command
	state State

	// last mode requested by RequestNextAncMode, cleared when the device reports
	ancTarget *protocol.AncSettings

	now func() time.Time
	log logrus.FieldLogger
}

// NewDriver creates a driver and immediately hands the handshake request to the
// codec. A codec refusal is returned as *ConstructionError.
func NewDriver(codec Codec, opts ...Option) (*Driver, error) {
	d := &Driver{
		codec: codec,
		now:   time.Now,
		log:   logging.Component("headset"),
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := codec.Send(protocol.InitRequest()); err != nil {
		return nil, &ConstructionError{Err: err}
	}
	return d, nil
}

// Receive passes bytes read from the transport to the codec. Call Poll
// afterwards to observe their effect.
func (d *Driver) Receive(b []byte) error {
	if err := d.codec.Receive(b); err != nil {
		return &SessionError{Op: "receive", Err: err}
	}
	return nil
}

// Poll advances the codec by one step and returns exactly one Action.
func (d *Driver) Poll() (Action, error) {
	ev, err := d.codec.Advance()
	if err != nil {
		return Action{}, &SessionError{Op: "advance", Err: err}
	}

	switch ev.Type {
	case protocol.EventPacketReady:
		d.dispatch(ev.Packet)
		return Action{Type: ActionRefreshUI}, nil

	case protocol.EventBytesToSend:
		return Action{Type: ActionSend, Bytes: ev.Bytes}, nil

	default:
		if len(d.queue) > 0 {
			cmd := d.queue[0]
			if err := d.codec.Send(cmd); err != nil {
				return Action{}, &SessionError{Op: "send " + cmd.String(), Err: err}
			}
			d.queue = d.queue[1:]
			return Action{Type: ActionPollAgain}, nil
		}

		if !ev.HasDeadline() {
			return Action{Type: ActionWait}, nil
		}
		timeout := ev.Deadline.Sub(d.now())
		if timeout < 0 {
			timeout = 0
		}
		return Action{Type: ActionWait, Timeout: timeout, HasTimeout: true}, nil
	}
}

// dispatch applies a decoded packet to the queue and cache. It cannot fail;
// packets it does not know are ignored.
func (d *Driver) dispatch(p protocol.Packet) {
	switch p.Type {
	case protocol.PacketInitReply:
		d.log.Debug("handshake complete, requesting device state")
		d.queue = append(d.queue,
			protocol.AncGet(),
			protocol.BatteryRequest(protocol.BatterySingle),
			protocol.BatteryRequest(protocol.BatteryDual),
			protocol.BatteryRequest(protocol.BatteryCase),
		)

	case protocol.PacketAncReply, protocol.PacketAncNotify:
		anc := p.Anc
		d.state.Anc = &anc
		d.ancTarget = nil

	case protocol.PacketBatteryReply, protocol.PacketBatteryNotify:
		d.state.applyBattery(p.Battery)

	default:
		d.log.WithField("packet", p).Debug("ignoring packet")
	}
}

// RequestNextAncMode queues a command switching to the next noise control mode.
// The cycle continues from the last requested mode until the device reports a
// new state.
func (d *Driver) RequestNextAncMode() {
	current := d.state.Anc
	if d.ancTarget != nil {
		current = d.ancTarget
	}

	next := NextAncSettings(current)
	d.ancTarget = &next
	d.queue = append(d.queue, protocol.AncSet(next))
	d.log.WithField("mode", next.Mode).Debug("queued noise control change")
}

// State returns a copy of the cached device state.
func (d *Driver) State() State {
	return d.state.Clone()
}

// Pending returns a copy of the commands not yet handed to the codec.
func (d *Driver) Pending() []protocol.Command {
	return append([]protocol.Command(nil), d.queue...)
}

// QueueLen is the number of commands not yet handed to the codec.
func (d *Driver) QueueLen() int {
	return len(d.queue)
}
