// Package devicestate runs the event loop for one headphones connection.
//
// Coordinator handles:
//   - Reading bytes from the transport and feeding them to the session driver
//   - Polling the driver and writing the frames it produces
//   - Sleeping until the driver's deadline, new input, or a local request
//   - Notifying UI and other components of state updates via callbacks
//
// The driver is not reentrant, so every call into it happens under one mutex.
package devicestate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"linuxsony/internal/headset"
	"linuxsony/internal/logging"
	"linuxsony/internal/protocol"
)

// ErrDisconnected is returned by Run when the transport reaches EOF.
var ErrDisconnected = errors.New("device disconnected")

// UpdateCallback is called when the device state may have changed
type UpdateCallback func(headset.State)

// Options configures a Coordinator.
type Options struct {
	Session protocol.SessionOptions
	Logger  logrus.FieldLogger
}

// Coordinator owns one driver and the transport it talks over
type Coordinator struct {
	conn   io.ReadWriteCloser
	driver *headset.Driver
	log    logrus.FieldLogger

	mu        sync.Mutex
	callbacks []UpdateCallback
	lastState headset.State
	hasState  bool

	wake chan struct{}
}

// New creates a coordinator for conn. The handshake request is queued right
// away; nothing is written until Run.
func New(conn io.ReadWriteCloser, opts Options) (*Coordinator, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Component("devicestate")
	}

	session := protocol.NewSession(opts.Session)
	driverOpts := []headset.Option{headset.WithLogger(log)}
	if opts.Session.Now != nil {
		driverOpts = append(driverOpts, headset.WithClock(opts.Session.Now))
	}

	driver, err := headset.NewDriver(session, driverOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	return &Coordinator{
		conn:   conn,
		driver: driver,
		log:    log,
		wake:   make(chan struct{}, 1),
	}, nil
}

// RegisterCallback registers a callback to be notified of state updates
func (c *Coordinator) RegisterCallback(cb UpdateCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)

	// If we have cached data, immediately notify the new callback
	if c.hasState {
		go cb(c.lastState.Clone())
	}
}

// State returns the current cached device state
func (c *Coordinator) State() headset.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.State()
}

// RequestNextAncMode queues a switch to the next noise control mode
func (c *Coordinator) RequestNextAncMode() {
	c.mu.Lock()
	c.driver.RequestNextAncMode()
	c.mu.Unlock()

	c.Wake()
}

// Wake interrupts a pending wait so the poll loop runs again.
func (c *Coordinator) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run drives the connection until ctx is cancelled or the session fails. The
// transport is closed when Run returns. A cancelled context is not an error.
func (c *Coordinator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.pollLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		if err := c.conn.Close(); err != nil {
			c.log.WithError(err).Debug("close transport")
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// readLoop continuously reads from the transport and feeds the driver
func (c *Coordinator) readLoop(ctx context.Context) error {
	buf := make([]byte, 1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.log.WithField("bytes", protocol.DumpPacket(buf[:n])).Trace("received")

			c.mu.Lock()
			rerr := c.driver.Receive(buf[:n])
			c.mu.Unlock()
			if rerr != nil {
				return rerr
			}
			c.Wake()
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrDisconnected
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

// pollLoop polls the driver until it asks to wait, then sleeps
func (c *Coordinator) pollLoop(ctx context.Context) error {
	for {
		c.mu.Lock()
		action, err := c.driver.Poll()
		c.mu.Unlock()
		if err != nil {
			return err
		}

		switch action.Type {
		case headset.ActionSend:
			c.log.WithField("bytes", protocol.DumpPacket(action.Bytes)).Trace("sending")
			if _, err := c.conn.Write(action.Bytes); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("write: %w", err)
			}

		case headset.ActionRefreshUI:
			c.notify()

		case headset.ActionPollAgain:

		case headset.ActionWait:
			if err := c.wait(ctx, action); err != nil {
				return err
			}
		}
	}
}

func (c *Coordinator) wait(ctx context.Context, action headset.Action) error {
	var timeout <-chan time.Time
	if action.HasTimeout {
		timer := time.NewTimer(action.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.wake:
	case <-timeout:
	}
	return nil
}

// notify snapshots the driver state and calls all listeners
func (c *Coordinator) notify() {
	c.mu.Lock()
	state := c.driver.State()
	c.lastState = state
	c.hasState = true
	callbacks := make([]UpdateCallback, len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb(state.Clone())
	}
}
