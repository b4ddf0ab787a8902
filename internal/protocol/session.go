package protocol

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
)

// Session defaults
const (
	DefaultAckTimeout = time.Second
	DefaultMaxRetries = 3
	DefaultOutboxSize = 32
)

// NoRetries as SessionOptions.MaxRetries fails on the first ACK timeout.
// A zero MaxRetries selects DefaultMaxRetries.
const NoRetries = -1

var (
	ErrOutboxFull = errors.New("outbox full")
	ErrAckTimeout = errors.New("no acknowledgement from device")
)

// SessionOptions tunes a Session. Zero values select the defaults.
type SessionOptions struct {
	AckTimeout time.Duration
	MaxRetries int
	OutboxSize int
	Now        func() time.Time
}

// inflight is the last data frame sent and not yet acknowledged
type inflight struct {
	seq      byte
	frame    []byte
	deadline time.Time
	retries  int
}

// Session is the codec state machine for one device connection.
//
// It never performs I/O: received bytes are pushed in with Receive and every
// call to Advance yields one step of work for the caller. A Session must not be
// used from more than one goroutine at a time.
type Session struct {
	opts SessionOptions

	rx      []byte
	tx      [][]byte
	packets []Packet
	outbox  []Command

	seq     byte
	pending *inflight

	lastRx    []byte
	hasLastRx bool

	err error
}

// NewSession creates a session with the given options.
func NewSession(opts SessionOptions) *Session {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = DefaultOutboxSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{opts: opts}
}

// Send queues a command for transmission. The framed bytes are produced by a
// later call to Advance, after any frame still waiting for an acknowledgement.
func (s *Session) Send(c Command) error {
	if s.err != nil {
		return s.err
	}
	if _, err := EncodeCommand(c); err != nil {
		return err
	}
	if len(s.outbox) >= s.opts.OutboxSize {
		return errors.Wrapf(ErrOutboxFull, "%d commands pending", len(s.outbox))
	}
	s.outbox = append(s.outbox, c)
	return nil
}

// Receive consumes bytes read from the transport. Complete frames are decoded
// immediately; a trailing partial frame is kept until more bytes arrive.
// Integrity errors are fatal for the session.
func (s *Session) Receive(b []byte) error {
	if s.err != nil {
		return s.err
	}

	s.rx = append(s.rx, b...)
	for {
		raw, rest, err := SplitFrame(s.rx)
		if err != nil {
			return s.fail(err)
		}
		if raw == nil {
			return nil
		}
		s.rx = rest

		f, err := UnmarshalFrame(raw)
		if err != nil {
			return s.fail(err)
		}
		if err := s.handleFrame(f); err != nil {
			return s.fail(err)
		}
	}
}

func (s *Session) handleFrame(f Frame) error {
	if f.DataType == DataTypeAck {
		// An ACK carries 1 - seq of the frame it acknowledges. Anything else
		// is a stale ACK for an earlier copy and must not release the next frame.
		if s.pending != nil && f.Seq == 1-s.pending.seq {
			s.pending = nil
			s.seq = f.Seq
		}
		return nil
	}

	s.tx = append(s.tx, ackFrame(f.Seq))

	// The device retransmits when our ACK got lost; deliver only once.
	if s.hasLastRx && f.Seq == s.lastRx[0] && bytes.Equal(f.Payload, s.lastRx[1:]) {
		return nil
	}
	s.lastRx = append([]byte{f.Seq}, f.Payload...)
	s.hasLastRx = true

	if f.DataType != DataTypeCommand1 {
		s.packets = append(s.packets, Packet{
			Type:     PacketUnknown,
			DataType: f.DataType,
			Payload:  f.Payload,
		})
		return nil
	}

	p, err := DecodePacket(f.Payload)
	if err != nil {
		return errors.Wrapf(err, "decode frame seq %d", f.Seq)
	}
	s.packets = append(s.packets, p)
	return nil
}

// Advance performs one step of work.
//
// Order of precedence: pending transmissions (ACKs), decoded packets, the
// in-flight frame (retransmit on timeout or report its deadline), then the next
// queued command.
func (s *Session) Advance() (Event, error) {
	if s.err != nil {
		return Event{}, s.err
	}

	if len(s.tx) > 0 {
		out := s.tx[0]
		s.tx = s.tx[1:]
		return Event{Type: EventBytesToSend, Bytes: out}, nil
	}

	if len(s.packets) > 0 {
		p := s.packets[0]
		s.packets = s.packets[1:]
		return Event{Type: EventPacketReady, Packet: p}, nil
	}

	now := s.opts.Now()

	if s.pending != nil {
		if now.Before(s.pending.deadline) {
			return Event{Type: EventIdle, Deadline: s.pending.deadline}, nil
		}
		if s.pending.retries >= s.opts.MaxRetries {
			return Event{}, s.fail(errors.Wrapf(ErrAckTimeout, "after %d retransmissions", s.pending.retries))
		}
		s.pending.retries++
		s.pending.deadline = now.Add(s.opts.AckTimeout)
		return Event{Type: EventBytesToSend, Bytes: s.pending.frame}, nil
	}

	if len(s.outbox) > 0 {
		c := s.outbox[0]
		s.outbox = s.outbox[1:]

		payload, err := EncodeCommand(c)
		if err != nil {
			return Event{}, s.fail(err)
		}
		frame := MarshalFrame(Frame{DataType: DataTypeCommand1, Seq: s.seq, Payload: payload})
		s.pending = &inflight{seq: s.seq, frame: frame, deadline: now.Add(s.opts.AckTimeout)}
		return Event{Type: EventBytesToSend, Bytes: frame}, nil
	}

	return Event{Type: EventIdle}, nil
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	return s.err
}

func (s *Session) fail(err error) error {
	s.err = errors.Wrap(err, "session failed")
	return s.err
}
