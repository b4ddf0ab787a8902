package devicestate

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linuxsony/internal/headset"
	"linuxsony/internal/logging"
	"linuxsony/internal/protocol"
)

// fakeHeadphones answers the host side of the protocol over conn: it
// acknowledges every data frame and replies with canned state.
type fakeHeadphones struct {
	conn net.Conn
	seq  byte
	anc  []byte
}

func (f *fakeHeadphones) send(payload ...byte) error {
	frame := protocol.MarshalFrame(protocol.Frame{DataType: protocol.DataTypeCommand1, Seq: f.seq, Payload: payload})
	f.seq = 1 - f.seq
	_, err := f.conn.Write(frame)
	return err
}

func (f *fakeHeadphones) handle(fr protocol.Frame) error {
	if fr.DataType == protocol.DataTypeAck {
		return nil
	}
	ack := protocol.MarshalFrame(protocol.Frame{DataType: protocol.DataTypeAck, Seq: 1 - fr.Seq})
	if _, err := f.conn.Write(ack); err != nil {
		return err
	}

	p := fr.Payload
	switch p[0] {
	case 0x00:
		return f.send(0x01, 0x00)
	case 0x66:
		return f.send(append([]byte{0x67}, f.anc[1:]...)...)
	case 0x68:
		f.anc = append([]byte(nil), p...)
		return f.send(append([]byte{0x69}, f.anc[1:]...)...)
	case 0x10:
		switch p[1] {
		case 0x00:
			return f.send(0x11, 0x00, 50, 0x00)
		case 0x01:
			return f.send(0x11, 0x01, 70, 0x00, 80, 0x01)
		case 0x02:
			return f.send(0x11, 0x02, 90, 0x01)
		}
	}
	return nil
}

func (f *fakeHeadphones) serve() {
	var buf []byte
	chunk := make([]byte, 256)
	for {
		n, err := f.conn.Read(chunk)
		if err != nil {
			return
		}
		buf = append(buf, chunk[:n]...)
		for {
			raw, rest, err := protocol.SplitFrame(buf)
			if err != nil || raw == nil {
				break
			}
			buf = rest
			fr, err := protocol.UnmarshalFrame(raw)
			if err != nil {
				return
			}
			if err := f.handle(fr); err != nil {
				return
			}
		}
	}
}

func startCoordinator(t *testing.T) (*Coordinator, net.Conn, chan headset.State, context.CancelFunc, chan error) {
	t.Helper()
	host, device := net.Pipe()

	c, err := New(host, Options{Logger: logging.Discard()})
	require.NoError(t, err)

	states := make(chan headset.State, 64)
	c.RegisterCallback(func(s headset.State) { states <- s })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	return c, device, states, cancel, done
}

func waitForState(t *testing.T, states <-chan headset.State, match func(headset.State) bool) headset.State {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-states:
			if match(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for state")
			return headset.State{}
		}
	}
}

func TestCoordinator_HandshakeAndStateUpdates(t *testing.T) {
	c, device, states, cancel, done := startCoordinator(t)
	dev := &fakeHeadphones{conn: device, anc: []byte{0x67, 0x02, 0x11, 0x02, 0x01, 0x01, 0x00, 0x00}}
	go dev.serve()

	st := waitForState(t, states, func(s headset.State) bool {
		_, isDual := s.DeviceBattery.(headset.DualBattery)
		return isDual && s.CaseBattery != nil && s.Anc != nil
	})
	assert.Equal(t, headset.DualBattery{Left: 70, Right: 80, RightCharging: true}, st.DeviceBattery)
	assert.Equal(t, headset.SingleBattery{Level: 90, Charging: true}, *st.CaseBattery)
	assert.Equal(t, protocol.AncOn, st.Anc.Mode)

	c.RequestNextAncMode()
	st = waitForState(t, states, func(s headset.State) bool {
		return s.Anc != nil && s.Anc.Mode == protocol.AncWind
	})
	assert.Equal(t, protocol.AncWind, c.State().Anc.Mode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCoordinator_CorruptInputEndsSession(t *testing.T) {
	_, device, _, cancel, done := startCoordinator(t)
	defer cancel()

	go func() {
		// drain the init request so the host is not blocked writing
		buf := make([]byte, 256)
		_, _ = device.Read(buf)
		_, _ = device.Write([]byte{0x00, 0x01, 0x02})
	}()

	select {
	case err := <-done:
		var serr *headset.SessionError
		assert.True(t, errors.As(err, &serr), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not fail on corrupt input")
	}
}

func TestCoordinator_DisconnectIsReported(t *testing.T) {
	_, device, _, cancel, done := startCoordinator(t)
	defer cancel()

	go func() {
		buf := make([]byte, 256)
		_, _ = device.Read(buf)
		_ = device.Close()
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after disconnect")
	}
}

func TestCoordinator_RegisterCallbackReplaysLastState(t *testing.T) {
	c, device, states, cancel, done := startCoordinator(t)
	dev := &fakeHeadphones{conn: device, anc: []byte{0x67, 0x02, 0x00, 0x02, 0x00, 0x01, 0x00, 0x00}}
	go dev.serve()

	waitForState(t, states, func(s headset.State) bool { return s.Anc != nil })

	late := make(chan headset.State, 1)
	c.RegisterCallback(func(s headset.State) {
		select {
		case late <- s:
		default:
		}
	})

	select {
	case s := <-late:
		assert.NotNil(t, s.Anc)
	case <-time.After(5 * time.Second):
		t.Fatal("late callback not notified")
	}

	cancel()
	<-done
}
