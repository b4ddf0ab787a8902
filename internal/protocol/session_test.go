package protocol

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestSession(t *testing.T) (*Session, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSession(SessionOptions{AckTimeout: time.Second, MaxRetries: 2, OutboxSize: 4, Now: clock.Now})
	return s, clock
}

func dataFrame(seq byte, payload ...byte) []byte {
	return MarshalFrame(Frame{DataType: DataTypeCommand1, Seq: seq, Payload: payload})
}

func advance(t *testing.T, s *Session) Event {
	t.Helper()
	ev, err := s.Advance()
	require.NoError(t, err)
	return ev
}

func TestSession_IdleWhenEmpty(t *testing.T) {
	s, _ := newTestSession(t)
	ev := advance(t, s)
	assert.Equal(t, EventIdle, ev.Type)
	assert.False(t, ev.HasDeadline())
}

func TestSession_SendWaitsForAck(t *testing.T) {
	s, clock := newTestSession(t)
	require.NoError(t, s.Send(InitRequest()))
	require.NoError(t, s.Send(AncGet()))

	ev := advance(t, s)
	require.Equal(t, EventBytesToSend, ev.Type)
	assert.Equal(t, dataFrame(0, 0x00, 0x00), ev.Bytes)

	// second command is held back until the first is acknowledged
	ev = advance(t, s)
	require.Equal(t, EventIdle, ev.Type)
	assert.Equal(t, clock.now.Add(time.Second), ev.Deadline)

	require.NoError(t, s.Receive(MarshalFrame(Frame{DataType: DataTypeAck, Seq: 1})))

	ev = advance(t, s)
	require.Equal(t, EventBytesToSend, ev.Type)
	assert.Equal(t, dataFrame(1, 0x66, 0x02), ev.Bytes)
}

func TestSession_StaleAckDoesNotReleaseNextFrame(t *testing.T) {
	s, clock := newTestSession(t)
	require.NoError(t, s.Send(InitRequest()))
	require.NoError(t, s.Send(AncGet()))
	require.NoError(t, s.Send(BatteryRequest(BatterySingle)))

	ev := advance(t, s)
	require.Equal(t, dataFrame(0, 0x00, 0x00), ev.Bytes)

	// no ACK in time: the same frame goes out again
	clock.now = clock.now.Add(time.Second)
	ev = advance(t, s)
	require.Equal(t, dataFrame(0, 0x00, 0x00), ev.Bytes)

	ack := MarshalFrame(Frame{DataType: DataTypeAck, Seq: 1})
	require.NoError(t, s.Receive(ack))

	ev = advance(t, s)
	require.Equal(t, EventBytesToSend, ev.Type)
	assert.Equal(t, dataFrame(1, 0x66, 0x02), ev.Bytes)

	// the device acknowledges the second copy of the first frame as well
	require.NoError(t, s.Receive(ack))

	ev = advance(t, s)
	assert.Equal(t, EventIdle, ev.Type, "AncGet is still waiting for its own ACK")
	assert.True(t, ev.HasDeadline())

	require.NoError(t, s.Receive(MarshalFrame(Frame{DataType: DataTypeAck, Seq: 0})))
	ev = advance(t, s)
	require.Equal(t, EventBytesToSend, ev.Type)
	assert.Equal(t, dataFrame(0, 0x10, 0x00), ev.Bytes)
}

func TestSession_AckWithoutPendingFrameIsIgnored(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.Receive(MarshalFrame(Frame{DataType: DataTypeAck, Seq: 1})))
	require.NoError(t, s.Send(InitRequest()))

	ev := advance(t, s)
	require.Equal(t, EventBytesToSend, ev.Type)
	assert.Equal(t, dataFrame(0, 0x00, 0x00), ev.Bytes, "sequence number unchanged")
}

func TestSession_ReceiveAcknowledgesAndDecodes(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.Receive(dataFrame(0, 0x01, 0x00)))

	ev := advance(t, s)
	require.Equal(t, EventBytesToSend, ev.Type)
	assert.Equal(t, MarshalFrame(Frame{DataType: DataTypeAck, Seq: 1}), ev.Bytes)

	ev = advance(t, s)
	require.Equal(t, EventPacketReady, ev.Type)
	assert.Equal(t, PacketInitReply, ev.Packet.Type)

	ev = advance(t, s)
	assert.Equal(t, EventIdle, ev.Type)
}

func TestSession_DuplicateFrameDeliveredOnce(t *testing.T) {
	s, _ := newTestSession(t)
	frame := dataFrame(1, 0x13, 0x00, 0x28, 0x00)
	require.NoError(t, s.Receive(frame))
	require.NoError(t, s.Receive(frame))

	var acks, packets int
	for {
		ev := advance(t, s)
		if ev.Type == EventIdle {
			break
		}
		switch ev.Type {
		case EventBytesToSend:
			acks++
		case EventPacketReady:
			packets++
		}
	}
	assert.Equal(t, 2, acks)
	assert.Equal(t, 1, packets)
}

func TestSession_UnknownBatteryKindKeepsSessionAlive(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.Receive(dataFrame(0, 0x13, 0x07, 0x32, 0x00)))

	assert.Equal(t, EventBytesToSend, advance(t, s).Type)
	ev := advance(t, s)
	require.Equal(t, EventPacketReady, ev.Type)
	assert.Equal(t, PacketUnknown, ev.Packet.Type)
	assert.NoError(t, s.Err())
}

func TestSession_PartialFrame(t *testing.T) {
	s, _ := newTestSession(t)
	frame := dataFrame(0, 0x69, 0x02, 0x11, 0x02, 0x01, 0x01, 0x00, 0x00)

	require.NoError(t, s.Receive(frame[:5]))
	assert.Equal(t, EventIdle, advance(t, s).Type)

	require.NoError(t, s.Receive(frame[5:]))
	assert.Equal(t, EventBytesToSend, advance(t, s).Type)

	ev := advance(t, s)
	require.Equal(t, EventPacketReady, ev.Type)
	assert.Equal(t, PacketAncNotify, ev.Packet.Type)
	assert.Equal(t, AncOn, ev.Packet.Anc.Mode)
}

func TestSession_UnknownDataType(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.Receive(MarshalFrame(Frame{DataType: DataTypeCommand2, Payload: []byte{0x42}})))

	advance(t, s)
	ev := advance(t, s)
	require.Equal(t, EventPacketReady, ev.Type)
	assert.Equal(t, PacketUnknown, ev.Packet.Type)
	assert.Equal(t, DataTypeCommand2, ev.Packet.DataType)
}

func TestSession_RetransmitThenFail(t *testing.T) {
	s, clock := newTestSession(t)
	require.NoError(t, s.Send(BatteryRequest(BatteryCase)))

	first := advance(t, s)
	require.Equal(t, EventBytesToSend, first.Type)

	for i := 0; i < 2; i++ {
		clock.now = clock.now.Add(time.Second)
		ev := advance(t, s)
		require.Equal(t, EventBytesToSend, ev.Type)
		assert.Equal(t, first.Bytes, ev.Bytes)
	}

	clock.now = clock.now.Add(time.Second)
	_, err := s.Advance()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAckTimeout))

	assert.Error(t, s.Send(AncGet()))
	assert.Error(t, s.Receive(nil))
}

func TestSession_IntegrityErrorIsFatal(t *testing.T) {
	s, _ := newTestSession(t)
	frame := dataFrame(0, 0x01)
	frame[len(frame)-2] ^= 0xff

	err := s.Receive(frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksum))
	assert.Equal(t, err, s.Err())

	_, err = s.Advance()
	assert.Error(t, err)
}

func TestSession_GarbageBeforeFrame(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.Receive([]byte{0x00, 0x3e})
	assert.True(t, errors.Is(err, ErrFrameStart))
}

func TestSession_OutboxFull(t *testing.T) {
	s, _ := newTestSession(t)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Send(AncGet()))
	}
	err := s.Send(AncGet())
	assert.True(t, errors.Is(err, ErrOutboxFull))

	// a full outbox is not fatal
	assert.NoError(t, s.Err())
}

func TestSession_RejectsInvalidCommand(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.Send(Command{})
	assert.True(t, errors.Is(err, ErrUnsupportedCommand))
	assert.NoError(t, s.Err())
}
