// Package protocol implements the Sony headphones "v1" serial protocol used over
// Bluetooth RFCOMM (service UUID 96cc203e-5068-46ad-b32d-e316f5e069ba).
//
// The package has three layers:
//   - Frames: start/end markers, byte escaping, sequence numbers and checksums
//   - Payloads: typed commands and packets for the command-1 vocabulary
//   - Session: a poll-driven state machine that acknowledges frames, keeps one
//     frame in flight and retransmits it on timeout
//
// Protocol Flow:
//  1. Host sends InitRequest
//  2. Headphones answer with InitReply
//  3. Host requests noise control and battery state
//  4. Headphones send replies and unsolicited notifications
//
// Every data frame is acknowledged by the receiver with an ACK frame before the
// sender may transmit the next one.
package protocol

import (
	"fmt"
	"time"
)

// AncMode is the ambient sound control mode of the headphones.
type AncMode uint8

const (
	AncOff AncMode = iota
	AncAmbient
	AncOn
	AncWind
)

func (m AncMode) String() string {
	switch m {
	case AncOff:
		return "Off"
	case AncAmbient:
		return "Ambient"
	case AncOn:
		return "Noise Cancelling"
	case AncWind:
		return "Wind Reduction"
	default:
		return fmt.Sprintf("AncMode(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the four known modes.
func (m AncMode) Valid() bool {
	return m <= AncWind
}

// AncSettings is the full ambient sound control state.
type AncSettings struct {
	Mode         AncMode
	FocusOnVoice bool
	AmbientLevel uint8
}

// BatteryKind selects which battery a request or reading refers to.
type BatteryKind uint8

const (
	BatterySingle BatteryKind = 0x00
	BatteryDual   BatteryKind = 0x01
	BatteryCase   BatteryKind = 0x02
)

func (k BatteryKind) String() string {
	switch k {
	case BatterySingle:
		return "Single"
	case BatteryDual:
		return "Dual"
	case BatteryCase:
		return "Case"
	default:
		return fmt.Sprintf("BatteryKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the three known battery kinds.
func (k BatteryKind) Valid() bool {
	return k <= BatteryCase
}

// BatteryReading is a decoded battery reply or notification.
// Level and Charging are set for Single and Case readings,
// the Left*/Right* fields for Dual readings.
type BatteryReading struct {
	Kind          BatteryKind
	Level         uint8
	Charging      bool
	LeftLevel     uint8
	LeftCharging  bool
	RightLevel    uint8
	RightCharging bool
}

// CommandType identifies an outgoing request.
type CommandType uint8

const (
	CommandInitRequest CommandType = iota + 1
	CommandAncGet
	CommandAncSet
	CommandBatteryRequest
)

func (t CommandType) String() string {
	switch t {
	case CommandInitRequest:
		return "InitRequest"
	case CommandAncGet:
		return "AncGet"
	case CommandAncSet:
		return "AncSet"
	case CommandBatteryRequest:
		return "BatteryRequest"
	default:
		return fmt.Sprintf("CommandType(%d)", uint8(t))
	}
}

// Command is an outgoing request. Anc is only meaningful for CommandAncSet and
// Battery only for CommandBatteryRequest.
type Command struct {
	Type    CommandType
	Anc     AncSettings
	Battery BatteryKind
}

// InitRequest returns the handshake command.
func InitRequest() Command { return Command{Type: CommandInitRequest} }

// AncGet returns a request for the current ambient sound control state.
func AncGet() Command { return Command{Type: CommandAncGet} }

// AncSet returns a command changing the ambient sound control state.
func AncSet(s AncSettings) Command { return Command{Type: CommandAncSet, Anc: s} }

// BatteryRequest returns a request for the given battery.
func BatteryRequest(k BatteryKind) Command {
	return Command{Type: CommandBatteryRequest, Battery: k}
}

func (c Command) String() string {
	switch c.Type {
	case CommandAncSet:
		return fmt.Sprintf("AncSet(%s, focus=%t, level=%d)", c.Anc.Mode, c.Anc.FocusOnVoice, c.Anc.AmbientLevel)
	case CommandBatteryRequest:
		return fmt.Sprintf("BatteryRequest(%s)", c.Battery)
	default:
		return c.Type.String()
	}
}

// PacketType identifies a decoded inbound packet.
type PacketType uint8

const (
	PacketUnknown PacketType = iota
	PacketInitReply
	PacketAncReply
	PacketAncNotify
	PacketBatteryReply
	PacketBatteryNotify
)

func (t PacketType) String() string {
	switch t {
	case PacketInitReply:
		return "InitReply"
	case PacketAncReply:
		return "AncReply"
	case PacketAncNotify:
		return "AncNotify"
	case PacketBatteryReply:
		return "BatteryReply"
	case PacketBatteryNotify:
		return "BatteryNotify"
	default:
		return "Unknown"
	}
}

// Packet is a decoded inbound message.
//
// Unknown packets keep the frame data type and raw payload so debugging tools
// can show them; they are never an error.
type Packet struct {
	Type     PacketType
	Anc      AncSettings
	Battery  BatteryReading
	DataType byte
	Payload  []byte
}

// EventType identifies what Session.Advance produced.
type EventType uint8

const (
	EventIdle EventType = iota
	EventPacketReady
	EventBytesToSend
)

// Event is the result of one Session.Advance step.
//
// For EventIdle a zero Deadline means nothing is pending and the caller can
// wait for input indefinitely.
type Event struct {
	Type     EventType
	Packet   Packet
	Bytes    []byte
	Deadline time.Time
}

// HasDeadline reports whether an idle event carries a deadline.
func (e Event) HasDeadline() bool {
	return !e.Deadline.IsZero()
}
