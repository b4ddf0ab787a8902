package protocol

import (
	"github.com/pkg/errors"
)

// Command-1 opcodes
const (
	opInitRequest    = 0x00
	opInitReply      = 0x01
	opBatteryRequest = 0x10
	opBatteryReply   = 0x11
	opBatteryNotify  = 0x13
	opAncGet         = 0x66
	opAncReply       = 0x67
	opAncSet         = 0x68
	opAncNotify      = 0x69
)

// ambient sound control payload constants
const (
	ancInquiredType = 0x02
	ancEnabled      = 0x11
	ancDisabled     = 0x00
	ancDualSingle   = 0x02
	ancFixed        = 0x01

	ncAmbient = 0x00
	ncOn      = 0x01
	ncWind    = 0x02

	ancPayloadSize = 8
)

var (
	ErrUnsupportedCommand = errors.New("unsupported command")
	ErrPayloadTooShort    = errors.New("payload too short")
	ErrInvalidValue       = errors.New("invalid payload value")
)

// EncodeCommand builds the command-1 payload for c.
func EncodeCommand(c Command) ([]byte, error) {
	switch c.Type {
	case CommandInitRequest:
		return []byte{opInitRequest, 0x00}, nil

	case CommandAncGet:
		return []byte{opAncGet, ancInquiredType}, nil

	case CommandAncSet:
		return encodeAnc(opAncSet, c.Anc)

	case CommandBatteryRequest:
		if c.Battery > BatteryCase {
			return nil, errors.Wrapf(ErrUnsupportedCommand, "battery kind %d", c.Battery)
		}
		return []byte{opBatteryRequest, byte(c.Battery)}, nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedCommand, "command type %d", c.Type)
	}
}

// encodeAnc lays out an ambient sound control payload.
// Format: [op] 02 [enabled] 02 [nc mode] 01 [focus on voice] [ambient level]
func encodeAnc(op byte, s AncSettings) ([]byte, error) {
	enabled := byte(ancEnabled)
	var nc byte

	switch s.Mode {
	case AncOff:
		enabled = ancDisabled
	case AncAmbient:
		nc = ncAmbient
	case AncOn:
		nc = ncOn
	case AncWind:
		nc = ncWind
	default:
		return nil, errors.Wrapf(ErrUnsupportedCommand, "anc mode %d", s.Mode)
	}

	return []byte{
		op,
		ancInquiredType,
		enabled,
		ancDualSingle,
		nc,
		ancFixed,
		boolByte(s.FocusOnVoice),
		s.AmbientLevel,
	}, nil
}

// DecodePacket decodes a command-1 payload. Opcodes outside the known set decode
// to PacketUnknown without error.
func DecodePacket(payload []byte) (Packet, error) {
	if len(payload) == 0 {
		return Packet{}, ErrPayloadTooShort
	}

	p := Packet{DataType: DataTypeCommand1, Payload: append([]byte(nil), payload...)}

	switch payload[0] {
	case opInitReply:
		p.Type = PacketInitReply

	case opAncReply, opAncNotify:
		anc, err := decodeAnc(payload)
		if err != nil {
			return Packet{}, err
		}
		p.Type = PacketAncReply
		if payload[0] == opAncNotify {
			p.Type = PacketAncNotify
		}
		p.Anc = anc

	case opBatteryReply, opBatteryNotify:
		// Battery kinds added by newer firmware are passed through undecoded.
		if len(payload) >= 2 && !BatteryKind(payload[1]).Valid() {
			p.Type = PacketUnknown
			break
		}
		battery, err := decodeBattery(payload)
		if err != nil {
			return Packet{}, err
		}
		p.Type = PacketBatteryReply
		if payload[0] == opBatteryNotify {
			p.Type = PacketBatteryNotify
		}
		p.Battery = battery

	default:
		p.Type = PacketUnknown
	}

	return p, nil
}

func decodeAnc(payload []byte) (AncSettings, error) {
	if len(payload) < ancPayloadSize {
		return AncSettings{}, errors.Wrapf(ErrPayloadTooShort, "anc payload of %d bytes", len(payload))
	}

	s := AncSettings{
		FocusOnVoice: payload[6] != 0,
		AmbientLevel: payload[7],
	}

	if payload[2] == ancDisabled {
		s.Mode = AncOff
		return s, nil
	}

	switch payload[4] {
	case ncAmbient:
		s.Mode = AncAmbient
	case ncOn:
		s.Mode = AncOn
	case ncWind:
		s.Mode = AncWind
	default:
		return AncSettings{}, errors.Wrapf(ErrInvalidValue, "noise cancelling mode 0x%02x", payload[4])
	}
	return s, nil
}

// decodeBattery parses a battery reply or notification.
//
// Format:
//
//	single/case: [op] [kind] [level] [charging]
//	dual:        [op] 01 [left level] [left charging] [right level] [right charging]
func decodeBattery(payload []byte) (BatteryReading, error) {
	if len(payload) < 4 {
		return BatteryReading{}, errors.Wrapf(ErrPayloadTooShort, "battery payload of %d bytes", len(payload))
	}

	kind := BatteryKind(payload[1])
	switch kind {
	case BatterySingle, BatteryCase:
		if err := checkLevel(payload[2]); err != nil {
			return BatteryReading{}, err
		}
		return BatteryReading{
			Kind:     kind,
			Level:    payload[2],
			Charging: payload[3] == 0x01,
		}, nil

	case BatteryDual:
		if len(payload) < 6 {
			return BatteryReading{}, errors.Wrapf(ErrPayloadTooShort, "dual battery payload of %d bytes", len(payload))
		}
		for _, level := range []byte{payload[2], payload[4]} {
			if err := checkLevel(level); err != nil {
				return BatteryReading{}, err
			}
		}
		return BatteryReading{
			Kind:          kind,
			LeftLevel:     payload[2],
			LeftCharging:  payload[3] == 0x01,
			RightLevel:    payload[4],
			RightCharging: payload[5] == 0x01,
		}, nil

	default:
		return BatteryReading{}, errors.Wrapf(ErrInvalidValue, "battery kind 0x%02x", payload[1])
	}
}

func checkLevel(level byte) error {
	if level > 100 {
		return errors.Wrapf(ErrInvalidValue, "battery level %d", level)
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}
