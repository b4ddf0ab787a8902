package protocol

import (
	"fmt"
	"strings"
)

// DumpPacket renders raw bytes as space separated hex, e.g. "3e 0c 00 3c".
func DumpPacket(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}

// String returns a short description of the packet for logs.
func (p Packet) String() string {
	switch p.Type {
	case PacketInitReply:
		return "InitReply"
	case PacketAncReply, PacketAncNotify:
		return fmt.Sprintf("%s(%s, focus=%t, level=%d)", p.Type, p.Anc.Mode, p.Anc.FocusOnVoice, p.Anc.AmbientLevel)
	case PacketBatteryReply, PacketBatteryNotify:
		return fmt.Sprintf("%s(%s)", p.Type, p.Battery)
	default:
		return fmt.Sprintf("Unknown(type=0x%02x, payload=%s)", p.DataType, DumpPacket(p.Payload))
	}
}

func (r BatteryReading) String() string {
	if r.Kind == BatteryDual {
		return fmt.Sprintf("Dual L=%d%%%s R=%d%%%s", r.LeftLevel, chargingMark(r.LeftCharging), r.RightLevel, chargingMark(r.RightCharging))
	}
	return fmt.Sprintf("%s %d%%%s", r.Kind, r.Level, chargingMark(r.Charging))
}

func chargingMark(charging bool) string {
	if charging {
		return " (Charging)"
	}
	return ""
}
