package headset

import (
	"linuxsony/internal/protocol"
)

// DeviceBattery is the battery of the headphones themselves: either a
// SingleBattery (headband models) or a DualBattery (true wireless earbuds).
// Read it with a type switch.
type DeviceBattery interface {
	isDeviceBattery()
}

// SingleBattery is one battery level, also used for the charging case.
type SingleBattery struct {
	Level    uint8
	Charging bool
}

// DualBattery holds per-earbud levels.
type DualBattery struct {
	Left          uint8
	Right         uint8
	LeftCharging  bool
	RightCharging bool
}

func (SingleBattery) isDeviceBattery() {}
func (DualBattery) isDeviceBattery()   {}

// State is the cached view of the device. Nil fields have not been reported yet.
// Each field is replaced as a whole when a reply or notification arrives.
type State struct {
	DeviceBattery DeviceBattery
	CaseBattery   *SingleBattery
	Anc           *protocol.AncSettings
}

// Clone returns a copy that shares no pointers with s.
func (s State) Clone() State {
	out := State{DeviceBattery: s.DeviceBattery}
	if s.CaseBattery != nil {
		c := *s.CaseBattery
		out.CaseBattery = &c
	}
	if s.Anc != nil {
		a := *s.Anc
		out.Anc = &a
	}
	return out
}

// HasBatteryData returns true if any battery level is available
func (s State) HasBatteryData() bool {
	return s.DeviceBattery != nil || s.CaseBattery != nil
}

// LowestBattery returns the lowest level of the headphones themselves (not the
// case), and false if no level is known yet.
func (s State) LowestBattery() (uint8, bool) {
	switch b := s.DeviceBattery.(type) {
	case SingleBattery:
		return b.Level, true
	case DualBattery:
		return min(b.Left, b.Right), true
	default:
		return 0, false
	}
}

// BatteryLine is one labelled battery level for display.
type BatteryLine struct {
	Name     string
	Level    uint8
	Charging bool
}

// BatteryLines lists the known batteries in display order: Device or
// Left/Right, then Case.
func (s State) BatteryLines() []BatteryLine {
	var lines []BatteryLine
	switch b := s.DeviceBattery.(type) {
	case SingleBattery:
		lines = append(lines, BatteryLine{Name: "Device", Level: b.Level, Charging: b.Charging})
	case DualBattery:
		lines = append(lines,
			BatteryLine{Name: "Left", Level: b.Left, Charging: b.LeftCharging},
			BatteryLine{Name: "Right", Level: b.Right, Charging: b.RightCharging},
		)
	}
	if s.CaseBattery != nil {
		lines = append(lines, BatteryLine{Name: "Case", Level: s.CaseBattery.Level, Charging: s.CaseBattery.Charging})
	}
	return lines
}

// applyBattery stores a reading in the slot matching its shape.
func (s *State) applyBattery(r protocol.BatteryReading) {
	switch r.Kind {
	case protocol.BatterySingle:
		s.DeviceBattery = SingleBattery{Level: r.Level, Charging: r.Charging}
	case protocol.BatteryDual:
		s.DeviceBattery = DualBattery{
			Left:          r.LeftLevel,
			Right:         r.RightLevel,
			LeftCharging:  r.LeftCharging,
			RightCharging: r.RightCharging,
		}
	case protocol.BatteryCase:
		s.CaseBattery = &SingleBattery{Level: r.Level, Charging: r.Charging}
	}
}
