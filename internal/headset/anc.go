package headset

import (
	"linuxsony/internal/protocol"
)

// ancTargets holds the fixed settings sent for each target mode.
var ancTargets = map[protocol.AncMode]protocol.AncSettings{
	protocol.AncOff:     {Mode: protocol.AncOff},
	protocol.AncAmbient: {Mode: protocol.AncAmbient, AmbientLevel: 17},
	protocol.AncOn:      {Mode: protocol.AncOn},
	protocol.AncWind:    {Mode: protocol.AncWind},
}

// NextAncSettings returns the settings for the mode after current in the cycle
// Off -> Ambient -> On -> Wind -> Off. With no known state the target is On.
func NextAncSettings(current *protocol.AncSettings) protocol.AncSettings {
	if current == nil {
		return ancTargets[protocol.AncOn]
	}

	var next protocol.AncMode
	switch current.Mode {
	case protocol.AncOff:
		next = protocol.AncAmbient
	case protocol.AncAmbient:
		next = protocol.AncOn
	case protocol.AncOn:
		next = protocol.AncWind
	default:
		next = protocol.AncOff
	}
	return ancTargets[next]
}
