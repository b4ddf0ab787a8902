package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"linuxsony/internal/headset"
	"linuxsony/internal/protocol"
)

func TestBatteryTitle(t *testing.T) {
	assert.Equal(t, "  Left:  70%", batteryTitle(headset.BatteryLine{Name: "Left", Level: 70}))
	assert.Equal(t, "  Case:  5% ⚡", batteryTitle(headset.BatteryLine{Name: "Case", Level: 5, Charging: true}))
}

func TestAncTitle(t *testing.T) {
	assert.Equal(t, "  Noise control: --", ancTitle(headset.State{}))
	st := headset.State{Anc: &protocol.AncSettings{Mode: protocol.AncWind}}
	assert.Equal(t, "  Noise control: "+protocol.AncWind.String(), ancTitle(st))
}

func TestTooltip(t *testing.T) {
	assert.Equal(t, searchingLabel, tooltip(headset.State{}))

	st := headset.State{
		DeviceBattery: headset.DualBattery{Left: 70, Right: 60},
		CaseBattery:   &headset.SingleBattery{Level: 90},
	}
	assert.Equal(t, "LinuxSony - 60%", tooltip(st))
}
