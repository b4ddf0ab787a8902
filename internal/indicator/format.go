package indicator

import (
	"fmt"

	"linuxsony/internal/headset"
	"linuxsony/internal/util"
)

const (
	appTitle       = "LinuxSony"
	searchingLabel = "Searching for headphones..."
)

// batteryTitle is the menu text for one battery line.
func batteryTitle(line headset.BatteryLine) string {
	charging := ""
	if line.Charging {
		charging = " ⚡"
	}
	return fmt.Sprintf("  %-6s %d%%%s", line.Name+":", line.Level, charging)
}

// ancTitle is the menu text for the noise control line.
func ancTitle(st headset.State) string {
	if st.Anc == nil {
		return "  Noise control: --"
	}
	return fmt.Sprintf("  Noise control: %s", st.Anc.Mode)
}

// tooltip summarises the lowest known battery level.
func tooltip(st headset.State) string {
	lines := st.BatteryLines()
	if len(lines) == 0 {
		return searchingLabel
	}
	levels := make([]uint8, 0, len(lines))
	for _, l := range lines {
		levels = append(levels, l.Level)
	}
	return fmt.Sprintf("%s - %d%%", appTitle, util.MinOr(levels, 0))
}
