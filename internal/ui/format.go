package ui

import (
	"fmt"

	"linuxsony/internal/protocol"
)

// ancSubtitle describes the noise control settings in one line.
func ancSubtitle(s protocol.AncSettings) string {
	switch s.Mode {
	case protocol.AncAmbient:
		text := fmt.Sprintf("%s, level %d", s.Mode, s.AmbientLevel)
		if s.FocusOnVoice {
			text += ", focus on voice"
		}
		return text
	default:
		return s.Mode.String()
	}
}
