// Package ipc is the local control channel between the daemon and the CLI.
//
// Each connection carries exactly one JSON request followed by one JSON
// response over a unix socket.
package ipc

import (
	"linuxsony/internal/headset"
)

// Commands understood by the daemon
const (
	CommandStatus  = "status"
	CommandAncNext = "anc-next"
)

// Request is sent from the CLI client to the daemon.
type Request struct {
	Command string `json:"command"` // "status" | "anc-next"
}

// Battery is one labelled battery level.
type Battery struct {
	Name     string `json:"name"`
	Level    uint8  `json:"level"`
	Charging bool   `json:"charging,omitempty"`
}

// Anc is the noise control view.
type Anc struct {
	Mode         string `json:"mode"`
	FocusOnVoice bool   `json:"focus_on_voice"`
	AmbientLevel uint8  `json:"ambient_level"`
}

// Response is sent from the daemon back to the CLI client.
type Response struct {
	Connected bool      `json:"connected"`
	Device    string    `json:"device,omitempty"`
	Batteries []Battery `json:"batteries,omitempty"`
	Anc       *Anc      `json:"anc,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// StatusFrom builds a response from a cached device state.
func StatusFrom(device string, st headset.State) Response {
	resp := Response{Connected: true, Device: device}
	for _, line := range st.BatteryLines() {
		resp.Batteries = append(resp.Batteries, Battery{Name: line.Name, Level: line.Level, Charging: line.Charging})
	}
	if st.Anc != nil {
		resp.Anc = &Anc{
			Mode:         st.Anc.Mode.String(),
			FocusOnVoice: st.Anc.FocusOnVoice,
			AmbientLevel: st.Anc.AmbientLevel,
		}
	}
	return resp
}
