package headset

import (
	"fmt"
	"time"
)

// ActionType tells the caller what to do after a Poll.
type ActionType uint8

const (
	// ActionWait: nothing to do until new bytes arrive or the timeout elapses.
	ActionWait ActionType = iota
	// ActionSend: write Bytes to the transport.
	ActionSend
	// ActionPollAgain: call Poll again before doing anything else.
	ActionPollAgain
	// ActionRefreshUI: the cached device state may have changed.
	ActionRefreshUI
)

func (t ActionType) String() string {
	switch t {
	case ActionWait:
		return "Wait"
	case ActionSend:
		return "Send"
	case ActionPollAgain:
		return "PollAgain"
	case ActionRefreshUI:
		return "RefreshUi"
	default:
		return fmt.Sprintf("ActionType(%d)", uint8(t))
	}
}

// Action is the single instruction returned by Driver.Poll.
//
// Bytes is set for ActionSend. For ActionWait, HasTimeout reports whether the
// caller must poll again after Timeout even without new input; otherwise it may
// wait indefinitely.
type Action struct {
	Type       ActionType
	Bytes      []byte
	Timeout    time.Duration
	HasTimeout bool
}

func (a Action) String() string {
	switch a.Type {
	case ActionSend:
		return fmt.Sprintf("Send(%d bytes)", len(a.Bytes))
	case ActionWait:
		if a.HasTimeout {
			return fmt.Sprintf("Wait(%s)", a.Timeout)
		}
		return "Wait(indefinitely)"
	default:
		return a.Type.String()
	}
}
