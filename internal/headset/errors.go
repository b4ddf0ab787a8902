package headset

import "fmt"

// ConstructionError reports that the initial handshake request could not be
// handed to the codec. The driver is unusable.
type ConstructionError struct {
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("headset: send init request: %v", e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause reach the codec error.
func (e *ConstructionError) Cause() error { return e.Err }

// SessionError wraps a codec failure during Receive or Poll. It is terminal:
// discard the driver and build a new one to reconnect.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("headset: %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause reach the codec error.
func (e *SessionError) Cause() error { return e.Err }
