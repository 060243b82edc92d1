package capture

import (
	"fmt"
)

// Status represents the lifecycle state of a capture session.
type Status int

const (
	// StatusListening - Session is capturing, interim text may change.
	StatusListening Status = iota
	// StatusSuccess - A final transcript was accepted, handoff pending.
	StatusSuccess
	// StatusError - Backend error or silence timeout.
	StatusError
	// StatusDenied - Microphone or recognition access was refused.
	StatusDenied
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusListening:
		return "listening"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusDenied:
		return "denied"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText encodes the status as its string form.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true for every status other than listening.
func (s Status) IsTerminal() bool {
	return s != StatusListening
}

// CanTransition reports whether a session may move from s to next.
//
// State transitions:
//
//	listening → success
//	listening → error
//	listening → denied
//
// Terminal statuses never change.
func (s Status) CanTransition(next Status) bool {
	return s == StatusListening && next.IsTerminal() && next <= StatusDenied
}
