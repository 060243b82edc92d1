package capture

import (
	"time"
)

// VoiceResult is the final output of a successful session.
type VoiceResult struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Snapshot is what a presentation layer renders.
type Snapshot struct {
	SessionID    string  `json:"sessionId"`
	LanguageTag  string  `json:"languageTag"`
	Status       Status  `json:"status"`
	InterimText  string  `json:"interimText"`
	DisplayText  string  `json:"displayText"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	StatusIcon   string  `json:"statusIcon,omitempty"`
	Volume       float64 `json:"volume"`
}

// Reason says why a session ended.
type Reason string

const (
	ReasonResult       Reason = "result"
	ReasonEmptyFinal   Reason = "empty-final"
	ReasonTimeout      Reason = "timeout"
	ReasonDenied       Reason = "denied"
	ReasonBackendError Reason = "backend-error"
	ReasonStoppedEmpty Reason = "stopped-empty"
	ReasonCancelled    Reason = "cancelled"
	ReasonUnmounted    Reason = "unmounted"
)

// Outcome summarizes a finished session. It never carries transcript text.
type Outcome struct {
	SessionID   string
	LanguageTag string
	Status      Status
	Reason      Reason
	ErrorCode   string
	Confidence  float64
	TextLength  int
	Interims    int
	Duration    time.Duration
}

// Timing holds the session's delays and sampling parameters.
type Timing struct {
	// SilenceTimeout is the inactivity bound before a session gives up.
	SilenceTimeout time.Duration
	// SuccessDelay separates the success transition from the result handoff.
	SuccessDelay time.Duration
	// CloseDelay separates an error or denial from closing.
	CloseDelay time.Duration
	// VolumeInterval is the volume sampling cadence.
	VolumeInterval time.Duration
	// FFTSize is the analyzer window.
	FFTSize int
}
