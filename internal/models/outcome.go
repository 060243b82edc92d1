// Package models defines the data structures for capture outcome events.
package models

const (
	EventTypeCaptureResult  = "capture.session.result"
	EventTypeCaptureFailure = "capture.session.failure"
)

// CaptureOutcome describes how a capture session ended. It never carries
// the transcript itself.
type CaptureOutcome struct {
	EventType    string  `json:"eventType"`
	SessionID    string  `json:"sessionId"`
	ConnectionID string  `json:"connectionId,omitempty"`
	Principal    string  `json:"principal,omitempty"`
	Timestamp    int64   `json:"timestamp"`
	LanguageTag  string  `json:"languageTag"`
	Status       string  `json:"status"`
	Reason       string  `json:"reason"`
	ErrorCode    string  `json:"errorCode,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	TextLength   int     `json:"textLength"`
	Interims     int     `json:"interims"`
	DurationMs   int64   `json:"durationMs"`
}
