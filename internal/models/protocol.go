package models

// Client message types on the capture socket.
const (
	ClientOpen   = "open"
	ClientAudio  = "audio"
	ClientStop   = "stop"
	ClientCancel = "cancel"
)

// ClientMessage is a text frame sent by a capture client. Binary frames
// carry PCM16LE mono audio and have no envelope.
type ClientMessage struct {
	Type string `json:"type"`

	// open
	Lang   string            `json:"lang,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
	// Punctuation turns spoken punctuation substitution off when false.
	Punctuation *bool `json:"punctuation,omitempty"`

	// audio: the answer to the microphone permission prompt
	Granted *bool `json:"granted,omitempty"`
}
