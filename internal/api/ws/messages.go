package ws

import (
	"voice-capture-service/internal/capture"
	"voice-capture-service/internal/cues"
)

// Server message types on the capture socket.
const (
	typeReady    = "ready"
	typeSnapshot = "snapshot"
	typeCue      = "cue"
	typeResult   = "result"
	typeClose    = "close"
	typeError    = "error"
)

// serverMessage is every text frame the server sends. Only the fields of
// the given type are set.
type serverMessage struct {
	Type         string               `json:"type"`
	ConnectionID string               `json:"connectionId,omitempty"`
	SessionID    string               `json:"sessionId,omitempty"`
	Snapshot     *capture.Snapshot    `json:"snapshot,omitempty"`
	Cue          cues.Name            `json:"cue,omitempty"`
	Tones        []cues.Tone          `json:"tones,omitempty"`
	Result       *capture.VoiceResult `json:"result,omitempty"`
	Message      string               `json:"message,omitempty"`
}

func readyMessage(connectionID string) serverMessage {
	return serverMessage{Type: typeReady, ConnectionID: connectionID}
}

func snapshotMessage(snap capture.Snapshot) serverMessage {
	return serverMessage{Type: typeSnapshot, SessionID: snap.SessionID, Snapshot: &snap}
}

func cueMessage(sessionID string, name cues.Name) serverMessage {
	return serverMessage{Type: typeCue, SessionID: sessionID, Cue: name, Tones: cues.Tones(name)}
}

func resultMessage(sessionID string, r capture.VoiceResult) serverMessage {
	return serverMessage{Type: typeResult, SessionID: sessionID, Result: &r}
}

func closeMessage(sessionID string) serverMessage {
	return serverMessage{Type: typeClose, SessionID: sessionID}
}

func errorMessage(sessionID string, err error) serverMessage {
	return serverMessage{Type: typeError, SessionID: sessionID, Message: err.Error()}
}
