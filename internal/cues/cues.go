// Package cues describes the short tones a client plays on capture
// transitions. The server never renders audio; it sends these
// signatures and the client synthesizes them.
package cues

// Name identifies a cue.
type Name string

const (
	Start   Name = "start"
	Success Name = "success"
	Error   Name = "error"
)

// Tone is a single enveloped oscillator note.
type Tone struct {
	FrequencyHz float64 `json:"frequencyHz"`
	Waveform    string  `json:"waveform"`
	DurationMs  int     `json:"durationMs"`
	DelayMs     int     `json:"delayMs"`
}

var signatures = map[Name][]Tone{
	// High C.
	Start: {
		{FrequencyHz: 523.25, Waveform: "sine", DurationMs: 150},
	},
	// E5 then A5, ascending.
	Success: {
		{FrequencyHz: 659.25, Waveform: "sine", DurationMs: 100},
		{FrequencyHz: 880.00, Waveform: "sine", DurationMs: 200, DelayMs: 100},
	},
	// Two low A3 thuds.
	Error: {
		{FrequencyHz: 220.00, Waveform: "triangle", DurationMs: 100},
		{FrequencyHz: 220.00, Waveform: "triangle", DurationMs: 100, DelayMs: 150},
	},
}

// Tones returns a copy of the tone signature for name, or nil if unknown.
func Tones(name Name) []Tone {
	sig, ok := signatures[name]
	if !ok {
		return nil
	}
	out := make([]Tone, len(sig))
	copy(out, sig)
	return out
}
