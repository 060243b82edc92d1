// Package stt defines the interface for Speech-to-Text adapters.
package stt

import "context"

// Result is one recognition segment as reported by the provider.
type Result struct {
	Transcript string
	Confidence float64
	IsFinal    bool
}

// Callback receives recognition events from the STT provider.
type Callback interface {
	// OnStart is called once the provider is listening.
	OnStart()

	// OnResults is called with the segments the provider currently reports.
	// Segments before resultIndex are unchanged since the previous call.
	OnResults(resultIndex int, results []Result)

	// OnError is called when the provider reports a problem. The error
	// carries an ErrorCode, see CodeOf.
	OnError(err error)
}

// Adapter defines the interface for STT providers (Google, mock, ...).
// An adapter serves a single recognition stream in continuous mode with
// interim results enabled.
type Adapter interface {
	// Start begins a streaming recognition session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends 16-bit little-endian mono PCM to the provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Stop asks the provider to finalize what it has heard. A final
	// result may still be delivered after Stop.
	Stop() error

	// Abort ends the stream immediately and drops pending results. A
	// callback already in flight may still complete.
	Abort() error
}

// Factory creates an adapter for one recognition stream in a language.
type Factory func(languageTag string) (Adapter, error)
