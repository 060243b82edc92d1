package capture

import (
	"context"
	"errors"

	"voice-capture-service/internal/service/stt"
	"voice-capture-service/internal/volume"
)

var (
	// ErrAudioDenied is returned by Provider.RequestAudio when the user
	// refused microphone access.
	ErrAudioDenied = errors.New("capture: audio permission denied")

	// ErrUnsupported is returned by Open when the provider reports that
	// voice capture cannot be used.
	ErrUnsupported = errors.New("capture: voice capture not supported")

	// ErrSessionActive is returned when a second session is requested
	// while one is still running on the same surface.
	ErrSessionActive = errors.New("capture: a session is already active")
)

// Provider gives a session access to the environment's recognition and
// audio facilities.
type Provider interface {
	// Supported reports whether voice capture is usable at all.
	Supported() bool

	// NewRecognizer creates a recognition stream for languageTag in
	// continuous mode with interim results.
	NewRecognizer(languageTag string) (Recognizer, error)

	// RequestAudio acquires a live microphone stream. It returns
	// ErrAudioDenied when access is refused.
	RequestAudio(ctx context.Context) (AudioStream, error)
}

// Recognizer is a recognition stream.
type Recognizer interface {
	Start(ctx context.Context, cb stt.Callback) error
	Stop() error
	Abort() error
}

// AudioStream is a live microphone stream.
type AudioStream interface {
	// NewAnalyzer attaches a frequency analyzer with the given FFT size.
	NewAnalyzer(fftSize int) (volume.Analyzer, error)
	// Close stops the stream's tracks.
	Close() error
}

// Cues plays short feedback tones. Calls must not block.
type Cues interface {
	Start()
	Success()
	Error()
}

type nopCues struct{}

func (nopCues) Start()   {}
func (nopCues) Success() {}
func (nopCues) Error()   {}

// Reporter receives the outcome of every session.
type Reporter interface {
	Report(Outcome)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Outcome)

// Report implements Reporter.
func (f ReporterFunc) Report(o Outcome) { f(o) }

// Reporters fans an outcome out to every non-nil reporter in order.
func Reporters(rs ...Reporter) Reporter {
	return ReporterFunc(func(o Outcome) {
		for _, r := range rs {
			if r != nil {
				r.Report(o)
			}
		}
	})
}
