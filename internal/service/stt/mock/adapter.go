// Package mock provides a mock STT adapter for running without cloud credentials.
// It simulates a continuous recognizer: progressive interim results, one
// final result per stream, and spoken punctuation in the transcripts.
package mock

import (
	"context"
	"sync"
	"time"

	"voice-capture-service/internal/punctuation"
	"voice-capture-service/internal/service/stt"
)

// DefaultDelay simulates provider processing time per result.
const DefaultDelay = 50 * time.Millisecond

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string // Progressive interim transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
	// FailWith, when set, replaces the final result with an error.
	FailWith stt.ErrorCode
}

// Utterances holds sample utterances per primary language subtag.
var Utterances = map[string][]SimulatedUtterance{
	"en": {
		{
			Partials:   []string{"hello", "hello comma how", "hello comma how are you"},
			Final:      "hello comma how are you question mark",
			Confidence: 0.94,
		},
		{
			Partials:   []string{"send", "send the report", "send the report by friday"},
			Final:      "send the report by friday period",
			Confidence: 0.91,
		},
	},
	"fr": {
		{
			Partials:   []string{"bonjour", "bonjour virgule ça", "bonjour virgule ça va"},
			Final:      "bonjour virgule ça va point d'interrogation",
			Confidence: 0.92,
		},
	},
	"de": {
		{
			Partials:   []string{"hallo", "hallo komma wie", "hallo komma wie geht es"},
			Final:      "hallo komma wie geht es fragezeichen",
			Confidence: 0.9,
		},
	},
	"es": {
		{
			Partials:   []string{"hola", "hola coma qué tal"},
			Final:      "hola coma qué tal signo de interrogación",
			Confidence: 0.93,
		},
	},
	"ja": {
		{
			Partials:   []string{"こんにちは", "こんにちはてん元気"},
			Final:      "こんにちはてん元気ですかはてな",
			Confidence: 0.88,
		},
	},
}

// utteranceCounter tracks which utterance to use next (cycles per language)
var (
	utteranceCounter = map[string]int{}
	counterMu        sync.Mutex
)

// Adapter implements stt.Adapter with mock responses.
// It simulates realistic STT behavior:
// - One interim result per audio frame until the partials run out
// - Exactly one final result, on the next frame or on Stop
// - Nothing at all after Abort
type Adapter struct {
	delay     time.Duration
	utterance SimulatedUtterance

	mu            sync.Mutex
	cb            stt.Callback
	queue         chan func(stt.Callback)
	audioReceived int
	partialIndex  int
	finalSent     bool // Ensures only one final per stream
	ended         bool // No more results will be queued
	aborted       bool
}

// New creates a mock adapter that cycles through the sample utterances of
// languageTag, falling back to English.
func New(languageTag string) *Adapter {
	lang := punctuation.PrimarySubtag(languageTag)
	samples, ok := Utterances[lang]
	if !ok {
		lang = punctuation.DefaultLanguage
		samples = Utterances[lang]
	}

	counterMu.Lock()
	idx := utteranceCounter[lang] % len(samples)
	utteranceCounter[lang]++
	counterMu.Unlock()

	return NewWithUtterance(samples[idx], DefaultDelay)
}

// NewWithUtterance creates a mock adapter that plays back u, delivering
// each result after delay.
func NewWithUtterance(u SimulatedUtterance, delay time.Duration) *Adapter {
	if delay < 0 {
		delay = 0
	}
	return &Adapter{
		delay:     delay,
		utterance: u,
		queue:     make(chan func(stt.Callback), len(u.Partials)+2),
	}
}

// Factory creates mock adapters; it satisfies stt.Factory.
func Factory(languageTag string) (stt.Adapter, error) {
	return New(languageTag), nil
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	if a.cb != nil || a.aborted {
		a.mu.Unlock()
		return stt.NewError(stt.CodeAborted, nil)
	}
	a.cb = cb
	a.mu.Unlock()

	go a.deliver()
	cb.OnStart()
	return nil
}

// SendAudio simulates receiving audio and triggers progressive interim results.
// When all partials are sent, the next frame completes the utterance, like
// end-pointing on silence would.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ended || a.cb == nil {
		return nil
	}
	a.audioReceived++

	// Send next partial if available (one partial per audio frame)
	if a.partialIndex < len(a.utterance.Partials) {
		text := a.utterance.Partials[a.partialIndex]
		a.partialIndex++
		a.enqueueLocked(func(cb stt.Callback) {
			cb.OnResults(0, []stt.Result{{Transcript: text}})
		})
		return nil
	}

	a.finishLocked()
	return nil
}

// Stop ends the stream. If the final result wasn't sent via SendAudio and
// any audio was heard, it is sent now.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ended {
		return nil
	}
	if a.audioReceived == 0 {
		a.endLocked()
		return nil
	}
	a.finishLocked()
	return nil
}

// Abort ends the stream and drops every pending result.
func (a *Adapter) Abort() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aborted = true
	a.endLocked()
	return nil
}

func (a *Adapter) finishLocked() {
	if a.finalSent {
		return
	}
	a.finalSent = true

	utt := a.utterance
	if utt.FailWith != "" {
		a.enqueueLocked(func(cb stt.Callback) {
			cb.OnError(stt.NewError(utt.FailWith, nil))
		})
	} else {
		a.enqueueLocked(func(cb stt.Callback) {
			cb.OnResults(0, []stt.Result{{
				Transcript: utt.Final,
				Confidence: utt.Confidence,
				IsFinal:    true,
			}})
		})
	}
	a.endLocked()
}

func (a *Adapter) enqueueLocked(fn func(stt.Callback)) {
	select {
	case a.queue <- fn:
	default:
	}
}

func (a *Adapter) endLocked() {
	if a.ended {
		return
	}
	a.ended = true
	close(a.queue)
}

// deliver runs queued callbacks in order, outside the lock.
func (a *Adapter) deliver() {
	for fn := range a.queue {
		if a.delay > 0 {
			time.Sleep(a.delay)
		}

		a.mu.Lock()
		cb := a.cb
		aborted := a.aborted
		a.mu.Unlock()

		if aborted || cb == nil {
			continue
		}
		fn(cb)
	}
}
