// Package audio routes a client's microphone frames to the recognizer and
// the volume analyzer of one capture attempt.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"voice-capture-service/internal/capture"
	"voice-capture-service/internal/observability/logging"
	"voice-capture-service/internal/observability/metrics"
	"voice-capture-service/internal/service/stt"
	"voice-capture-service/internal/volume"
)

var (
	// ErrLimitExceeded is returned by SendAudio once the attempt was dropped.
	ErrLimitExceeded = errors.New("capture limit exceeded")

	// ErrAlreadyAnswered is returned by Grant when the permission answer
	// was already given.
	ErrAlreadyAnswered = errors.New("audio permission already answered")
)

// CaptureLimits defines safety guardrails for a capture attempt.
// These prevent unbounded resource usage and ensure backpressure.
type CaptureLimits struct {
	MaxAudioBytes int64         // Max audio accepted per attempt
	MaxDuration   time.Duration // Max attempt duration
	MaxInterims   int           // Max interim updates per attempt
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() CaptureLimits {
	return CaptureLimits{
		MaxAudioBytes: 5 * 1024 * 1024, // 5MB (~160 seconds at 16kHz 16-bit mono)
		MaxDuration:   2 * time.Minute, // far beyond any silence timeout
		MaxInterims:   500,             // 500 interim updates max per attempt
	}
}

// Handler serves one capture attempt. It implements capture.Provider on
// top of an STT adapter factory and the client's PCM frames, and
// stt.Callback to enforce limits on what the adapter reports.
type Handler struct {
	factory   stt.Factory
	provider  string
	attemptID string
	limits    CaptureLimits
	clock     clock.Clock
	metrics   *metrics.Metrics
	log       zerolog.Logger
	recLog    zerolog.Logger

	grant     chan bool
	grantOnce sync.Once

	mu        sync.RWMutex
	adapter   stt.Adapter
	cb        stt.Callback
	analyzer  *volume.FFTAnalyzer
	startTime time.Time

	// Current attempt metrics
	audioBytes   int64
	interimCount int
	dropped      bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock sets the clock used for the duration limit.
func WithClock(clk clock.Clock) Option {
	return func(h *Handler) { h.clock = clk }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithProvider names the STT backend in recognizer logs.
func WithProvider(name string) Option {
	return func(h *Handler) { h.provider = name }
}

// NewHandler creates a handler with the default limits.
func NewHandler(factory stt.Factory, attemptID string, opts ...Option) *Handler {
	return NewHandlerWithLimits(factory, attemptID, DefaultLimits(), opts...)
}

// NewHandlerWithLimits creates a handler with custom capture limits.
func NewHandlerWithLimits(factory stt.Factory, attemptID string, limits CaptureLimits, opts ...Option) *Handler {
	h := &Handler{
		factory:   factory,
		provider:  "unknown",
		attemptID: attemptID,
		limits:    limits,
		clock:     clock.New(),
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("audio").With().Str("attemptId", attemptID).Logger(),
		grant:     make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startTime = h.clock.Now()
	h.recLog = h.log
	return h
}

// --- capture.Provider implementation ---

// Supported reports whether a recognizer can be created at all.
func (h *Handler) Supported() bool {
	return h.factory != nil
}

// NewRecognizer creates the attempt's recognizer.
func (h *Handler) NewRecognizer(languageTag string) (capture.Recognizer, error) {
	recLog := logging.WithRecognizer(h.attemptID, languageTag, h.provider)
	adapter, err := h.factory(languageTag)
	if err != nil {
		recLog.Warn().Err(err).Msg("Recognizer could not be created")
		return nil, err
	}
	h.mu.Lock()
	h.recLog = recLog
	h.mu.Unlock()
	return &recognizer{h: h, adapter: adapter}, nil
}

// RequestAudio waits for the client to answer the permission prompt.
func (h *Handler) RequestAudio(ctx context.Context) (capture.AudioStream, error) {
	select {
	case granted := <-h.grant:
		if !granted {
			return nil, capture.ErrAudioDenied
		}
		return &stream{h: h}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Grant records the client's answer to the permission prompt.
func (h *Handler) Grant(granted bool) error {
	err := ErrAlreadyAnswered
	h.grantOnce.Do(func() {
		h.grant <- granted
		err = nil
	})
	return err
}

// SendAudio forwards one PCM frame to the analyzer and the recognizer.
// Returns error if capture limits are exceeded (the attempt is dropped).
func (h *Handler) SendAudio(ctx context.Context, pcm []byte) error {
	h.mu.Lock()
	if h.dropped {
		h.mu.Unlock()
		return ErrLimitExceeded
	}
	h.audioBytes += int64(len(pcm))
	currentBytes := h.audioBytes
	elapsed := h.clock.Since(h.startTime)
	adapter := h.adapter
	analyzer := h.analyzer
	h.mu.Unlock()

	h.metrics.RecordAudioReceived(len(pcm))

	// Check audio bytes limit
	if h.limits.MaxAudioBytes > 0 && currentBytes > h.limits.MaxAudioBytes {
		reason := fmt.Sprintf("max audio bytes exceeded: %d > %d", currentBytes, h.limits.MaxAudioBytes)
		h.drop("audio_bytes", reason)
		return fmt.Errorf("%w: %s", ErrLimitExceeded, reason)
	}

	// Check duration limit
	if h.limits.MaxDuration > 0 && elapsed > h.limits.MaxDuration {
		reason := fmt.Sprintf("max duration exceeded: %v > %v", elapsed, h.limits.MaxDuration)
		h.drop("duration", reason)
		return fmt.Errorf("%w: %s", ErrLimitExceeded, reason)
	}

	if analyzer != nil {
		analyzer.Write(pcm)
	}
	if adapter == nil {
		return nil
	}
	return adapter.SendAudio(ctx, pcm)
}

// IsDropped returns true if the attempt was dropped for exceeding a limit.
func (h *Handler) IsDropped() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// CaptureMetrics holds current attempt usage metrics.
type CaptureMetrics struct {
	AudioBytes   int64
	InterimCount int
	Duration     time.Duration
}

// GetCaptureMetrics returns current attempt metrics for observability.
func (h *Handler) GetCaptureMetrics() CaptureMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return CaptureMetrics{
		AudioBytes:   h.audioBytes,
		InterimCount: h.interimCount,
		Duration:     h.clock.Since(h.startTime),
	}
}

// drop abandons the attempt: the recognizer is aborted and the session
// hears about it as an audio-capture error.
func (h *Handler) drop(limitType, reason string) {
	h.mu.Lock()
	if h.dropped {
		h.mu.Unlock()
		return
	}
	h.dropped = true
	adapter := h.adapter
	cb := h.cb
	h.adapter = nil
	h.mu.Unlock()

	h.metrics.RecordLimitExceeded(limitType)
	h.log.Warn().Str("limit", limitType).Str("reason", reason).Msg("Capture attempt dropped")

	if adapter != nil {
		_ = adapter.Abort()
	}
	if cb != nil {
		cb.OnError(stt.NewError(stt.CodeAudioCapture, errors.New(reason)))
	}
}

// --- stt.Callback implementation ---

// OnStart forwards the adapter's start notification.
func (h *Handler) OnStart() {
	if cb := h.callback(); cb != nil {
		cb.OnStart()
	}
}

// OnResults counts interim updates against the limit and forwards them.
func (h *Handler) OnResults(resultIndex int, results []stt.Result) {
	final := false
	for _, r := range results {
		if r.IsFinal {
			final = true
		}
	}

	h.mu.Lock()
	if h.dropped {
		h.mu.Unlock()
		return
	}
	if !final {
		h.interimCount++
	}
	count := h.interimCount
	cb := h.cb
	h.mu.Unlock()

	if h.limits.MaxInterims > 0 && count > h.limits.MaxInterims {
		reason := fmt.Sprintf("max interims exceeded: %d > %d", count, h.limits.MaxInterims)
		h.drop("interims", reason)
		return
	}
	if cb != nil {
		cb.OnResults(resultIndex, results)
	}
}

// OnError forwards adapter errors unless the attempt was already dropped.
func (h *Handler) OnError(err error) {
	h.mu.RLock()
	dropped := h.dropped
	cb := h.cb
	recLog := h.recLog
	h.mu.RUnlock()

	if dropped || cb == nil {
		return
	}
	recLog.Debug().Err(err).Str("code", string(stt.CodeOf(err))).Msg("Recognizer reported an error")
	cb.OnError(err)
}

func (h *Handler) callback() stt.Callback {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.dropped {
		return nil
	}
	return h.cb
}

// recognizer binds an adapter to the handler so frames reach it.
type recognizer struct {
	h       *Handler
	adapter stt.Adapter
}

func (r *recognizer) Start(ctx context.Context, cb stt.Callback) error {
	r.h.mu.Lock()
	if r.h.dropped {
		r.h.mu.Unlock()
		return stt.NewError(stt.CodeAudioCapture, ErrLimitExceeded)
	}
	r.h.cb = cb
	r.h.adapter = r.adapter
	r.h.mu.Unlock()

	r.h.mu.RLock()
	recLog := r.h.recLog
	r.h.mu.RUnlock()

	if err := r.adapter.Start(ctx, r.h); err != nil {
		recLog.Warn().Err(err).Msg("Recognizer stream failed to start")
		r.detach()
		return err
	}
	recLog.Debug().Msg("Recognizer stream started")
	return nil
}

func (r *recognizer) Stop() error {
	return r.adapter.Stop()
}

func (r *recognizer) Abort() error {
	r.detach()
	return r.adapter.Abort()
}

func (r *recognizer) detach() {
	r.h.mu.Lock()
	defer r.h.mu.Unlock()
	if r.h.adapter == r.adapter {
		r.h.adapter = nil
	}
}

// stream is the granted microphone.
type stream struct {
	h *Handler
}

func (s *stream) NewAnalyzer(fftSize int) (volume.Analyzer, error) {
	a, err := volume.NewFFTAnalyzer(fftSize)
	if err != nil {
		return nil, err
	}
	s.h.mu.Lock()
	s.h.analyzer = a
	s.h.mu.Unlock()
	return a, nil
}

func (s *stream) Close() error {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	s.h.analyzer = nil
	return nil
}
