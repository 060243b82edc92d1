package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"voice-capture-service/internal/capture"
	"voice-capture-service/internal/observability/metrics"
	"voice-capture-service/internal/service/stt"
)

// testAdapter implements stt.Adapter for testing
type testAdapter struct {
	mu      sync.Mutex
	started bool
	stopped bool
	aborted bool
	audio   [][]byte
	cb      stt.Callback
}

func (m *testAdapter) Start(ctx context.Context, cb stt.Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	m.cb = cb
	return nil
}

func (m *testAdapter) SendAudio(ctx context.Context, audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = append(m.audio, audio)
	return nil
}

func (m *testAdapter) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *testAdapter) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted = true
	return nil
}

func (m *testAdapter) frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audio)
}

// testCallback records what reaches the session side.
type testCallback struct {
	mu      sync.Mutex
	results int
	errs    []error
}

func (c *testCallback) OnStart() {}

func (c *testCallback) OnResults(int, []stt.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results++
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *testCallback) errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error{}, c.errs...)
}

func newTestHandler(t *testing.T, limits CaptureLimits, clk clock.Clock) (*Handler, *testAdapter, *testCallback) {
	t.Helper()
	adapter := &testAdapter{}
	factory := func(string) (stt.Adapter, error) { return adapter, nil }
	handler := NewHandlerWithLimits(factory, "conn-1-cap-1", limits,
		WithClock(clk), WithMetrics(metrics.NewUnregistered()))

	rec, err := handler.NewRecognizer("en-US")
	if err != nil {
		t.Fatalf("NewRecognizer failed: %v", err)
	}
	cb := &testCallback{}
	if err := rec.Start(context.Background(), cb); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return handler, adapter, cb
}

func TestHandler_ForwardsAudio(t *testing.T) {
	handler, adapter, _ := newTestHandler(t, DefaultLimits(), clock.NewMock())

	for i := 0; i < 3; i++ {
		if err := handler.SendAudio(context.Background(), make([]byte, 320)); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	if adapter.frames() != 3 {
		t.Errorf("expected 3 frames forwarded, got %d", adapter.frames())
	}
}

func TestHandler_MaxAudioBytesLimit(t *testing.T) {
	limits := CaptureLimits{
		MaxAudioBytes: 100, // 100 bytes max
		MaxDuration:   time.Hour,
		MaxInterims:   1000,
	}
	handler, adapter, cb := newTestHandler(t, limits, clock.NewMock())

	ctx := context.Background()

	// Send 50 bytes - should succeed
	if err := handler.SendAudio(ctx, make([]byte, 50)); err != nil {
		t.Fatalf("First send should succeed: %v", err)
	}

	// Send 60 more bytes (total 110) - should fail
	err := handler.SendAudio(ctx, make([]byte, 60))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Expected ErrLimitExceeded, got %v", err)
	}

	if !handler.IsDropped() {
		t.Error("Attempt should be dropped after exceeding limit")
	}
	if !adapter.aborted {
		t.Error("Adapter should be aborted after exceeding limit")
	}
	errs := cb.errors()
	if len(errs) != 1 || stt.CodeOf(errs[0]) != stt.CodeAudioCapture {
		t.Errorf("Expected one audio-capture error, got %v", errs)
	}

	// Further frames are refused without reaching the adapter
	if err := handler.SendAudio(ctx, make([]byte, 10)); !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("Expected ErrLimitExceeded after drop, got %v", err)
	}
	if adapter.frames() != 1 {
		t.Errorf("Expected 1 forwarded frame, got %d", adapter.frames())
	}
}

func TestHandler_MaxInterimsLimit(t *testing.T) {
	limits := CaptureLimits{
		MaxAudioBytes: 1024 * 1024,
		MaxDuration:   time.Hour,
		MaxInterims:   3, // 3 interims max
	}
	handler, _, cb := newTestHandler(t, limits, clock.NewMock())
	interim := []stt.Result{{Transcript: "partial text"}}

	// Send 3 interims - should all succeed
	for i := 0; i < 3; i++ {
		handler.OnResults(0, interim)
	}

	if handler.IsDropped() {
		t.Error("Attempt should not be dropped after 3 interims")
	}

	// 4th interim should cause drop
	handler.OnResults(0, interim)

	if !handler.IsDropped() {
		t.Error("Attempt should be dropped after exceeding max interims")
	}
	if cb.results != 3 {
		t.Errorf("Expected 3 forwarded results, got %d", cb.results)
	}

	// Nothing is forwarded after the drop
	handler.OnResults(0, []stt.Result{{Transcript: "late", IsFinal: true}})
	handler.OnError(errors.New("late"))
	if cb.results != 3 || len(cb.errors()) != 1 {
		t.Errorf("Expected no forwarding after drop, got results=%d errors=%d", cb.results, len(cb.errors()))
	}
}

func TestHandler_FinalDoesNotCountAsInterim(t *testing.T) {
	limits := CaptureLimits{MaxInterims: 1}
	handler, _, cb := newTestHandler(t, limits, clock.NewMock())

	handler.OnResults(0, []stt.Result{{Transcript: "a"}})
	handler.OnResults(0, []stt.Result{{Transcript: "a b", IsFinal: true}})

	if handler.IsDropped() {
		t.Error("A final result should not count against the interim limit")
	}
	if cb.results != 2 {
		t.Errorf("Expected 2 forwarded results, got %d", cb.results)
	}
}

func TestHandler_MaxDurationLimit(t *testing.T) {
	limits := CaptureLimits{
		MaxAudioBytes: 1024 * 1024,
		MaxDuration:   50 * time.Millisecond, // 50ms max
		MaxInterims:   1000,
	}
	clk := clock.NewMock()
	handler, _, _ := newTestHandler(t, limits, clk)

	ctx := context.Background()

	// First send - should succeed (within duration)
	if err := handler.SendAudio(ctx, []byte("audio")); err != nil {
		t.Fatalf("First send should succeed: %v", err)
	}

	// Move past the duration limit
	clk.Add(60 * time.Millisecond)

	// Next send should fail due to duration limit
	if err := handler.SendAudio(ctx, []byte("audio")); err == nil {
		t.Fatal("Expected error when exceeding max duration")
	}

	if !handler.IsDropped() {
		t.Error("Attempt should be dropped after exceeding duration limit")
	}
}

func TestHandler_CaptureMetrics(t *testing.T) {
	clk := clock.NewMock()
	handler, _, _ := newTestHandler(t, DefaultLimits(), clk)

	handler.SendAudio(context.Background(), make([]byte, 100))
	handler.OnResults(0, []stt.Result{{Transcript: "partial 1"}})
	handler.OnResults(0, []stt.Result{{Transcript: "partial 2"}})
	clk.Add(time.Second)

	m := handler.GetCaptureMetrics()
	if m.AudioBytes != 100 {
		t.Errorf("Expected 100 audio bytes, got %d", m.AudioBytes)
	}
	if m.InterimCount != 2 {
		t.Errorf("Expected 2 interims, got %d", m.InterimCount)
	}
	if m.Duration != time.Second {
		t.Errorf("Expected 1s duration, got %v", m.Duration)
	}
}

func TestHandler_DefaultLimits(t *testing.T) {
	limits := DefaultLimits()

	if limits.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("Expected default max audio bytes to be 5MB, got %d", limits.MaxAudioBytes)
	}
	if limits.MaxDuration != 2*time.Minute {
		t.Errorf("Expected default max duration to be 2min, got %v", limits.MaxDuration)
	}
	if limits.MaxInterims != 500 {
		t.Errorf("Expected default max interims to be 500, got %d", limits.MaxInterims)
	}
}

func TestHandler_RequestAudio(t *testing.T) {
	tests := []struct {
		name    string
		granted bool
		wantErr error
	}{
		{"granted", true, nil},
		{"denied", false, capture.ErrAudioDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(nil, "conn-1-cap-1", WithMetrics(metrics.NewUnregistered()))
			if err := handler.Grant(tt.granted); err != nil {
				t.Fatalf("Grant failed: %v", err)
			}
			stream, err := handler.RequestAudio(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.granted && stream == nil {
				t.Fatal("expected a stream")
			}
		})
	}
}

func TestHandler_GrantTwice(t *testing.T) {
	handler := NewHandler(nil, "conn-1-cap-1", WithMetrics(metrics.NewUnregistered()))
	handler.Grant(true)
	if err := handler.Grant(false); !errors.Is(err, ErrAlreadyAnswered) {
		t.Errorf("expected ErrAlreadyAnswered, got %v", err)
	}
}

func TestHandler_RequestAudio_ContextCancelled(t *testing.T) {
	handler := NewHandler(nil, "conn-1-cap-1", WithMetrics(metrics.NewUnregistered()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := handler.RequestAudio(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHandler_FramesReachAnalyzer(t *testing.T) {
	handler, _, _ := newTestHandler(t, DefaultLimits(), clock.NewMock())
	handler.Grant(true)

	stream, err := handler.RequestAudio(context.Background())
	if err != nil {
		t.Fatalf("RequestAudio failed: %v", err)
	}
	analyzer, err := stream.NewAnalyzer(64)
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}

	// A loud square wave
	pcm := make([]byte, 128)
	for i := 0; i < len(pcm); i += 2 {
		v := int16(20000)
		if (i/2)%8 < 4 {
			v = -20000
		}
		pcm[i] = byte(uint16(v))
		pcm[i+1] = byte(uint16(v) >> 8)
	}
	handler.SendAudio(context.Background(), pcm)

	data := make([]byte, analyzer.FrequencyBinCount())
	analyzer.ByteFrequencyData(data)
	nonZero := false
	for _, v := range data {
		if v > 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("expected the analyzer to see the frame")
	}

	stream.Close()
	if err := handler.SendAudio(context.Background(), pcm); err != nil {
		t.Errorf("send after stream close failed: %v", err)
	}
}

func TestHandler_AbortDetachesAdapter(t *testing.T) {
	adapter := &testAdapter{}
	handler := NewHandler(func(string) (stt.Adapter, error) { return adapter, nil }, "conn-1-cap-1",
		WithMetrics(metrics.NewUnregistered()))

	rec, _ := handler.NewRecognizer("en")
	rec.Start(context.Background(), &testCallback{})
	rec.Abort()

	handler.SendAudio(context.Background(), []byte{0, 0})
	if adapter.frames() != 0 {
		t.Errorf("expected no frames after abort, got %d", adapter.frames())
	}
	if !adapter.aborted {
		t.Error("expected adapter aborted")
	}
}

func TestHandler_Supported(t *testing.T) {
	if NewHandler(nil, "x").Supported() {
		t.Error("expected a handler without a factory to be unsupported")
	}
}

var _ capture.Provider = (*Handler)(nil)
