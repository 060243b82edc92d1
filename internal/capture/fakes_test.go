package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"voice-capture-service/internal/observability/metrics"
	"voice-capture-service/internal/service/stt"
	"voice-capture-service/internal/volume"
)

type fakeRecognizer struct {
	started  chan struct{}
	startErr error

	mu     sync.Mutex
	cb     stt.Callback
	stops  int
	aborts int
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{started: make(chan struct{})}
}

func (r *fakeRecognizer) Start(ctx context.Context, cb stt.Callback) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.mu.Lock()
	r.cb = cb
	r.mu.Unlock()
	close(r.started)
	cb.OnStart()
	return nil
}

func (r *fakeRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return nil
}

func (r *fakeRecognizer) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborts++
	return nil
}

// callback waits until the session started the recognizer.
func (r *fakeRecognizer) callback(t *testing.T) stt.Callback {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer was never started")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cb
}

func (r *fakeRecognizer) counts() (stops, aborts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops, r.aborts
}

type fakeAnalyzer struct {
	level byte
}

func (a *fakeAnalyzer) FrequencyBinCount() int { return 4 }

func (a *fakeAnalyzer) ByteFrequencyData(dst []byte) {
	for i := range dst {
		dst[i] = a.level
	}
}

func (a *fakeAnalyzer) Close() error { return nil }

type fakeStream struct {
	analyzer    volume.Analyzer
	analyzerErr error

	mu     sync.Mutex
	closes int
}

func (s *fakeStream) NewAnalyzer(fftSize int) (volume.Analyzer, error) {
	if s.analyzerErr != nil {
		return nil, s.analyzerErr
	}
	if s.analyzer == nil {
		return &fakeAnalyzer{}, nil
	}
	return s.analyzer, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeProvider struct {
	unsupported bool
	recognizer  *fakeRecognizer
	recErr      error
	stream      *fakeStream
	audioErr    error
	// audioGate, when set, holds RequestAudio until it is closed.
	audioGate chan struct{}
	// recGate, when set, holds NewRecognizer until it is closed.
	recGate chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		recognizer: newFakeRecognizer(),
		stream:     &fakeStream{},
	}
}

func (p *fakeProvider) Supported() bool { return !p.unsupported }

func (p *fakeProvider) NewRecognizer(languageTag string) (Recognizer, error) {
	if p.recGate != nil {
		<-p.recGate
	}
	if p.recErr != nil {
		return nil, p.recErr
	}
	return p.recognizer, nil
}

func (p *fakeProvider) RequestAudio(ctx context.Context) (AudioStream, error) {
	if p.audioGate != nil {
		<-p.audioGate
	}
	if p.audioErr != nil {
		return nil, p.audioErr
	}
	return p.stream, nil
}

type recordingCues struct {
	mu    sync.Mutex
	plays []string
}

func (c *recordingCues) Start()   { c.record("start") }
func (c *recordingCues) Success() { c.record("success") }
func (c *recordingCues) Error()   { c.record("error") }

func (c *recordingCues) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays = append(c.plays, name)
}

func (c *recordingCues) played() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.plays...)
}

// host records what a session hands back to its owner.
type host struct {
	mu      sync.Mutex
	calls   []string
	results []VoiceResult
}

func (h *host) onResult(r VoiceResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "result")
	h.results = append(h.results, r)
}

func (h *host) onClose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "close")
}

func (h *host) history() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.calls...)
}

func (h *host) delivered() []VoiceResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]VoiceResult{}, h.results...)
}

type harness struct {
	session  *Session
	clock    *clock.Mock
	provider *fakeProvider
	host     *host
	cues     *recordingCues
	outcomes chan Outcome
}

func openHarness(t *testing.T, p *fakeProvider, lang string) *harness {
	t.Helper()
	return openHarnessWith(t, p, Options{LanguageTag: lang})
}

// openHarnessWith opens a session with opts, wiring the harness callbacks,
// cues, reporter, clock and metrics over whatever opts sets for them.
func openHarnessWith(t *testing.T, p *fakeProvider, opts Options) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.NewMock(),
		provider: p,
		host:     &host{},
		cues:     &recordingCues{},
		outcomes: make(chan Outcome, 1),
	}
	opts.ID = "test-session"
	opts.OnResult = h.host.onResult
	opts.OnClose = h.host.onClose
	opts.Cues = h.cues
	opts.Reporter = ReporterFunc(func(o Outcome) { h.outcomes <- o })
	opts.Clock = h.clock
	opts.Metrics = metrics.NewUnregistered()

	s, err := Open(context.Background(), p, opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	h.session = s
	t.Cleanup(s.Close)
	return h
}

func (h *harness) results(t *testing.T, index int, results ...stt.Result) {
	t.Helper()
	h.provider.recognizer.callback(t).OnResults(index, results)
}

func (h *harness) waitStatus(t *testing.T, want Status) Snapshot {
	t.Helper()
	var snap Snapshot
	waitFor(t, func() bool {
		snap = h.session.Snapshot()
		return snap.Status == want
	})
	return snap
}

func (h *harness) waitInterim(t *testing.T, want string) {
	t.Helper()
	waitFor(t, func() bool { return h.session.Snapshot().InterimText == want })
}

func (h *harness) waitDone(t *testing.T) Outcome {
	t.Helper()
	select {
	case <-h.session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session was not torn down")
	}
	select {
	case o := <-h.outcomes:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome reported")
	}
	return Outcome{}
}

// advance moves the mock clock and lets timer goroutines post their events.
func (h *harness) advance(d time.Duration) {
	h.clock.Add(d)
	time.Sleep(10 * time.Millisecond)
}

func interim(text string) stt.Result {
	return stt.Result{Transcript: text}
}

func final(text string, confidence float64) stt.Result {
	return stt.Result{Transcript: text, Confidence: confidence, IsFinal: true}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// settle gives the session goroutine time to process anything queued.
func settle() {
	time.Sleep(20 * time.Millisecond)
}

// hold blocks the session goroutine inside a subscriber the first time a
// snapshot with the given interim text is published.
type hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func holdOn(s *Session, interimText string, then func()) *hold {
	hd := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	s.Subscribe(func(snap Snapshot) {
		if snap.InterimText != interimText {
			return
		}
		hd.once.Do(func() {
			close(hd.entered)
			<-hd.release
			if then != nil {
				then()
			}
		})
	})
	return hd
}

func (hd *hold) wait(t *testing.T) {
	t.Helper()
	select {
	case <-hd.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("session never reached the held snapshot")
	}
}

// tracer records snapshots and cues in the order the session emits them.
type tracer struct {
	mu      sync.Mutex
	entries []string
}

func (tr *tracer) add(entry string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.entries = append(tr.entries, entry)
}

func (tr *tracer) index(entry string) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i, e := range tr.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

func (tr *tracer) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string{}, tr.entries...)
}

type traceCues struct {
	tr *tracer
}

func (c traceCues) Start()   { c.tr.add("cue:start") }
func (c traceCues) Success() { c.tr.add("cue:success") }
func (c traceCues) Error()   { c.tr.add("cue:error") }
