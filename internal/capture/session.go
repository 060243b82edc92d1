// Package capture runs voice capture sessions: one recognition stream,
// one microphone stream, a silence watchdog and the status machine that
// ties them together.
package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voice-capture-service/internal/labels"
	"voice-capture-service/internal/observability/logging"
	"voice-capture-service/internal/observability/metrics"
	"voice-capture-service/internal/punctuation"
	"voice-capture-service/internal/service/stt"
	"voice-capture-service/internal/volume"
	"voice-capture-service/internal/watchdog"
)

const (
	DefaultSuccessDelay = 400 * time.Millisecond
	DefaultCloseDelay   = 2000 * time.Millisecond

	eventBuffer = 64
)

// DefaultTiming returns the standard session timing.
func DefaultTiming() Timing {
	return Timing{
		SilenceTimeout: watchdog.DefaultTimeout,
		SuccessDelay:   DefaultSuccessDelay,
		CloseDelay:     DefaultCloseDelay,
		VolumeInterval: volume.DefaultInterval,
		FFTSize:        volume.DefaultFFTSize,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.SilenceTimeout <= 0 {
		t.SilenceTimeout = d.SilenceTimeout
	}
	if t.SuccessDelay <= 0 {
		t.SuccessDelay = d.SuccessDelay
	}
	if t.CloseDelay <= 0 {
		t.CloseDelay = d.CloseDelay
	}
	if t.VolumeInterval <= 0 {
		t.VolumeInterval = d.VolumeInterval
	}
	if t.FFTSize <= 0 {
		t.FFTSize = d.FFTSize
	}
	return t
}

// PunctuationMode selects how recognized text is rewritten.
type PunctuationMode int

const (
	// PunctuationSpoken replaces spoken punctuation words with symbols.
	PunctuationSpoken PunctuationMode = iota
	// PunctuationRaw passes transcripts through with surrounding
	// whitespace trimmed.
	PunctuationRaw
)

// Options configures a session.
type Options struct {
	// ID identifies the session in logs and outcomes. Generated when empty.
	ID string
	// LanguageTag is the IETF tag passed to the recognizer and used to
	// pick the punctuation phrase map.
	LanguageTag string
	// Punctuation selects how transcripts are rewritten. The zero value
	// substitutes spoken punctuation.
	Punctuation PunctuationMode

	// OnResult receives the final result, at most once.
	OnResult func(VoiceResult)
	// OnClose is called at most once when the session wants to be dismissed.
	OnClose func()
	// OnSnapshot, if set, receives the initial snapshot and then every
	// published one, in order, on the session goroutine.
	OnSnapshot func(Snapshot)

	// Labels are the resolved user-facing strings. Empty fields fall back
	// to labels.Defaults.
	Labels labels.Labels

	Cues     Cues
	Reporter Reporter
	Timing   Timing
	Clock    clock.Clock
	Metrics  *metrics.Metrics
}

// Session is one voice capture attempt.
//
// All state transitions run on a single goroutine. Recognizer callbacks,
// timers, volume samples and host commands are posted to it as events;
// once teardown starts, posting fails and late resources are released by
// whoever acquired them.
type Session struct {
	id       string
	lang     string
	punct    PunctuationMode
	provider Provider
	log      zerolog.Logger
	clock    clock.Clock
	timing   Timing
	labels   labels.Labels
	cues     Cues
	reporter Reporter
	metrics  *metrics.Metrics
	onResult func(VoiceResult)
	onClose  func()
	observer func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc

	postMu   sync.Mutex
	sealed   bool
	events   chan event
	dead     chan struct{}
	finished chan struct{}

	// Host commands bypass the event buffer so issuing one never blocks.
	cmdMu sync.Mutex
	cmds  []event
	wake  chan struct{}

	// Owned by the session goroutine.
	status          Status
	interim         string
	errMsg          string
	level           float64
	resultsDetached bool
	torndown        bool
	resultSent      bool
	closeSent       bool
	reason          Reason
	errCode         string
	confidence      float64
	textLen         int
	interims        int
	startedAt       time.Time

	watchdog   *watchdog.Watchdog
	silenceGen uint64
	tasks      map[uint64]*task
	nextTask   uint64

	recognizer     Recognizer
	recognizerLive bool
	audio          AudioStream
	sampler        *volume.Sampler

	snapMu sync.RWMutex
	snap   Snapshot

	subMu   sync.Mutex
	subs    map[uint64]func(Snapshot)
	nextSub uint64
}

type task struct {
	timer *clock.Timer
	run   func()
}

// Open starts a session: it requests a recognizer and a microphone
// stream concurrently and arms the silence watchdog. The session ends on
// its own after a result, an error or a denial; Close ends it early.
func Open(ctx context.Context, provider Provider, opts Options) (*Session, error) {
	if provider == nil {
		return nil, errors.New("capture: provider is required")
	}
	if !provider.Supported() {
		return nil, ErrUnsupported
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	lang := strings.TrimSpace(opts.LanguageTag)
	if lang == "" {
		lang = punctuation.DefaultLanguage
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	cues := opts.Cues
	if cues == nil {
		cues = nopCues{}
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:       id,
		lang:     lang,
		punct:    opts.Punctuation,
		provider: provider,
		log:      logging.WithSession(id, lang),
		clock:    clk,
		timing:   opts.Timing.withDefaults(),
		labels:   labels.Defaults().Merge(opts.Labels),
		cues:     cues,
		reporter: opts.Reporter,
		metrics:  m,
		onResult: opts.OnResult,
		onClose:  opts.OnClose,
		observer: opts.OnSnapshot,
		ctx:      sctx,
		cancel:   cancel,
		events:   make(chan event, eventBuffer),
		wake:     make(chan struct{}, 1),
		dead:     make(chan struct{}),
		finished: make(chan struct{}),
		status:   StatusListening,
		watchdog: watchdog.New(clk),
		tasks:    make(map[uint64]*task),
		subs:     make(map[uint64]func(Snapshot)),
	}
	s.snap = s.buildSnapshot()
	if s.observer != nil {
		s.subs[0] = s.observer
		s.nextSub = 1
	}

	s.begin()
	go s.run()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LanguageTag returns the language the session recognizes.
func (s *Session) LanguageTag() string { return s.lang }

// Snapshot returns the latest published state.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// Subscribe registers fn to receive every published snapshot on the
// session goroutine. fn must not block. The returned function removes it.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Stop asks the recognizer to finalize what it heard. If nothing was heard
// yet the session closes right away. It never blocks.
func (s *Session) Stop() { s.command(stopCommand{}) }

// Cancel closes the session without waiting for a result. It never blocks.
func (s *Session) Cancel() { s.command(cancelCommand{}) }

// Close tears the session down without calling OnResult or OnClose and
// waits until teardown has finished. Callbacks running on the session
// goroutine must use RequestClose instead.
func (s *Session) Close() {
	s.command(closeCommand{})
	<-s.finished
}

// RequestClose asks for the same teardown as Close without waiting for it.
func (s *Session) RequestClose() { s.command(closeCommand{}) }

// Done is closed once teardown has completed.
func (s *Session) Done() <-chan struct{} { return s.finished }

// begin runs before the loop starts, so nothing else touches session state.
func (s *Session) begin() {
	s.startedAt = s.clock.Now()
	s.metrics.RecordSessionStart()
	s.log.Info().Msg("Capture session opened")

	s.armSilence()

	go func() {
		rec, err := s.provider.NewRecognizer(s.lang)
		if err != nil {
			s.post(recognizerFailedEvent{err: err})
			return
		}
		if !s.post(recognizerReadyEvent{rec: rec}) {
			_ = rec.Abort()
		}
	}()

	go func() {
		stream, err := s.provider.RequestAudio(s.ctx)
		if err != nil {
			s.post(audioFailedEvent{err: err})
			return
		}
		if !s.post(audioReadyEvent{stream: stream}) {
			_ = stream.Close()
		}
	}()
}

func (s *Session) run() {
	defer close(s.finished)
	if s.observer != nil {
		snap := s.Snapshot()
		s.observer(snap)
	}
	for !s.torndown {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-s.wake:
			for _, ev := range s.takeCommands() {
				if s.torndown {
					break
				}
				s.handle(ev)
			}
		case <-s.ctx.Done():
			s.interrupt(ReasonUnmounted)
			s.teardown(ReasonUnmounted)
		}
	}
}

// post delivers ev to the session goroutine. It reports false once
// teardown has started.
func (s *Session) post(ev event) bool {
	s.postMu.Lock()
	defer s.postMu.Unlock()
	if s.sealed {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.dead:
		return false
	}
}

// command queues a host command for the session goroutine.
func (s *Session) command(ev event) {
	select {
	case <-s.dead:
		return
	default:
	}
	s.cmdMu.Lock()
	s.cmds = append(s.cmds, ev)
	s.cmdMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) takeCommands() []event {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	cmds := s.cmds
	s.cmds = nil
	return cmds
}

func (s *Session) handle(ev event) {
	switch ev := ev.(type) {
	case recognizerReadyEvent:
		s.onRecognizerReady(ev.rec)
	case recognizerFailedEvent:
		s.onRecognizerError(ev.err)
	case recognizerStartedEvent:
		if s.status == StatusListening {
			s.log.Debug().Msg("Recognizer started")
			s.cues.Start()
		}
	case resultsEvent:
		s.onResults(ev.index, ev.results)
	case recognizerErrorEvent:
		s.onRecognizerError(ev.err)
	case audioReadyEvent:
		s.onAudioReady(ev.stream)
	case audioFailedEvent:
		s.onAudioFailed(ev.err)
	case volumeEvent:
		s.level = ev.level
		s.publish()
	case silenceEvent:
		if ev.gen == s.silenceGen {
			s.onSilence()
		}
	case taskEvent:
		if t, ok := s.tasks[ev.id]; ok {
			delete(s.tasks, ev.id)
			t.run()
		}
	case stopCommand:
		s.onStop()
	case cancelCommand:
		s.interrupt(ReasonCancelled)
		s.finish()
	case closeCommand:
		s.interrupt(ReasonUnmounted)
		s.teardown(ReasonUnmounted)
	}
}

func (s *Session) onRecognizerReady(rec Recognizer) {
	if s.torndown || s.status != StatusListening {
		_ = rec.Abort()
		return
	}
	s.recognizer = rec
	s.recognizerLive = true

	// Callbacks can only arrive once the loop owns rec.
	go func() {
		if err := rec.Start(s.ctx, sink{s}); err != nil {
			s.post(recognizerFailedEvent{err: err})
		}
	}()
}

func (s *Session) onResults(index int, results []stt.Result) {
	if s.resultsDetached || s.status != StatusListening {
		return
	}
	s.armSilence()

	if index < 0 {
		index = 0
	}
	sep := punctuation.Separator(s.lang)
	var parts []string
	for i := index; i < len(results); i++ {
		text := s.normalize(results[i].Transcript)
		if results[i].IsFinal {
			s.succeed(text, results[i].Confidence)
			return
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	s.interim = strings.Join(parts, sep)
	s.interims++
	s.metrics.RecordInterim()
	s.publish()
}

func (s *Session) normalize(raw string) string {
	if s.punct == PunctuationRaw {
		return strings.TrimSpace(raw)
	}
	return punctuation.Normalize(raw, s.lang)
}

func (s *Session) succeed(text string, confidence float64) {
	s.resultsDetached = true
	s.disarmSilence()

	if text == "" {
		s.log.Info().Msg("Final result was empty")
		s.fail(ReasonEmptyFinal, "", s.labels.NothingReceived)
		return
	}

	if !s.setStatus(StatusSuccess) {
		return
	}
	s.reason = ReasonResult
	s.confidence = confidence
	s.textLen = len([]rune(text))
	s.interim = ""
	s.publish()
	s.cues.Success()

	result := VoiceResult{
		Text:       text,
		Confidence: confidence,
		Timestamp:  s.clock.Now(),
	}
	s.log.Info().
		Float64("confidence", confidence).
		Int("length", s.textLen).
		Msg("Final result accepted")

	s.schedule(s.timing.SuccessDelay, func() {
		s.deliver(result)
		s.finish()
	})
}

func (s *Session) onRecognizerError(err error) {
	code := stt.CodeOf(err)
	if s.status != StatusListening {
		s.log.Debug().Err(err).Str("code", string(code)).Msg("Recognizer error after terminal status ignored")
		return
	}
	if code.Recoverable() {
		s.log.Debug().Err(err).Str("code", string(code)).Msg("Recoverable recognizer error")
		return
	}

	s.recognizerLive = false
	s.metrics.RecordSTTError(string(code))
	if code.PermissionDenied() {
		s.deny(err)
		return
	}

	s.log.Warn().Err(err).Str("code", string(code)).Msg("Recognizer failed")
	s.fail(ReasonBackendError, string(code), s.labels.ErrorMessage(string(code)))
}

func (s *Session) onAudioReady(stream AudioStream) {
	if s.torndown || s.status != StatusListening {
		_ = stream.Close()
		return
	}
	s.audio = stream

	analyzer, err := stream.NewAnalyzer(s.timing.FFTSize)
	if err != nil {
		s.log.Warn().Err(err).Msg("Volume analyzer unavailable")
		return
	}
	s.sampler = volume.NewSampler(s.clock, s.timing.VolumeInterval)
	if err := s.sampler.Start(analyzer, func(level float64) {
		s.post(volumeEvent{level: level})
	}); err != nil {
		_ = analyzer.Close()
		s.log.Warn().Err(err).Msg("Volume sampler did not start")
	}
}

func (s *Session) onAudioFailed(err error) {
	if s.status != StatusListening {
		return
	}
	if errors.Is(err, ErrAudioDenied) || stt.CodeOf(err).PermissionDenied() {
		s.deny(err)
		return
	}
	s.log.Warn().Err(err).Msg("Microphone unavailable, volume disabled")
}

func (s *Session) onSilence() {
	if s.status != StatusListening {
		return
	}
	s.metrics.RecordSilenceTimeout()
	s.log.Info().Dur("timeout", s.timing.SilenceTimeout).Msg("Silence timeout")

	s.resultsDetached = true
	s.abortRecognizer()
	s.fail(ReasonTimeout, "", s.labels.NothingReceived)
}

func (s *Session) onStop() {
	if s.status != StatusListening {
		return
	}
	if s.recognizer != nil && s.recognizerLive {
		if err := s.recognizer.Stop(); err != nil {
			s.log.Debug().Err(err).Msg("Recognizer stop failed")
		}
	}
	if s.interim == "" {
		s.reasonIfUnset(ReasonStoppedEmpty)
		s.finish()
	}
}

func (s *Session) deny(err error) {
	s.disarmSilence()
	if !s.setStatus(StatusDenied) {
		return
	}
	s.log.Info().Err(err).Msg("Capture access denied")
	s.reason = ReasonDenied
	s.errMsg = s.labels.ErrorPermission
	s.publish()
	s.cues.Error()
	s.schedule(s.timing.CloseDelay, s.finish)
}

func (s *Session) fail(reason Reason, code, message string) {
	s.disarmSilence()
	if !s.setStatus(StatusError) {
		return
	}
	s.reason = reason
	s.errCode = code
	s.errMsg = message
	s.publish()
	s.cues.Error()
	s.schedule(s.timing.CloseDelay, s.finish)
}

func (s *Session) setStatus(next Status) bool {
	if !s.status.CanTransition(next) {
		s.log.Warn().
			Stringer("from", s.status).
			Stringer("to", next).
			Msg("Invalid status transition")
		return false
	}
	s.status = next
	return true
}

func (s *Session) deliver(result VoiceResult) {
	if s.resultSent || s.onResult == nil {
		s.resultSent = true
		return
	}
	s.resultSent = true
	s.metrics.RecordFinalResult()
	s.onResult(result)
}

// finish asks the host to dismiss the session, then tears it down.
func (s *Session) finish() {
	if !s.closeSent {
		s.closeSent = true
		if s.onClose != nil {
			s.onClose()
		}
	}
	s.teardown(ReasonUnmounted)
}

// interrupt records r unless the session already ended for its own
// reason. A result that was never handed over counts as interrupted.
func (s *Session) interrupt(r Reason) {
	if s.reason == ReasonResult && !s.resultSent {
		s.reason = r
		return
	}
	s.reasonIfUnset(r)
}

func (s *Session) reasonIfUnset(r Reason) {
	if s.reason == "" {
		s.reason = r
	}
}

// teardown releases every resource. Pending tasks never run afterwards
// and late recognizer or timer events are dropped.
func (s *Session) teardown(fallback Reason) {
	if s.torndown {
		return
	}
	s.torndown = true
	s.reasonIfUnset(fallback)

	close(s.dead)
	s.cancel()

	s.disarmSilence()
	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}

	s.resultsDetached = true
	s.abortRecognizer()
	if s.sampler != nil {
		s.sampler.Stop()
	}
	if s.audio != nil {
		if err := s.audio.Close(); err != nil {
			s.log.Debug().Err(err).Msg("Audio stream close failed")
		}
		s.audio = nil
	}

	s.postMu.Lock()
	s.sealed = true
	s.postMu.Unlock()
	s.drain()

	duration := s.clock.Since(s.startedAt)
	s.metrics.RecordSessionEnd(s.status.String(), string(s.reason), duration.Seconds())
	s.log.Info().
		Stringer("status", s.status).
		Str("reason", string(s.reason)).
		Dur("duration", duration).
		Msg("Capture session closed")

	if s.reporter != nil {
		s.reporter.Report(Outcome{
			SessionID:   s.id,
			LanguageTag: s.lang,
			Status:      s.status,
			Reason:      s.reason,
			ErrorCode:   s.errCode,
			Confidence:  s.confidence,
			TextLength:  s.textLen,
			Interims:    s.interims,
			Duration:    duration,
		})
	}
}

// drain releases resources carried by events queued before sealing.
func (s *Session) drain() {
	for {
		select {
		case ev := <-s.events:
			switch ev := ev.(type) {
			case recognizerReadyEvent:
				_ = ev.rec.Abort()
			case audioReadyEvent:
				_ = ev.stream.Close()
			}
		default:
			return
		}
	}
}

func (s *Session) abortRecognizer() {
	if s.recognizer == nil || !s.recognizerLive {
		return
	}
	s.recognizerLive = false
	if err := s.recognizer.Abort(); err != nil {
		s.log.Debug().Err(err).Msg("Recognizer abort failed")
	}
}

func (s *Session) armSilence() {
	s.silenceGen++
	gen := s.silenceGen
	s.watchdog.Arm(s.timing.SilenceTimeout, func() {
		s.post(silenceEvent{gen: gen})
	})
}

func (s *Session) disarmSilence() {
	s.silenceGen++
	s.watchdog.Disarm()
}

// schedule runs fn on the session goroutine after d, unless the session
// is torn down first.
func (s *Session) schedule(d time.Duration, fn func()) {
	s.nextTask++
	id := s.nextTask
	s.tasks[id] = &task{
		run: fn,
		timer: s.clock.AfterFunc(d, func() {
			s.post(taskEvent{id: id})
		}),
	}
}

func (s *Session) publish() {
	snap := s.buildSnapshot()

	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()

	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Session) buildSnapshot() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		LanguageTag:  s.lang,
		Status:       s.status,
		InterimText:  s.interim,
		ErrorMessage: s.errMsg,
		Volume:       s.level,
	}
	switch s.status {
	case StatusListening:
		snap.DisplayText = s.interim
		if snap.DisplayText == "" {
			snap.DisplayText = s.labels.ListeningText
		}
	case StatusError:
		snap.StatusIcon = s.labels.ErrorIcon
		snap.DisplayText = s.errMsg
	case StatusDenied:
		snap.StatusIcon = s.labels.DeniedIcon
		snap.DisplayText = s.errMsg
	}
	return snap
}
