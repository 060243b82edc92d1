package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voice-capture-service/internal/capture"
	"voice-capture-service/internal/cues"
	"voice-capture-service/internal/models"
	"voice-capture-service/internal/observability"
	"voice-capture-service/internal/observability/logging"
	"voice-capture-service/internal/punctuation"
	"voice-capture-service/internal/service/audio"
)

var errNoSession = errors.New("no active capture session")

// conn is one client connection. The read loop owns cur; session
// callbacks only write to the socket.
type conn struct {
	h      *Handler
	ws     *websocket.Conn
	id     string
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	cur *attemptState
}

// attemptState is the session currently bound to the connection.
type attemptState struct {
	session *capture.Session
	audio   *audio.Handler
	closing atomic.Bool
}

func newConn(h *Handler, wsConn *websocket.Conn, id string, r *http.Request) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		h:      h,
		ws:     wsConn,
		id:     id,
		log:    logging.WithConnection(id, r.RemoteAddr),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *conn) serve() {
	c.h.cfg.Metrics.RecordConnectionOpen()
	c.log.Info().Msg("Capture connection opened")
	defer c.shutdown()

	c.ws.SetReadLimit(c.h.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.keepAlive()

	c.send(readyMessage(c.id))

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("Capture connection read error")
			}
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			c.onAudio(data)
		case websocket.TextMessage:
			c.onText(data)
		}
	}
}

func (c *conn) shutdown() {
	if c.cur != nil {
		c.cur.session.Close()
	}
	c.cancel()
	_ = c.ws.Close()
	c.h.cfg.Metrics.RecordConnectionClose()
	c.log.Info().Msg("Capture connection closed")
}

func (c *conn) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

func (c *conn) onText(data []byte) {
	var msg models.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reject("malformed", err)
		return
	}
	if err := c.h.cfg.Validator.Validate(msg); err != nil {
		c.reject("invalid", err)
		return
	}

	switch msg.Type {
	case models.ClientOpen:
		c.open(msg)
	case models.ClientAudio:
		c.grant(*msg.Granted)
	case models.ClientStop:
		if a := c.current(); a != nil {
			a.session.Stop()
			return
		}
		c.reject("no_session", errNoSession)
	case models.ClientCancel:
		if a := c.current(); a != nil {
			a.session.Cancel()
			return
		}
		c.reject("no_session", errNoSession)
	}
}

func (c *conn) open(msg models.ClientMessage) {
	if !c.released() {
		c.reject("session_active", capture.ErrSessionActive)
		return
	}

	cfg := c.h.cfg
	lang := msg.Lang
	if lang == "" {
		lang = punctuation.DefaultLanguage
	}
	attemptID := cfg.Attempts.Next(c.id)

	a := &attemptState{
		audio: audio.NewHandlerWithLimits(cfg.Factory, attemptID, cfg.Limits,
			audio.WithClock(cfg.Clock),
			audio.WithMetrics(cfg.Metrics),
			audio.WithProvider(cfg.Provider),
		),
	}

	mode := capture.PunctuationSpoken
	if msg.Punctuation != nil && !*msg.Punctuation {
		mode = capture.PunctuationRaw
	}

	s, err := capture.Open(c.ctx, a.audio, capture.Options{
		ID:          attemptID,
		LanguageTag: lang,
		Punctuation: mode,
		OnResult: func(r capture.VoiceResult) {
			c.send(resultMessage(attemptID, r))
		},
		OnClose: func() {
			a.closing.Store(true)
			c.send(closeMessage(attemptID))
		},
		OnSnapshot: func(snap capture.Snapshot) {
			c.send(snapshotMessage(snap))
		},
		Labels:   cfg.Catalog.Resolve(punctuation.PrimarySubtag(lang)).WithOverrides(msg.Labels),
		Cues:     socketCues{c: c, sessionID: attemptID},
		Reporter: capture.Reporters(c.publisher(), observability.OutcomeReporter(), c.usage(a)),
		Timing:   cfg.Timing,
		Clock:    cfg.Clock,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		c.reject("unsupported", err)
		return
	}
	a.session = s
	c.cur = a
}

// released reports whether a new session may be opened. A session that
// already announced close is given a moment to finish its teardown.
func (c *conn) released() bool {
	if c.cur == nil {
		return true
	}
	done := c.cur.session.Done()
	select {
	case <-done:
		return true
	default:
	}
	if !c.cur.closing.Load() {
		return false
	}
	select {
	case <-done:
		return true
	case <-time.After(closeWait):
		return false
	}
}

// usage logs what the attempt consumed once its session has ended.
func (c *conn) usage(a *attemptState) capture.Reporter {
	return capture.ReporterFunc(func(o capture.Outcome) {
		m := a.audio.GetCaptureMetrics()
		c.log.Info().
			Str("sessionId", o.SessionID).
			Int64("audioBytes", m.AudioBytes).
			Int("interims", m.InterimCount).
			Dur("attemptDuration", m.Duration).
			Bool("dropped", a.audio.IsDropped()).
			Msg("Capture attempt usage")
	})
}

func (c *conn) publisher() capture.Reporter {
	if c.h.cfg.Publisher == nil {
		return nil
	}
	return c.h.cfg.Publisher.Reporter(c.id)
}

func (c *conn) grant(granted bool) {
	a := c.current()
	if a == nil {
		c.reject("no_session", errNoSession)
		return
	}
	if err := a.audio.Grant(granted); err != nil {
		c.reject("already_answered", err)
	}
}

func (c *conn) onAudio(pcm []byte) {
	a := c.current()
	if a == nil {
		c.h.cfg.Metrics.RecordProtocolError("audio_without_session")
		return
	}
	if len(pcm)%2 != 0 {
		c.h.cfg.Metrics.RecordProtocolError("odd_frame")
		return
	}
	if err := a.audio.SendAudio(c.ctx, pcm); err != nil {
		// The session hears about exceeded limits through the recognizer.
		if !errors.Is(err, audio.ErrLimitExceeded) {
			c.log.Debug().Err(err).Msg("Audio frame rejected")
		}
	}
}

// current returns the live session, or nil when none is running.
func (c *conn) current() *attemptState {
	if c.cur == nil {
		return nil
	}
	select {
	case <-c.cur.session.Done():
		return nil
	default:
		return c.cur
	}
}

func (c *conn) reject(kind string, err error) {
	c.h.cfg.Metrics.RecordProtocolError(kind)
	c.log.Debug().Err(err).Str("kind", kind).Msg("Client message rejected")
	sessionID := ""
	if a := c.current(); a != nil {
		sessionID = a.session.ID()
	}
	c.send(errorMessage(sessionID, err))
}

func (c *conn) send(msg serverMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.log.Debug().Err(err).Str("type", msg.Type).Msg("Write failed")
	}
}

// socketCues asks the client to play the tone signatures.
type socketCues struct {
	c         *conn
	sessionID string
}

func (s socketCues) Start()   { s.c.send(cueMessage(s.sessionID, cues.Start)) }
func (s socketCues) Success() { s.c.send(cueMessage(s.sessionID, cues.Success)) }
func (s socketCues) Error()   { s.c.send(cueMessage(s.sessionID, cues.Error)) }
