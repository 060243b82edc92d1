// Package ws serves capture sessions over WebSocket. Each connection runs
// at most one session at a time; the client streams PCM16LE mono frames
// and receives snapshots, cues and the final outcome.
package ws

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voice-capture-service/internal/capability"
	"voice-capture-service/internal/capture"
	"voice-capture-service/internal/events"
	"voice-capture-service/internal/labels"
	"voice-capture-service/internal/observability/logging"
	"voice-capture-service/internal/observability/metrics"
	"voice-capture-service/internal/schema"
	"voice-capture-service/internal/service/attempt"
	"voice-capture-service/internal/service/audio"
	"voice-capture-service/internal/service/stt"
)

const (
	// DefaultReadLimit bounds one client frame: 100ms of 16kHz PCM16 is
	// 3.2KB, so this leaves ample room.
	DefaultReadLimit = 64 * 1024

	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// closeWait bounds how long a new open waits for a session that
	// already announced close to finish tearing down.
	closeWait = time.Second
)

// Config wires the transport to the rest of the service.
type Config struct {
	// Factory creates recognition adapters. Nil means capture is unsupported.
	Factory stt.Factory
	// Provider names the STT backend in logs.
	Provider string
	// Catalog resolves labels per language. Nil uses labels.Defaults.
	Catalog *labels.Catalog
	Timing  capture.Timing
	Limits  audio.CaptureLimits
	// Publisher, if set, receives one outcome event per session.
	Publisher *events.Publisher
	Validator *schema.Validator
	Attempts  *attempt.Generator
	Metrics   *metrics.Metrics
	Clock     clock.Clock

	ReadLimit int64
	// RequireSecure rejects upgrades that do not come from a secure context.
	RequireSecure bool
	// CheckOrigin is passed to the upgrader. Nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades requests to capture connections.
type Handler struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler creates a handler, filling unset config with defaults.
func NewHandler(cfg Config) *Handler {
	if cfg.Provider == "" {
		cfg.Provider = "unknown"
	}
	if cfg.Validator == nil {
		cfg.Validator = schema.New()
	}
	if cfg.Attempts == nil {
		cfg.Attempts = attempt.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if cfg.Limits == (audio.CaptureLimits{}) {
		cfg.Limits = audio.DefaultLimits()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		log: logging.WithComponent("ws"),
	}
}

// ServeHTTP upgrades the request and serves the connection until the
// client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.RequireSecure && !capability.SecureContext(r) {
		h.cfg.Metrics.RecordProtocolError("insecure_context")
		http.Error(w, "voice capture requires a secure context", http.StatusForbidden)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	c := newConn(h, wsConn, uuid.NewString(), r)
	c.serve()
}
