package observability

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"voice-capture-service/internal/capture"
	"voice-capture-service/internal/service/stt"
)

const sentryFlushTimeout = 2 * time.Second

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
}

// InitSentry initializes the Sentry client. The returned function flushes
// buffered events and must be called before exit. With an empty DSN it is
// a no-op.
func InitSentry(cfg SentryConfig) (func(), error) {
	if cfg.DSN == "" {
		log.Info().Msg("Sentry disabled (no DSN)")
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return func() {}, err
	}
	log.Info().Str("environment", cfg.Environment).Msg("Sentry initialized")
	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}

// ReportError sends err to Sentry with the given tags. It does nothing
// when Sentry was not initialized.
func ReportError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// OutcomeReporter reports sessions that ended on a generic backend error.
// Timeouts, denials and user actions are expected and not reported.
func OutcomeReporter() capture.Reporter {
	return capture.ReporterFunc(func(o capture.Outcome) {
		if o.Reason != capture.ReasonBackendError {
			return
		}
		ReportError(stt.NewError(stt.ErrorCode(o.ErrorCode), nil), map[string]string{
			"sessionId":   o.SessionID,
			"languageTag": o.LanguageTag,
			"errorCode":   o.ErrorCode,
		})
	})
}

// Recoverer is HTTP middleware that reports panics to Sentry and answers
// with a 500.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), rec)
				hub.Flush(sentryFlushTimeout)
				log.Error().Interface("panic", rec).Str("path", req.URL.Path).Msg("Recovered from panic")
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}
