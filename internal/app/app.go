// Package app assembles the service from its configuration.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voice-capture-service/internal/api/ws"
	"voice-capture-service/internal/capability"
	"voice-capture-service/internal/capture"
	"voice-capture-service/internal/config"
	"voice-capture-service/internal/events"
	"voice-capture-service/internal/labels"
	"voice-capture-service/internal/observability"
	"voice-capture-service/internal/observability/logging"
	"voice-capture-service/internal/observability/metrics"
	"voice-capture-service/internal/punctuation"
	"voice-capture-service/internal/service/attempt"
	"voice-capture-service/internal/service/audio"
	"voice-capture-service/internal/service/stt"
	"voice-capture-service/internal/service/stt/google"
	"voice-capture-service/internal/service/stt/mock"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Metrics     *metrics.Metrics

	// Capture serves /v1/capture. Set by Start.
	Capture *ws.Handler
	// Probe answers capability queries. Set by Start.
	Probe capability.Probe

	publisher   *events.Publisher
	closeSTT    func() error
	flushSentry func()
	ready       atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg:         cfg,
		Metrics:     metrics.DefaultMetrics,
		closeSTT:    func() error { return nil },
		flushSentry: func() {},
	}
	a.setupLogger()

	a.Logger.Info().
		Str("method", "New").
		Msg("Voice capture service application created")
	return a
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logCfg := logging.DefaultConfig()
	logCfg.Level = a.Cfg.Observability.LogLevel
	logCfg.Format = a.Cfg.Observability.LogFormat
	if a.Cfg.Service.Environment == "dev" {
		logCfg.Format = "console"
	}
	logging.Init(logCfg)

	a.Logger = logging.WithComponent("application").With().
		Str("service", a.Cfg.Service.Principal).
		Logger()

	a.Logger.Info().
		Str("logLevel", logCfg.Level).
		Str("environment", a.Cfg.Service.Environment).
		Msg("Logger setup completed")
}

// Start builds the capture stack: error reporting, labels, the
// recognition backend, the outcome publisher and the socket handler.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().Str("method", "Start").Logger()

	flush, err := observability.InitSentry(observability.SentryConfig{
		DSN:         a.Cfg.Observability.SentryDSN,
		Environment: a.Cfg.Service.Environment,
		Release:     a.Cfg.Service.Principal,
	})
	if err != nil {
		// Error reporting is optional; run without it.
		startLogger.Warn().Err(err).Msg("Sentry init failed")
	}
	a.flushSentry = flush

	catalog, err := a.loadLabels()
	if err != nil {
		return err
	}

	factory, err := a.sttFactory(ctx)
	if err != nil {
		observability.ReportError(err, map[string]string{"stage": "startup"})
		return err
	}

	a.publisher = events.NewWithMetrics(&events.Config{
		Enabled:      a.Cfg.Kafka.Enabled,
		Brokers:      a.Cfg.Kafka.Brokers,
		TopicResult:  a.Cfg.Kafka.TopicResult,
		TopicFailure: a.Cfg.Kafka.TopicFailure,
		Principal:    a.Cfg.Kafka.Principal,
	}, a.Metrics)

	a.Capture = ws.NewHandler(ws.Config{
		Factory:   factory,
		Provider:  a.Cfg.STT.Provider,
		Catalog:   catalog,
		Timing:    a.timing(),
		Limits:    a.limits(),
		Publisher: a.publisher,
		Attempts:  attempt.New(),
		Metrics:   a.Metrics,

		RequireSecure: a.Cfg.Service.RequireSecure,
	})
	a.Probe = capability.Probe{
		Backend:   factory != nil,
		Languages: punctuation.Languages(),
	}

	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("sttProvider", a.Cfg.STT.Provider).
		Bool("kafka", a.Cfg.Kafka.Enabled).
		Msg("Voice capture service starting")

	return nil
}

// Ready reports whether Start completed and Shutdown has not begun.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().Str("method", "Shutdown").Logger()
	a.ready.Store(false)

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Publisher close failed")
		}
	}
	if err := a.closeSTT(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("STT client close failed")
	}
	a.flushSentry()

	shutdownLogger.Info().Msg("Voice capture service shutting down")
}

func (a *Application) loadLabels() (*labels.Catalog, error) {
	path := a.Cfg.Capture.LabelsFile
	if path == "" {
		return labels.NewCatalog(labels.Defaults()), nil
	}
	catalog, err := labels.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	a.Logger.Info().Str("path", path).Msg("Label catalog loaded")
	return catalog, nil
}

func (a *Application) sttFactory(ctx context.Context) (stt.Factory, error) {
	switch a.Cfg.STT.Provider {
	case "", "mock":
		return mock.Factory, nil
	case "google":
		client, err := google.NewClient(ctx, google.Config{
			LanguageCode:   a.Cfg.STT.LanguageCode,
			SampleRateHz:   int32(a.Cfg.STT.SampleRateHz),
			InterimResults: a.Cfg.STT.InterimResults,
			AudioEncoding:  a.Cfg.STT.AudioEncoding,
			Endpoint:       a.Cfg.STT.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("create google speech client: %w", err)
		}
		a.closeSTT = client.Close
		return client.Factory, nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", a.Cfg.STT.Provider)
	}
}

func (a *Application) timing() capture.Timing {
	c := a.Cfg.Capture
	return capture.Timing{
		SilenceTimeout: c.SilenceTimeout,
		SuccessDelay:   c.SuccessDelay,
		CloseDelay:     c.CloseDelay,
		VolumeInterval: c.VolumeInterval,
		FFTSize:        c.FFTSize,
	}
}

func (a *Application) limits() audio.CaptureLimits {
	l := a.Cfg.Limits
	return audio.CaptureLimits{
		MaxAudioBytes: l.MaxAudioBytes,
		MaxDuration:   l.MaxDuration,
		MaxInterims:   l.MaxInterims,
	}
}
