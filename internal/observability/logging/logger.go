// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	// Set time format
	zerolog.TimeFieldFormat = cfg.TimeFormat

	// Parse log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	// Set global logger
	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Logger returns a new logger with common fields for the service.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithConnection returns a logger with websocket connection context.
func WithConnection(connectionID, remoteAddr string) zerolog.Logger {
	return log.With().
		Str("connectionId", connectionID).
		Str("remoteAddr", remoteAddr).
		Logger()
}

// WithSession returns a logger with capture session context.
func WithSession(sessionID, languageTag string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionID).
		Str("languageTag", languageTag).
		Logger()
}

// WithRecognizer returns a logger with recognizer stream context.
func WithRecognizer(sessionID, languageTag, provider string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionID).
		Str("languageTag", languageTag).
		Str("sttProvider", provider).
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}
