// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	Capture       CaptureConfig
	Limits        LimitsConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service identity and listener settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	GRPCPort    string
	Environment string
	// RequireSecure rejects capture sockets from insecure contexts.
	RequireSecure bool
}

// STTConfig holds speech-to-text settings.
type STTConfig struct {
	Provider       string // "mock" or "google"
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	Endpoint       string
}

// CaptureConfig holds capture session timing.
type CaptureConfig struct {
	SilenceTimeout time.Duration
	SuccessDelay   time.Duration
	CloseDelay     time.Duration
	VolumeInterval time.Duration
	FFTSize        int
	// LabelsFile is an optional YAML label catalog.
	LabelsFile string
}

// LimitsConfig holds per-attempt backpressure limits.
type LimitsConfig struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxInterims   int
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicResult  string
	TopicFailure string
	Principal    string
}

// ObservabilityConfig holds logging, metrics and error reporting settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
	SentryDSN   string
}

// Load reads configuration from environment variables.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-capture")

	return &Config{
		Service: ServiceConfig{
			Principal:     principal,
			HTTPPort:      envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:      envOrDefault("GRPC_PORT", "50051"),
			Environment:   envOrDefault("ENV", "production"),
			RequireSecure: envOrDefaultBool("CAPTURE_REQUIRE_SECURE", false),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			Endpoint:       os.Getenv("STT_ENDPOINT"),
		},
		Capture: CaptureConfig{
			SilenceTimeout: envOrDefaultDuration("CAPTURE_SILENCE_TIMEOUT", 8*time.Second),
			SuccessDelay:   envOrDefaultDuration("CAPTURE_SUCCESS_DELAY", 400*time.Millisecond),
			CloseDelay:     envOrDefaultDuration("CAPTURE_CLOSE_DELAY", 2*time.Second),
			VolumeInterval: envOrDefaultDuration("CAPTURE_VOLUME_INTERVAL", 33*time.Millisecond),
			FFTSize:        envOrDefaultInt("CAPTURE_FFT_SIZE", 64),
			LabelsFile:     os.Getenv("CAPTURE_LABELS_FILE"),
		},
		Limits: LimitsConfig{
			MaxAudioBytes: int64(envOrDefaultInt("CAPTURE_MAX_AUDIO_BYTES", 5*1024*1024)),
			MaxDuration:   envOrDefaultDuration("CAPTURE_MAX_DURATION", 2*time.Minute),
			MaxInterims:   envOrDefaultInt("CAPTURE_MAX_INTERIMS", 500),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      splitList(os.Getenv("KAFKA_BROKERS")),
			TopicResult:  envOrDefault("KAFKA_TOPIC_RESULT", "capture.session.result"),
			TopicFailure: envOrDefault("KAFKA_TOPIC_FAILURE", "capture.session.failure"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
			SentryDSN:   os.Getenv("SENTRY_DSN"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
