package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// t.Setenv to "" reads as unset through envOrDefault
	for _, v := range []string{
		"SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT", "ENV", "LOG_LEVEL",
		"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ",
		"STT_INTERIM_RESULTS", "STT_AUDIO_ENCODING",
		"CAPTURE_SILENCE_TIMEOUT", "CAPTURE_SUCCESS_DELAY", "CAPTURE_CLOSE_DELAY",
		"CAPTURE_MAX_AUDIO_BYTES", "CAPTURE_MAX_DURATION", "CAPTURE_MAX_INTERIMS",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL", "SENTRY_DSN",
	} {
		t.Setenv(v, "")
	}

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-voice-capture" {
		t.Errorf("expected default principal 'svc-voice-capture', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default HTTP port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default gRPC port '50051', got %s", cfg.Service.GRPCPort)
	}

	// STT defaults
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.STT.InterimResults {
		t.Error("expected interim results enabled by default")
	}
	if cfg.STT.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.STT.AudioEncoding)
	}

	// Capture defaults
	if cfg.Capture.SilenceTimeout != 8*time.Second {
		t.Errorf("expected default silence timeout 8s, got %v", cfg.Capture.SilenceTimeout)
	}
	if cfg.Capture.SuccessDelay != 400*time.Millisecond {
		t.Errorf("expected default success delay 400ms, got %v", cfg.Capture.SuccessDelay)
	}
	if cfg.Capture.CloseDelay != 2*time.Second {
		t.Errorf("expected default close delay 2s, got %v", cfg.Capture.CloseDelay)
	}

	// Limits defaults
	if cfg.Limits.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("expected default max audio bytes 5MB, got %d", cfg.Limits.MaxAudioBytes)
	}
	if cfg.Limits.MaxDuration != 2*time.Minute {
		t.Errorf("expected default max duration 2m, got %v", cfg.Limits.MaxDuration)
	}
	if cfg.Limits.MaxInterims != 500 {
		t.Errorf("expected default max interims 500, got %d", cfg.Limits.MaxInterims)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no brokers by default, got %v", cfg.Kafka.Brokers)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Observability.SentryDSN != "" {
		t.Errorf("expected no Sentry DSN by default, got %s", cfg.Observability.SentryDSN)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STT_PROVIDER", "google")
	t.Setenv("STT_LANGUAGE_CODE", "es-ES")
	t.Setenv("STT_SAMPLE_RATE_HZ", "8000")
	t.Setenv("STT_INTERIM_RESULTS", "false")
	t.Setenv("STT_AUDIO_ENCODING", "MULAW")
	t.Setenv("CAPTURE_SILENCE_TIMEOUT", "5s")
	t.Setenv("CAPTURE_LABELS_FILE", "/etc/capture/labels.yaml")
	t.Setenv("CAPTURE_MAX_AUDIO_BYTES", "10485760")
	t.Setenv("CAPTURE_MAX_DURATION", "10m")
	t.Setenv("CAPTURE_MAX_INTERIMS", "1000")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SENTRY_DSN", "https://key@sentry.example.com/1")

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "es-ES" {
		t.Errorf("expected language 'es-ES', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.InterimResults {
		t.Error("expected interim results false")
	}
	if cfg.STT.AudioEncoding != "MULAW" {
		t.Errorf("expected encoding 'MULAW', got %s", cfg.STT.AudioEncoding)
	}
	if cfg.Capture.SilenceTimeout != 5*time.Second {
		t.Errorf("expected silence timeout 5s, got %v", cfg.Capture.SilenceTimeout)
	}
	if cfg.Capture.LabelsFile != "/etc/capture/labels.yaml" {
		t.Errorf("unexpected labels file %s", cfg.Capture.LabelsFile)
	}
	if cfg.Limits.MaxAudioBytes != 10485760 {
		t.Errorf("expected max audio bytes 10485760, got %d", cfg.Limits.MaxAudioBytes)
	}
	if cfg.Limits.MaxDuration != 10*time.Minute {
		t.Errorf("expected max duration 10m, got %v", cfg.Limits.MaxDuration)
	}
	if cfg.Limits.MaxInterims != 1000 {
		t.Errorf("expected max interims 1000, got %d", cfg.Limits.MaxInterims)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Observability.SentryDSN == "" {
		t.Error("expected Sentry DSN to be set")
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	t.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	t.Setenv("STT_INTERIM_RESULTS", "invalid")
	t.Setenv("CAPTURE_SILENCE_TIMEOUT", "eight seconds")
	t.Setenv("CAPTURE_MAX_AUDIO_BYTES", "invalid")
	t.Setenv("CAPTURE_MAX_DURATION", "invalid")
	t.Setenv("CAPTURE_MAX_INTERIMS", "invalid")

	cfg := Load()

	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.STT.InterimResults {
		t.Error("expected default interim results on invalid input")
	}
	if cfg.Capture.SilenceTimeout != 8*time.Second {
		t.Errorf("expected default silence timeout on invalid input, got %v", cfg.Capture.SilenceTimeout)
	}
	if cfg.Limits.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("expected default max audio bytes on invalid input, got %d", cfg.Limits.MaxAudioBytes)
	}
	if cfg.Limits.MaxDuration != 2*time.Minute {
		t.Errorf("expected default max duration on invalid input, got %v", cfg.Limits.MaxDuration)
	}
	if cfg.Limits.MaxInterims != 500 {
		t.Errorf("expected default max interims on invalid input, got %d", cfg.Limits.MaxInterims)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "my-service")
	t.Setenv("KAFKA_PRINCIPAL", "")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.envValue)
			got := envOrDefaultBool("TEST_BOOL_VAR", tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"seconds", "3s", 3 * time.Second},
		{"milliseconds", "250ms", 250 * time.Millisecond},
		{"invalid", "soon", time.Minute},
		{"empty", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION_VAR", tt.envValue)
			if got := envOrDefaultDuration("TEST_DURATION_VAR", time.Minute); got != tt.expected {
				t.Errorf("envOrDefaultDuration(%s) = %v, want %v", tt.envValue, got, tt.expected)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a:1 ,, b:2 ")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("splitList = %v", got)
	}
	if splitList("") != nil {
		t.Error("expected nil for empty input")
	}
}
