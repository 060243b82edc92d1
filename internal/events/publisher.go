// Package events publishes capture outcome events.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-capture-service/internal/capture"
	"voice-capture-service/internal/models"
	"voice-capture-service/internal/observability/metrics"
)

// DefaultPublishTimeout bounds a single Report call.
const DefaultPublishTimeout = 5 * time.Second

// Publisher publishes capture outcomes to separate Kafka topics for
// sessions that delivered a result and sessions that did not.
type Publisher struct {
	writerResult  *kafka.Writer
	writerFailure *kafka.Writer
	principal     string
	topicResult   string
	topicFailure  string
	enabled       bool
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicResult  string
	TopicFailure string
	Principal    string
	Enabled      bool
}

// New creates a new Kafka event publisher. A nil or disabled config
// yields a publisher that only logs.
func New(cfg *Config) *Publisher {
	return NewWithMetrics(cfg, metrics.DefaultMetrics)
}

// NewWithMetrics is New with an explicit metrics sink.
func NewWithMetrics(cfg *Config, m *metrics.Metrics) *Publisher {
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:    cfg.Principal,
			topicResult:  cfg.TopicResult,
			topicFailure: cfg.TopicFailure,
			metrics:      m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p := &Publisher{
		writerResult:  newWriter(cfg.Brokers, cfg.TopicResult, transport),
		writerFailure: newWriter(cfg.Brokers, cfg.TopicFailure, transport),
		principal:     cfg.Principal,
		topicResult:   cfg.TopicResult,
		topicFailure:  cfg.TopicFailure,
		enabled:       true,
		metrics:       m,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicResult", cfg.TopicResult).
		Str("topicFailure", cfg.TopicFailure).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishResult publishes an event for a session that delivered a result.
func (p *Publisher) PublishResult(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerResult, p.topicResult, "result", key, event)
}

// PublishFailure publishes an event for a session that ended without one.
func (p *Publisher) PublishFailure(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerFailure, p.topicFailure, "failure", key, event)
}

// Reporter returns a capture.Reporter that publishes every outcome in the
// background so session teardown never waits on Kafka. connectionID is
// attached to each event.
func (p *Publisher) Reporter(connectionID string) capture.Reporter {
	return capture.ReporterFunc(func(o capture.Outcome) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultPublishTimeout)
			defer cancel()
			_ = p.PublishOutcome(ctx, connectionID, o)
		}()
	})
}

// PublishOutcome converts o into a CaptureOutcome event and routes it to
// the result or failure topic.
func (p *Publisher) PublishOutcome(ctx context.Context, connectionID string, o capture.Outcome) error {
	event := p.OutcomeEvent(connectionID, o)
	if event.EventType == models.EventTypeCaptureResult {
		return p.PublishResult(ctx, o.SessionID, event)
	}
	return p.PublishFailure(ctx, o.SessionID, event)
}

// OutcomeEvent builds the event published for o.
func (p *Publisher) OutcomeEvent(connectionID string, o capture.Outcome) models.CaptureOutcome {
	eventType := models.EventTypeCaptureFailure
	if o.Status == capture.StatusSuccess && o.Reason == capture.ReasonResult {
		eventType = models.EventTypeCaptureResult
	}
	return models.CaptureOutcome{
		EventType:    eventType,
		SessionID:    o.SessionID,
		ConnectionID: connectionID,
		Principal:    p.principal,
		Timestamp:    time.Now().UnixMilli(),
		LanguageTag:  o.LanguageTag,
		Status:       o.Status.String(),
		Reason:       string(o.Reason),
		ErrorCode:    o.ErrorCode,
		Confidence:   o.Confidence,
		TextLength:   o.TextLength,
		Interims:     o.Interims,
		DurationMs:   o.Duration.Milliseconds(),
	}
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.recordPublish(topic, eventType, nil, start)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.recordPublish(topic, eventType, err, start)
		return err
	}

	p.recordPublish(topic, eventType, nil, start)
	return nil
}

func (p *Publisher) recordPublish(topic, eventType string, err error, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerResult != nil {
		if e := p.writerResult.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing result writer")
			err = e
		}
	}
	if p.writerFailure != nil {
		if e := p.writerFailure.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing failure writer")
			err = e
		}
	}
	return err
}
