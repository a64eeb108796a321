// Package events publishes finalized transcripts and conversation summaries
// to the downstream Kafka feed consumed by analytics and archival jobs.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"call-transcription-engine/internal/models"
	"call-transcription-engine/internal/observability/metrics"
)

// Publisher publishes conversation events to separate Kafka topics. Messages
// are keyed by conversation key so per-conversation ordering is preserved.
type Publisher struct {
	writerTranscripts *kafka.Writer
	writerSummaries   *kafka.Writer
	principal         string
	topicTranscripts  string
	topicSummaries    string
	enabled           bool
	metrics           *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicTranscripts string
	TopicSummaries   string
	Principal        string
	Enabled          bool
}

// New creates a Kafka publisher. With no brokers, or disabled, it runs in
// log-only mode and every publish succeeds without touching the network.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:        cfg.Principal,
			topicTranscripts: cfg.TopicTranscripts,
			topicSummaries:   cfg.TopicSummaries,
			enabled:          false,
			metrics:          m,
		}
	}

	// Longer dial timeouts for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerTranscripts := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTranscripts,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerSummaries := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSummaries,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscripts", cfg.TopicTranscripts).
		Str("topicSummaries", cfg.TopicSummaries).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscripts: writerTranscripts,
		writerSummaries:   writerSummaries,
		principal:         cfg.Principal,
		topicTranscripts:  cfg.TopicTranscripts,
		topicSummaries:    cfg.TopicSummaries,
		enabled:           true,
		metrics:           m,
	}
}

// PublishTranscript publishes a finalized transcript entry.
func (p *Publisher) PublishTranscript(ctx context.Context, conversationKey string, entry models.TranscriptEntry) error {
	ev := models.TranscriptEvent{
		EventType:      "conversation.transcript.final",
		ConversationID: conversationKey,
		Result:         entry,
	}
	return p.publish(ctx, p.writerTranscripts, p.topicTranscripts, "transcript", conversationKey, ev)
}

// PublishSummary publishes the summary of an ended conversation.
func (p *Publisher) PublishSummary(ctx context.Context, record models.ConversationRecord) error {
	ev := models.SummaryEvent{
		EventType:      "conversation.summary",
		ConversationID: record.ID,
		Summary:        record.Summary,
		Timestamp:      record.EndTime,
	}
	return p.publish(ctx, p.writerSummaries, p.topicSummaries, "summary", record.ID, ev)
}

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
		Msg("Publishing feed event")

	if !p.enabled || writer == nil {
		p.metrics.RecordFeedPublish(topic, eventType, nil, time.Since(start).Seconds())
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
		p.metrics.RecordFeedPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordFeedPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscripts != nil {
		if e := p.writerTranscripts.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcripts writer")
			err = e
		}
	}
	if p.writerSummaries != nil {
		if e := p.writerSummaries.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing summaries writer")
			err = e
		}
	}
	return err
}
