package bus

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"call-transcription-engine/internal/models"
	"call-transcription-engine/internal/observability/metrics"
)

// Inbound subjects published by the transport layer.
const (
	SubjectAudio = "call.audio"
	SubjectStart = "call.start"
	SubjectEnd   = "call.end"
)

// Engine is the subset of the transcription engine the consumer drives.
type Engine interface {
	HandleChunk(key string, chunk models.AudioChunk)
	StartConversation(key string)
	EndConversation(key string) error
}

// Subscriber is the subset of Client the consumer needs.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// Consumer decodes inbound call events and drives the engine. Malformed
// events are logged and dropped; one bad producer must not take down the
// stream.
type Consumer struct {
	engine  Engine
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewConsumer creates a consumer for the given engine.
func NewConsumer(engine Engine, logger zerolog.Logger) *Consumer {
	return &Consumer{
		engine:  engine,
		logger:  logger,
		metrics: metrics.DefaultMetrics,
	}
}

// Start subscribes to the inbound event subjects.
func (c *Consumer) Start(bus Subscriber) error {
	if err := bus.Subscribe(SubjectAudio, c.handleAudio); err != nil {
		return err
	}
	if err := bus.Subscribe(SubjectStart, c.handleStart); err != nil {
		return err
	}
	return bus.Subscribe(SubjectEnd, c.handleEnd)
}

func (c *Consumer) handleAudio(subject string, data []byte) {
	var ev models.AudioChunkEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.metrics.RecordChunkRejected("malformed")
		c.logger.Warn().Err(err).
			Str("subject", subject).
			Str("eventType", models.EventAudioChunk).
			Msg("dropping malformed audio event")
		return
	}
	if ev.ConversationID == "" || ev.ParticipantID == "" {
		c.metrics.RecordChunkRejected("missing_ids")
		c.logger.Warn().
			Str("subject", subject).
			Str("eventType", models.EventAudioChunk).
			Msg("dropping audio event without ids")
		return
	}
	if ev.Timestamp <= 0 || ev.AudioLevel < 0 {
		c.metrics.RecordChunkRejected("invalid_fields")
		c.logger.Warn().
			Str("eventType", models.EventAudioChunk).
			Str("conversationKey", ev.ConversationID).
			Int64("timestamp", ev.Timestamp).
			Float64("audioLevel", ev.AudioLevel).
			Msg("dropping audio event with invalid fields")
		return
	}

	c.engine.HandleChunk(ev.ConversationID, models.AudioChunk{
		ParticipantID: ev.ParticipantID,
		Timestamp:     ev.Timestamp,
		Payload:       ev.AudioData,
		AudioLevel:    ev.AudioLevel,
	})
}

func (c *Consumer) handleStart(subject string, data []byte) {
	var ev models.StartConversationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Warn().Err(err).
			Str("subject", subject).
			Str("eventType", models.EventStartConversation).
			Msg("dropping malformed start event")
		return
	}
	if ev.ConversationID == "" {
		c.logger.Warn().
			Str("subject", subject).
			Str("eventType", models.EventStartConversation).
			Msg("dropping start event without conversation id")
		return
	}
	c.engine.StartConversation(ev.ConversationID)
}

func (c *Consumer) handleEnd(subject string, data []byte) {
	var ev models.EndConversationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Warn().Err(err).
			Str("subject", subject).
			Str("eventType", models.EventEndConversation).
			Msg("dropping malformed end event")
		return
	}
	if ev.ConversationID == "" {
		c.logger.Warn().
			Str("subject", subject).
			Str("eventType", models.EventEndConversation).
			Msg("dropping end event without conversation id")
		return
	}
	if err := c.engine.EndConversation(ev.ConversationID); err != nil {
		c.logger.Warn().Err(err).
			Str("conversationKey", ev.ConversationID).
			Msg("end signal for unknown conversation")
	}
}
