package bus

import (
	"github.com/rs/zerolog"

	"call-transcription-engine/internal/models"
	"call-transcription-engine/internal/observability/metrics"
)

// Publisher is the subset of Client the dispatcher needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// Dispatcher broadcasts finalized transcripts to conversation subscribers.
// Delivery is at-most-effort: no acknowledgement, no replay for late
// subscribers.
type Dispatcher struct {
	bus     Publisher
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher over the given bus.
func NewDispatcher(bus Publisher, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		bus:     bus,
		logger:  logger,
		metrics: metrics.DefaultMetrics,
	}
}

// TranscriptSubject is the broadcast subject for one conversation.
func TranscriptSubject(conversationKey string) string {
	return "conversation." + conversationKey + ".transcript"
}

// ErrorSubject addresses a single participant's subscriber within a
// conversation.
func ErrorSubject(conversationKey, participantID string) string {
	return "conversation." + conversationKey + "." + participantID + ".error"
}

// PublishTranscript delivers a finalized entry to all current subscribers of
// the conversation. Failures are logged, never propagated: a dropped
// broadcast does not invalidate the persisted entry.
func (d *Dispatcher) PublishTranscript(conversationKey string, entry models.TranscriptEntry) {
	ev := models.TranscriptEvent{
		EventType:      "transcription",
		ConversationID: conversationKey,
		Result:         entry,
	}

	err := d.bus.Publish(TranscriptSubject(conversationKey), ev)
	d.metrics.RecordBroadcast(err)
	if err != nil {
		d.logger.Error().Err(err).
			Str("conversationKey", conversationKey).
			Str("entryId", entry.ID).
			Msg("failed to broadcast transcript")
	}
}

// PublishError notifies the originating subscriber of a processing failure
// for its participant.
func (d *Dispatcher) PublishError(conversationKey, participantID, message string) {
	ev := models.TranscriptionErrorEvent{
		EventType:      "transcription-error",
		ConversationID: conversationKey,
		ParticipantID:  participantID,
		Message:        message,
	}

	if err := d.bus.Publish(ErrorSubject(conversationKey, participantID), ev); err != nil {
		d.logger.Error().Err(err).
			Str("conversationKey", conversationKey).
			Str("participantId", participantID).
			Msg("failed to publish transcription error")
	}
}
