// Package engine runs the transcription pipeline for live conversations:
// ingest, windowing, per-speaker grouping, transcription, persistence and
// broadcast.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"call-transcription-engine/internal/events"
	"call-transcription-engine/internal/models"
	"call-transcription-engine/internal/observability/metrics"
	"call-transcription-engine/internal/service/audio"
	"call-transcription-engine/internal/service/stt"
	"call-transcription-engine/internal/session"
	"call-transcription-engine/internal/store"
)

// ErrUnknownConversation is returned when an end signal names a key with no
// live session.
var ErrUnknownConversation = errors.New("unknown conversation")

// Dispatcher broadcasts engine output to conversation subscribers.
type Dispatcher interface {
	PublishTranscript(conversationKey string, entry models.TranscriptEntry)
	PublishError(conversationKey, participantID, message string)
}

// Store persists transcript entries and finalized conversations.
type Store interface {
	AppendTranscript(key string, entry models.TranscriptEntry) error
	FinalizeConversation(record models.ConversationRecord) error
}

// Labeler maps a participant to its speaker label within a conversation.
type Labeler func(conversationKey, participantID string) string

// Options configures an Engine.
type Options struct {
	STTTimeout  time.Duration // bound on one transcription call
	IdleTimeout time.Duration // janitor finalizes sessions idle this long; 0 disables
	Label       Labeler
}

// Engine coordinates the per-conversation transcription pipeline. One engine
// serves all conversations; per-session locking keeps unrelated sessions
// fully parallel.
type Engine struct {
	registry    *session.Registry
	transcriber stt.Transcriber
	dispatcher  Dispatcher
	store       Store
	feed        *events.Publisher
	label       Labeler
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	sttTimeout  time.Duration
	idleTimeout time.Duration

	passWG      sync.WaitGroup
	janitorStop chan struct{}
	janitorDone chan struct{}
}

// New creates an engine. The feed may be a disabled publisher but not nil.
func New(
	registry *session.Registry,
	transcriber stt.Transcriber,
	dispatcher Dispatcher,
	store Store,
	feed *events.Publisher,
	logger zerolog.Logger,
	opts Options,
) *Engine {
	if opts.STTTimeout <= 0 {
		opts.STTTimeout = 10 * time.Second
	}
	if opts.Label == nil {
		opts.Label = func(_, participantID string) string { return participantID }
	}
	return &Engine{
		registry:    registry,
		transcriber: transcriber,
		dispatcher:  dispatcher,
		store:       store,
		feed:        feed,
		label:       opts.Label,
		logger:      logger,
		metrics:     metrics.DefaultMetrics,
		sttTimeout:  opts.STTTimeout,
		idleTimeout: opts.IdleTimeout,
	}
}

// StartConversation registers a session for the key if absent. Idempotent.
func (e *Engine) StartConversation(key string) {
	if _, created := e.registry.GetOrCreate(key); created {
		e.metrics.RecordSessionCreated()
		e.logger.Info().Str("conversationKey", key).Msg("conversation started")
	}
}

// HandleChunk ingests one audio chunk and triggers a processing pass when the
// scheduler allows it. Creation on first chunk is implicit.
func (e *Engine) HandleChunk(key string, chunk models.AudioChunk) {
	sess, created := e.registry.GetOrCreate(key)
	if created {
		e.metrics.RecordSessionCreated()
		e.logger.Info().Str("conversationKey", key).Msg("conversation started on first chunk")
	}

	now := e.registry.Now()
	sess.Ingest(chunk, now)
	e.metrics.RecordChunk(len(chunk.Payload))

	ok, reason := sess.TryBeginPass(now)
	if !ok {
		e.metrics.RecordPassSuppressed(reason)
		return
	}
	e.metrics.RecordPassStarted()

	e.passWG.Add(1)
	go func() {
		defer e.passWG.Done()
		defer sess.EndPass()
		e.runPass(sess, now)
	}()
}

// runPass performs one windowing, grouping and transcription cycle for a
// session. Failures for one participant never abort the others.
func (e *Engine) runPass(sess *session.Session, now time.Time) {
	start := time.Now()
	defer func() {
		e.metrics.RecordPassDone(time.Since(start).Seconds())
	}()

	window := sess.Window(now)
	if len(window) == 0 {
		return
	}

	groups := audio.GroupByParticipant(window)
	for _, participantID := range audio.Participants(groups) {
		e.transcribeParticipant(sess, participantID, groups[participantID])
	}
}

func (e *Engine) transcribeParticipant(sess *session.Session, participantID string, chunks []models.AudioChunk) {
	payload := audio.Combine(chunks)
	if len(payload) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.sttTimeout)
	defer cancel()

	sttStart := time.Now()
	result, err := e.transcriber.Transcribe(ctx, payload, participantID)
	if err != nil {
		kind := "backend"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = "timeout"
		}
		e.metrics.RecordSTT("error", time.Since(sttStart).Seconds())
		e.metrics.RecordTranscriptionError(kind)
		e.logger.Warn().Err(err).
			Str("conversationKey", sess.ID).
			Str("participantId", participantID).
			Str("kind", kind).
			Msg("transcription failed, pass continues")
		e.dispatcher.PublishError(sess.ID, participantID, "transcription failed: "+err.Error())
		return
	}
	e.metrics.RecordSTT("ok", time.Since(sttStart).Seconds())

	text := strings.TrimSpace(result.Text)
	if text == "" {
		// Blank results are expected for silence; not an error.
		e.metrics.RecordEmptyResult()
		return
	}

	entry := models.TranscriptEntry{
		ID:           uuid.NewString(),
		Text:         text,
		SpeakerLabel: e.label(sess.ID, participantID),
		Timestamp:    e.registry.Now().UnixMilli(),
		Confidence:   result.Confidence,
		IsFinal:      true,
	}

	if !sess.AppendTranscript(entry) {
		// The conversation ended while this pass was in flight.
		return
	}
	e.metrics.RecordTranscript()

	// Persistence failure loses this entry's durable copy only; the session
	// and the broadcast proceed.
	err = e.store.AppendTranscript(sess.ID, entry)
	if errors.Is(err, store.ErrConversationFinalized) {
		// The record was written while this pass was in flight; the entry is
		// already part of it and the conversation is over.
		return
	}
	e.metrics.RecordStoreWrite("append", err)
	if err != nil {
		e.logger.Error().Err(err).
			Str("conversationKey", sess.ID).
			Str("entryId", entry.ID).
			Msg("failed to persist transcript entry")
	}

	e.dispatcher.PublishTranscript(sess.ID, entry)

	if err := e.feed.PublishTranscript(context.Background(), sess.ID, entry); err != nil {
		e.logger.Warn().Err(err).
			Str("conversationKey", sess.ID).
			Msg("failed to publish transcript to feed")
	}
}

// EndConversation finalizes and removes a session: summary persisted, session
// gone from the registry. Returns ErrUnknownConversation for an unseen key.
func (e *Engine) EndConversation(key string) error {
	return e.endConversation(key, "signal")
}

func (e *Engine) endConversation(key, reason string) error {
	sess := e.registry.Remove(key)
	if sess == nil {
		return ErrUnknownConversation
	}

	now := e.registry.Now()
	record := sess.Finalize(now)

	err := e.store.FinalizeConversation(record)
	e.metrics.RecordStoreWrite("finalize", err)
	if err != nil {
		e.logger.Error().Err(err).
			Str("conversationKey", key).
			Msg("failed to persist conversation record")
	}

	if err := e.feed.PublishSummary(context.Background(), record); err != nil {
		e.logger.Warn().Err(err).
			Str("conversationKey", key).
			Msg("failed to publish summary to feed")
	}

	duration := time.Duration(record.EndTime-record.StartTime) * time.Millisecond
	e.metrics.RecordSessionEnded(reason, duration.Seconds())
	e.logger.Info().
		Str("conversationKey", key).
		Str("reason", reason).
		Int("entries", record.Summary.TotalEntries).
		Float64("averageConfidence", record.Summary.AverageConfidence).
		Dur("duration", duration).
		Msg("conversation ended")
	return nil
}

// StartJanitor begins finalizing sessions whose last ingest is older than
// the idle timeout. Conversations that never receive an end signal would
// otherwise live until process restart.
func (e *Engine) StartJanitor(interval time.Duration) {
	if e.idleTimeout <= 0 || e.janitorStop != nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	e.janitorStop = make(chan struct{})
	e.janitorDone = make(chan struct{})

	go func() {
		defer close(e.janitorDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.janitorStop:
				return
			case <-ticker.C:
				e.reapIdleSessions()
			}
		}
	}()
}

func (e *Engine) reapIdleSessions() {
	now := e.registry.Now()
	for _, key := range e.registry.Keys() {
		sess := e.registry.Get(key)
		if sess == nil {
			continue
		}
		if sess.IdleSince(now) > e.idleTimeout {
			e.logger.Info().
				Str("conversationKey", key).
				Dur("idle", sess.IdleSince(now)).
				Msg("finalizing idle conversation")
			_ = e.endConversation(key, "idle")
		}
	}
}

// Shutdown ends every live conversation so summaries are persisted, then
// waits for in-flight passes and the janitor to stop.
func (e *Engine) Shutdown() {
	if e.janitorStop != nil {
		close(e.janitorStop)
		<-e.janitorDone
		e.janitorStop = nil
	}

	for _, key := range e.registry.Keys() {
		_ = e.endConversation(key, "shutdown")
	}
	e.passWG.Wait()
}
