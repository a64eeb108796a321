// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "call_transcription"

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Session metrics
	SessionsCreated prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsEnded   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Audio ingest metrics
	ChunksReceived     prometheus.Counter
	AudioBytesReceived prometheus.Counter
	ChunksRejected     *prometheus.CounterVec

	// Processing pass metrics
	PassesStarted    prometheus.Counter
	PassesSuppressed *prometheus.CounterVec
	PassDuration     prometheus.Histogram

	// Transcription metrics
	TranscriptsFinal   prometheus.Counter
	TranscriptsEmpty   prometheus.Counter
	TranscriptionError *prometheus.CounterVec
	STTLatency         *prometheus.HistogramVec

	// Persistence metrics
	StoreWrites prometheus.Counter
	StoreErrors *prometheus.CounterVec

	// Broadcast / feed metrics
	BroadcastPublished prometheus.Counter
	BroadcastErrors    prometheus.Counter
	FeedPublishTotal   *prometheus.CounterVec
	FeedPublishErrors  *prometheus.CounterVec
	FeedPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of conversation sessions created",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently live conversation sessions",
		}),
		SessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of sessions ended",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of conversation sessions",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		ChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total audio chunks ingested",
		}),
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes ingested",
		}),
		ChunksRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_rejected_total",
			Help:      "Total audio chunks rejected before ingest",
		}, []string{"reason"}),

		PassesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_started_total",
			Help:      "Total processing passes started",
		}),
		PassesSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_suppressed_total",
			Help:      "Total processing pass triggers suppressed",
		}, []string{"reason"}),
		PassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of processing passes",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total finalized transcript entries",
		}),
		TranscriptsEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_empty_total",
			Help:      "Total transcription results discarded as empty",
		}),
		TranscriptionError: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_errors_total",
			Help:      "Total transcription failures",
		}, []string{"kind"}),
		STTLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text call latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"outcome"}),

		StoreWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Total persistence writes",
		}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total persistence failures",
		}, []string{"operation"}),

		BroadcastPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_published_total",
			Help:      "Total transcript broadcasts published",
		}),
		BroadcastErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_errors_total",
			Help:      "Total broadcast publish failures",
		}),
		FeedPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_publish_total",
			Help:      "Total downstream feed messages published",
		}, []string{"topic", "event_type"}),
		FeedPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_publish_errors_total",
			Help:      "Total downstream feed publish errors",
		}, []string{"topic", "event_type"}),
		FeedPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_publish_latency_seconds",
			Help:      "Downstream feed publish latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionCreated records a new session being registered.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnded records a session leaving the registry.
func (m *Metrics) RecordSessionEnded(reason string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsEnded.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordChunk records one ingested audio chunk.
func (m *Metrics) RecordChunk(bytes int) {
	m.ChunksReceived.Inc()
	m.AudioBytesReceived.Add(float64(bytes))
}

// RecordChunkRejected records a chunk rejected before ingest.
func (m *Metrics) RecordChunkRejected(reason string) {
	m.ChunksRejected.WithLabelValues(reason).Inc()
}

// RecordPassStarted records a processing pass starting.
func (m *Metrics) RecordPassStarted() {
	m.PassesStarted.Inc()
}

// RecordPassSuppressed records a pass trigger suppressed by the scheduler.
func (m *Metrics) RecordPassSuppressed(reason string) {
	m.PassesSuppressed.WithLabelValues(reason).Inc()
}

// RecordPassDone records a completed processing pass.
func (m *Metrics) RecordPassDone(durationSeconds float64) {
	m.PassDuration.Observe(durationSeconds)
}

// RecordTranscript records a finalized transcript entry.
func (m *Metrics) RecordTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordEmptyResult records a blank transcription result being discarded.
func (m *Metrics) RecordEmptyResult() {
	m.TranscriptsEmpty.Inc()
}

// RecordTranscriptionError records a transcription failure.
func (m *Metrics) RecordTranscriptionError(kind string) {
	m.TranscriptionError.WithLabelValues(kind).Inc()
}

// RecordSTT records one transcription call outcome.
func (m *Metrics) RecordSTT(outcome string, latencySeconds float64) {
	m.STTLatency.WithLabelValues(outcome).Observe(latencySeconds)
}

// RecordStoreWrite records a persistence write attempt.
func (m *Metrics) RecordStoreWrite(operation string, err error) {
	m.StoreWrites.Inc()
	if err != nil {
		m.StoreErrors.WithLabelValues(operation).Inc()
	}
}

// RecordBroadcast records a broadcast publish attempt.
func (m *Metrics) RecordBroadcast(err error) {
	m.BroadcastPublished.Inc()
	if err != nil {
		m.BroadcastErrors.Inc()
	}
}

// RecordFeedPublish records a downstream feed publish attempt.
func (m *Metrics) RecordFeedPublish(topic, eventType string, err error, latencySeconds float64) {
	m.FeedPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.FeedPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.FeedPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
