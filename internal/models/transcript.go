// Package models defines the data structures for conversation transcripts
// and the events exchanged with the transport layer.
package models

// AudioChunk is one unit of streamed audio for a participant, as delivered
// by the transport layer. Timestamp is producer-supplied milliseconds since
// epoch; AudioLevel is the upstream activity heuristic.
type AudioChunk struct {
	ParticipantID string  `json:"participantId"`
	Timestamp     int64   `json:"timestamp"`
	Payload       []byte  `json:"payload"`
	AudioLevel    float64 `json:"audioLevel"`
}

// TranscriptEntry is one finalized piece of speaker-attributed transcript.
// Entries are append-only within a conversation.
type TranscriptEntry struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	SpeakerLabel string  `json:"speakerLabel"`
	Timestamp    int64   `json:"timestamp"`
	Confidence   float64 `json:"confidence"`
	IsFinal      bool    `json:"isFinal"`
}

// SummaryStats aggregates a finished conversation's transcript history.
type SummaryStats struct {
	TotalEntries      int            `json:"totalEntries"`
	EntriesBySpeaker  map[string]int `json:"entriesBySpeaker"`
	DurationMs        int64          `json:"durationMs"`
	AverageConfidence float64        `json:"averageConfidence"`
}

// ConversationRecord is the persisted form of an ended conversation.
type ConversationRecord struct {
	ID           string            `json:"id"`
	StartTime    int64             `json:"startTime"`
	EndTime      int64             `json:"endTime"`
	Participants []string          `json:"participants"`
	Transcripts  []TranscriptEntry `json:"transcripts"`
	Summary      SummaryStats      `json:"summary"`
}
