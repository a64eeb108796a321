package models

// Inbound event types published by the transport layer.
const (
	EventAudioChunk        = "audio-chunk"
	EventStartConversation = "start-conversation"
	EventEndConversation   = "end-conversation"
)

// AudioChunkEvent carries one audio chunk for a live conversation.
// AudioData is base64 on the wire (encoding/json []byte convention).
type AudioChunkEvent struct {
	ConversationID string  `json:"conversationId"`
	ParticipantID  string  `json:"participantId"`
	Timestamp      int64   `json:"timestamp"`
	AudioData      []byte  `json:"audioData"`
	AudioLevel     float64 `json:"audioLevel"`
}

// StartConversationEvent signals an explicit conversation start.
type StartConversationEvent struct {
	ConversationID string `json:"conversationId"`
}

// EndConversationEvent signals an explicit conversation end.
type EndConversationEvent struct {
	ConversationID string `json:"conversationId"`
}

// TranscriptEvent is broadcast to all subscribers of a conversation when a
// transcript entry is finalized.
type TranscriptEvent struct {
	EventType      string          `json:"eventType"`
	ConversationID string          `json:"conversationId"`
	Result         TranscriptEntry `json:"result"`
}

// TranscriptionErrorEvent is delivered to the originating subscriber only,
// on a processing failure for that participant.
type TranscriptionErrorEvent struct {
	EventType      string `json:"eventType"`
	ConversationID string `json:"conversationId"`
	ParticipantID  string `json:"participantId"`
	Message        string `json:"message"`
}

// SummaryEvent is published to the downstream feed when a conversation ends.
type SummaryEvent struct {
	EventType      string       `json:"eventType"`
	ConversationID string       `json:"conversationId"`
	Summary        SummaryStats `json:"summary"`
	Timestamp      int64        `json:"timestamp"`
}
