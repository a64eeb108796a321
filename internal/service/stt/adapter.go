// Package stt defines the interface for speech-to-text backends.
package stt

import "context"

// Result is one transcription outcome for a participant's combined payload.
type Result struct {
	Text       string
	Confidence float64
}

// Transcriber converts a combined audio payload into text for one
// participant. Implementations may be slow and may fail; the caller bounds
// the call with the context and must not assume success or ordering across
// participants.
type Transcriber interface {
	Transcribe(ctx context.Context, payload []byte, participantID string) (Result, error)
}
