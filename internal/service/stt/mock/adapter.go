// Package mock provides a mock transcriber for development and testing
// without cloud credentials. It simulates a slow backend returning canned
// text with realistic confidence scores.
package mock

import (
	"context"
	"sync"
	"time"

	"call-transcription-engine/internal/service/stt"
)

// SimulatedResult is one canned transcription outcome.
type SimulatedResult struct {
	Text       string
	Confidence float64
}

// DefaultResults provides sample transcriptions for simulation.
var DefaultResults = []SimulatedResult{
	{Text: "Hey, can you hear me", Confidence: 0.94},
	{Text: "Yes loud and clear", Confidence: 0.97},
	{Text: "I was thinking we could meet on Thursday", Confidence: 0.91},
	{Text: "Thursday works for me", Confidence: 0.95},
	{Text: "Great, see you then", Confidence: 0.98},
}

// Adapter implements stt.Transcriber with canned responses after a fixed
// delay. Results cycle through DefaultResults per adapter instance.
type Adapter struct {
	Delay   time.Duration
	Results []SimulatedResult

	mu   sync.Mutex
	next int
}

// New creates a mock transcriber with a realistic processing delay.
func New() *Adapter {
	return &Adapter{
		Delay:   300 * time.Millisecond,
		Results: DefaultResults,
	}
}

// Transcribe returns the next canned result after the configured delay,
// honoring context cancellation like a real backend would.
func (a *Adapter) Transcribe(ctx context.Context, payload []byte, participantID string) (stt.Result, error) {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return stt.Result{}, ctx.Err()
		}
	}

	if len(payload) == 0 {
		return stt.Result{}, nil
	}

	a.mu.Lock()
	r := a.Results[a.next%len(a.Results)]
	a.next++
	a.mu.Unlock()

	return stt.Result{Text: r.Text, Confidence: r.Confidence}, nil
}
