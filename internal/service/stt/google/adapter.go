// Package google provides a Google Cloud Speech-to-Text transcriber.
package google

import (
	"context"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"call-transcription-engine/internal/service/stt"
)

// Adapter implements stt.Transcriber using Google Cloud Speech-to-Text.
// Each processing pass hands over one combined payload per participant, so
// the synchronous Recognize call fits the engine's cadence.
type Adapter struct {
	client     *speech.Client
	sampleRate int32
	language   string
}

// New creates a new Google transcriber.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client:     c,
		sampleRate: 8000,
		language:   "en-US",
	}, nil
}

// Transcribe runs one synchronous recognition over the combined payload and
// returns the top alternative.
func (a *Adapter) Transcribe(ctx context.Context, payload []byte, participantID string) (stt.Result, error) {
	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: a.sampleRate,
			LanguageCode:    a.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: payload},
		},
	})
	if err != nil {
		return stt.Result{}, err
	}

	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		return stt.Result{Text: alt.Transcript, Confidence: float64(alt.Confidence)}, nil
	}
	return stt.Result{}, nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.client.Close()
}
