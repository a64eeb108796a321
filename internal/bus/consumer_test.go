package bus

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"call-transcription-engine/internal/models"
)

type recordingEngine struct {
	chunks  []models.AudioChunk
	keys    []string
	started []string
	ended   []string
}

func (e *recordingEngine) HandleChunk(key string, chunk models.AudioChunk) {
	e.keys = append(e.keys, key)
	e.chunks = append(e.chunks, chunk)
}

func (e *recordingEngine) StartConversation(key string) {
	e.started = append(e.started, key)
}

func (e *recordingEngine) EndConversation(key string) error {
	e.ended = append(e.ended, key)
	return nil
}

type fakeBus struct {
	handlers map[string]func(subject string, data []byte)
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]func(string, []byte))}
}

func (b *fakeBus) Subscribe(subject string, handler func(subject string, data []byte)) error {
	b.handlers[subject] = handler
	return nil
}

func (b *fakeBus) deliver(t *testing.T, subject string, ev any) {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	b.handlers[subject](subject, data)
}

func TestConsumer_AudioEvent(t *testing.T) {
	eng := &recordingEngine{}
	bus := newFakeBus()
	c := NewConsumer(eng, zerolog.Nop())
	if err := c.Start(bus); err != nil {
		t.Fatal(err)
	}

	bus.deliver(t, SubjectAudio, models.AudioChunkEvent{
		ConversationID: "room-a-b",
		ParticipantID:  "6590339936",
		Timestamp:      123_456,
		AudioData:      []byte("pcm"),
		AudioLevel:     0.4,
	})

	if len(eng.chunks) != 1 {
		t.Fatalf("engine received %d chunks, want 1", len(eng.chunks))
	}
	if eng.keys[0] != "room-a-b" {
		t.Errorf("key = %q", eng.keys[0])
	}
	got := eng.chunks[0]
	if got.ParticipantID != "6590339936" || got.Timestamp != 123_456 || got.AudioLevel != 0.4 {
		t.Errorf("chunk = %+v", got)
	}
	if string(got.Payload) != "pcm" {
		t.Errorf("payload = %q", got.Payload)
	}
}

func TestConsumer_DropsBadAudioEvents(t *testing.T) {
	tests := []struct {
		name string
		ev   models.AudioChunkEvent
	}{
		{"missing conversation id", models.AudioChunkEvent{ParticipantID: "p", Timestamp: 1, AudioLevel: 0.1}},
		{"missing participant id", models.AudioChunkEvent{ConversationID: "room-a-b", Timestamp: 1, AudioLevel: 0.1}},
		{"zero timestamp", models.AudioChunkEvent{ConversationID: "room-a-b", ParticipantID: "p", AudioLevel: 0.1}},
		{"negative level", models.AudioChunkEvent{ConversationID: "room-a-b", ParticipantID: "p", Timestamp: 1, AudioLevel: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &recordingEngine{}
			bus := newFakeBus()
			c := NewConsumer(eng, zerolog.Nop())
			if err := c.Start(bus); err != nil {
				t.Fatal(err)
			}

			bus.deliver(t, SubjectAudio, tt.ev)
			if len(eng.chunks) != 0 {
				t.Errorf("bad event reached the engine: %+v", eng.chunks)
			}
		})
	}
}

func TestConsumer_DropsMalformedJSON(t *testing.T) {
	eng := &recordingEngine{}
	bus := newFakeBus()
	c := NewConsumer(eng, zerolog.Nop())
	if err := c.Start(bus); err != nil {
		t.Fatal(err)
	}

	for _, subject := range []string{SubjectAudio, SubjectStart, SubjectEnd} {
		bus.handlers[subject](subject, []byte("{not json"))
	}

	if len(eng.chunks)+len(eng.started)+len(eng.ended) != 0 {
		t.Error("malformed payloads must not reach the engine")
	}
}

func TestConsumer_StartAndEndEvents(t *testing.T) {
	eng := &recordingEngine{}
	bus := newFakeBus()
	c := NewConsumer(eng, zerolog.Nop())
	if err := c.Start(bus); err != nil {
		t.Fatal(err)
	}

	bus.deliver(t, SubjectStart, models.StartConversationEvent{ConversationID: "room-a-b"})
	bus.deliver(t, SubjectEnd, models.EndConversationEvent{ConversationID: "room-a-b"})

	if len(eng.started) != 1 || eng.started[0] != "room-a-b" {
		t.Errorf("started = %v", eng.started)
	}
	if len(eng.ended) != 1 || eng.ended[0] != "room-a-b" {
		t.Errorf("ended = %v", eng.ended)
	}
}
