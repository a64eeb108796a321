package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"call-transcription-engine/internal/models"
)

func chunkAt(participant string, ts int64, level float64) models.AudioChunk {
	return models.AudioChunk{
		ParticipantID: participant,
		Timestamp:     ts,
		Payload:       []byte("pcm"),
		AudioLevel:    level,
	}
}

func TestSession_Ingest_EvictsOldChunks(t *testing.T) {
	now := time.UnixMilli(100_000)
	s := newSession("room-a-b", now.UnixMilli(), DefaultTunables())

	s.Ingest(chunkAt("p1", now.UnixMilli()-15_000, 0.5), now)
	if s.ChunkCount() != 0 {
		t.Fatalf("chunk older than retention should be evicted immediately, have %d", s.ChunkCount())
	}

	s.Ingest(chunkAt("p1", now.UnixMilli()-15_000, 0.5), now)
	s.Ingest(chunkAt("p1", now.UnixMilli(), 0.5), now)
	if s.ChunkCount() != 1 {
		t.Fatalf("expected only the fresh chunk retained, have %d", s.ChunkCount())
	}

	win := s.Window(now)
	if len(win) != 1 || win[0].Timestamp != now.UnixMilli() {
		t.Errorf("window should contain only the fresh chunk, got %+v", win)
	}
}

func TestSession_Ingest_TracksParticipants(t *testing.T) {
	now := time.UnixMilli(100_000)
	s := newSession("room-a-b", now.UnixMilli(), DefaultTunables())

	s.Ingest(chunkAt("6590339937", now.UnixMilli(), 0.5), now)
	s.Ingest(chunkAt("6590339936", now.UnixMilli(), 0.5), now)
	s.Ingest(chunkAt("6590339936", now.UnixMilli(), 0.5), now)

	got := s.Participants()
	want := []string{"6590339936", "6590339937"}
	if len(got) != len(want) {
		t.Fatalf("participants = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("participants = %v, want %v", got, want)
		}
	}
}

func TestSession_TryBeginPass_CadenceGate(t *testing.T) {
	now := time.UnixMilli(100_000)
	s := newSession("room-a-b", now.UnixMilli(), DefaultTunables())

	// Two active chunks 500ms apart must trigger only one pass within the
	// 2000ms cadence interval.
	s.Ingest(chunkAt("p1", now.UnixMilli(), 0.5), now)
	if ok, _ := s.TryBeginPass(now); !ok {
		t.Fatal("first trigger should start a pass")
	}
	s.EndPass()

	later := now.Add(500 * time.Millisecond)
	s.Ingest(chunkAt("p1", later.UnixMilli(), 0.5), later)
	if ok, reason := s.TryBeginPass(later); ok || reason != SuppressedCadence {
		t.Fatalf("second trigger within cadence interval: ok=%v reason=%q", ok, reason)
	}

	afterCadence := now.Add(2100 * time.Millisecond)
	s.Ingest(chunkAt("p1", afterCadence.UnixMilli(), 0.5), afterCadence)
	if ok, _ := s.TryBeginPass(afterCadence); !ok {
		t.Fatal("trigger after cadence interval should start a pass")
	}
}

func TestSession_TryBeginPass_ActivityGate(t *testing.T) {
	now := time.UnixMilli(100_000)
	s := newSession("room-a-b", now.UnixMilli(), DefaultTunables())

	// Silence: audio level below the threshold never triggers.
	s.Ingest(chunkAt("p1", now.UnixMilli(), 0.005), now)
	if ok, reason := s.TryBeginPass(now); ok || reason != SuppressedInactive {
		t.Fatalf("silent audio: ok=%v reason=%q", ok, reason)
	}

	// Stale: an active chunk outside the recency window never triggers.
	later := now.Add(4 * time.Second)
	if ok, reason := s.TryBeginPass(later); ok || reason != SuppressedInactive {
		t.Fatalf("stale audio: ok=%v reason=%q", ok, reason)
	}

	// Fresh and active triggers.
	s.Ingest(chunkAt("p1", later.UnixMilli(), 0.5), later)
	if ok, _ := s.TryBeginPass(later); !ok {
		t.Fatal("fresh active audio should trigger a pass")
	}
}

func TestSession_TryBeginPass_AtMostOneInFlight(t *testing.T) {
	now := time.UnixMilli(100_000)
	s := newSession("room-a-b", now.UnixMilli(), DefaultTunables())
	s.Ingest(chunkAt("p1", now.UnixMilli(), 0.5), now)

	var mu sync.Mutex
	started := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			// Spread simulated clocks past the cadence gap so only the
			// in-flight guard can suppress concurrent passes.
			at := now.Add(time.Duration(2500+offset) * time.Millisecond)
			s.Ingest(chunkAt("p1", at.UnixMilli(), 0.5), at)
			if ok, _ := s.TryBeginPass(at); ok {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if started != 1 {
		t.Fatalf("expected exactly one pass to start, got %d", started)
	}

	// While the winner's pass runs, further triggers report the guard.
	if ok, reason := s.TryBeginPass(now.Add(9 * time.Second)); ok || reason != SuppressedInFlight {
		t.Fatalf("trigger during pass: ok=%v reason=%q", ok, reason)
	}

	// After the pass ends and the cadence gap elapses the next trigger works.
	s.EndPass()
	at := now.Add(10 * time.Second)
	s.Ingest(chunkAt("p1", at.UnixMilli(), 0.5), at)
	if ok, _ := s.TryBeginPass(at); !ok {
		t.Fatal("pass should be allowed after EndPass and cadence gap")
	}
}

func TestSession_Finalize_Summary(t *testing.T) {
	now := time.UnixMilli(100_000)
	s := newSession("room-a-b", now.UnixMilli(), DefaultTunables())

	entries := []models.TranscriptEntry{
		{ID: "1", Text: "hello", SpeakerLabel: "A", Timestamp: 1_000, Confidence: 0.8, IsFinal: true},
		{ID: "2", Text: "hi there", SpeakerLabel: "B", Timestamp: 2_000, Confidence: 0.9, IsFinal: true},
		{ID: "3", Text: "bye", SpeakerLabel: "A", Timestamp: 4_000, Confidence: 1.0, IsFinal: true},
	}
	for _, e := range entries {
		s.AppendTranscript(e)
	}

	record := s.Finalize(now.Add(time.Minute))

	if record.Summary.TotalEntries != 3 {
		t.Errorf("TotalEntries = %d, want 3", record.Summary.TotalEntries)
	}
	if got := record.Summary.AverageConfidence; got != 0.9 {
		t.Errorf("AverageConfidence = %v, want 0.9", got)
	}
	if record.Summary.EntriesBySpeaker["A"] != 2 || record.Summary.EntriesBySpeaker["B"] != 1 {
		t.Errorf("EntriesBySpeaker = %v, want A:2 B:1", record.Summary.EntriesBySpeaker)
	}
	if record.Summary.DurationMs != 3_000 {
		t.Errorf("DurationMs = %d, want 3000", record.Summary.DurationMs)
	}
	if record.EndTime != now.Add(time.Minute).UnixMilli() {
		t.Errorf("EndTime = %d, want %d", record.EndTime, now.Add(time.Minute).UnixMilli())
	}
}

func TestSession_Finalize_EmptySummary(t *testing.T) {
	now := time.UnixMilli(100_000)
	s := newSession("room-a-b", now.UnixMilli(), DefaultTunables())

	record := s.Finalize(now)
	if record.Summary.TotalEntries != 0 {
		t.Errorf("TotalEntries = %d, want 0", record.Summary.TotalEntries)
	}
	if record.Summary.AverageConfidence != 0 {
		t.Errorf("AverageConfidence = %v, want 0 for empty session", record.Summary.AverageConfidence)
	}
	if record.Summary.DurationMs != 0 {
		t.Errorf("DurationMs = %d, want 0", record.Summary.DurationMs)
	}
}

func TestSession_IngestAfterFinalize_Rejected(t *testing.T) {
	now := time.UnixMilli(100_000)
	s := newSession("room-a-b", now.UnixMilli(), DefaultTunables())
	s.Finalize(now)

	s.Ingest(chunkAt("p1", now.UnixMilli(), 0.5), now)
	if s.ChunkCount() != 0 {
		t.Error("ended session must not accept chunks")
	}
	if ok, reason := s.TryBeginPass(now.Add(3 * time.Second)); ok || reason != SuppressedEnded {
		t.Errorf("ended session must not start passes: ok=%v reason=%q", ok, reason)
	}
}

func TestRegistry_GetOrCreate_Idempotent(t *testing.T) {
	r := NewRegistry(DefaultTunables(), nil)

	s1, created := r.GetOrCreate("room-a-b")
	if !created {
		t.Fatal("first GetOrCreate should create")
	}
	s2, created := r.GetOrCreate("room-a-b")
	if created {
		t.Fatal("second GetOrCreate should not create")
	}
	if s1 != s2 {
		t.Fatal("same key must yield the same session")
	}
}

func TestRegistry_ConcurrentCreate_SingleSession(t *testing.T) {
	r := NewRegistry(DefaultTunables(), nil)

	const n = 100
	out := make(chan *Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _ := r.GetOrCreate("room-a-b")
			out <- s
		}()
	}
	wg.Wait()
	close(out)

	var first *Session
	for s := range out {
		if first == nil {
			first = s
			continue
		}
		if s != first {
			t.Fatal("concurrent creation produced more than one session")
		}
	}
	if r.Len() != 1 {
		t.Fatalf("registry holds %d sessions, want 1", r.Len())
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(DefaultTunables(), nil)
	r.GetOrCreate("room-a-b")

	if s := r.Remove("room-a-b"); s == nil {
		t.Fatal("Remove should return the live session")
	}
	if s := r.Get("room-a-b"); s != nil {
		t.Fatal("session should be gone after Remove")
	}
	if s := r.Remove("room-a-b"); s != nil {
		t.Fatal("second Remove should return nil")
	}
}

func TestRegistry_InjectedClock(t *testing.T) {
	fixed := time.UnixMilli(42_000)
	r := NewRegistry(DefaultTunables(), func() time.Time { return fixed })

	s, _ := r.GetOrCreate("room-a-b")
	if s.StartTime() != fixed.UnixMilli() {
		t.Errorf("StartTime = %d, want %d", s.StartTime(), fixed.UnixMilli())
	}
}

func TestRegistry_Keys(t *testing.T) {
	r := NewRegistry(DefaultTunables(), nil)
	for i := 0; i < 3; i++ {
		r.GetOrCreate(fmt.Sprintf("room-%d", i))
	}
	if len(r.Keys()) != 3 {
		t.Fatalf("Keys() = %v, want 3 entries", r.Keys())
	}
}
