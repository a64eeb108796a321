// Package session holds the mutable state of one live conversation and the
// registry that owns the key-to-session mapping.
package session

import (
	"sort"
	"sync"
	"time"

	"call-transcription-engine/internal/models"
)

// Tunables controls the buffering and scheduling behavior of a session.
// Zero values are replaced by the defaults below.
type Tunables struct {
	Retention         time.Duration // how long ingested chunks are kept
	Cadence           time.Duration // minimum gap between processing passes
	ActivityRecency   time.Duration // how fresh a chunk must be to count as activity
	ActivityThreshold float64       // minimum audio level to count as activity
	Window            time.Duration // span of a processing window
}

// DefaultTunables returns the production defaults.
func DefaultTunables() Tunables {
	return Tunables{
		Retention:         10 * time.Second,
		Cadence:           2 * time.Second,
		ActivityRecency:   3 * time.Second,
		ActivityThreshold: 0.01,
		Window:            5 * time.Second,
	}
}

func (t Tunables) withDefaults() Tunables {
	d := DefaultTunables()
	if t.Retention <= 0 {
		t.Retention = d.Retention
	}
	if t.Cadence <= 0 {
		t.Cadence = d.Cadence
	}
	if t.ActivityRecency <= 0 {
		t.ActivityRecency = d.ActivityRecency
	}
	if t.ActivityThreshold <= 0 {
		t.ActivityThreshold = d.ActivityThreshold
	}
	if t.Window <= 0 {
		t.Window = d.Window
	}
	return t
}

// Session is the state of one in-progress conversation. All mutable fields
// are guarded by mu; different sessions proceed fully in parallel.
type Session struct {
	ID string

	mu            sync.Mutex
	participants  map[string]struct{}
	chunks        []models.AudioChunk
	transcripts   []models.TranscriptEntry
	startTime     int64 // ms since epoch
	lastProcessed int64 // ms since epoch
	lastActivity  int64 // ms since epoch, for the idle janitor
	inFlight      bool
	ended         bool

	tunables Tunables
}

func newSession(id string, nowMs int64, tunables Tunables) *Session {
	return &Session{
		ID:           id,
		participants: make(map[string]struct{}),
		startTime:    nowMs,
		lastActivity: nowMs,
		tunables:     tunables.withDefaults(),
	}
}

// Ingest appends a chunk, records its participant, and evicts every retained
// chunk older than the retention window relative to now.
func (s *Session) Ingest(chunk models.AudioChunk, now time.Time) {
	nowMs := now.UnixMilli()
	cutoff := nowMs - s.tunables.Retention.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}

	s.participants[chunk.ParticipantID] = struct{}{}
	s.chunks = append(s.chunks, chunk)
	s.lastActivity = nowMs

	// Eviction on every ingest keeps the buffer bounded to the recent window.
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.Timestamp > cutoff {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
}

// Suppression reasons reported by TryBeginPass.
const (
	SuppressedEnded    = "ended"
	SuppressedInFlight = "in_flight"
	SuppressedCadence  = "cadence"
	SuppressedInactive = "inactive"
)

// TryBeginPass atomically decides whether a processing pass may start now.
// A pass is suppressed while another is in flight, within the cadence gap of
// the previous pass, or when no retained chunk shows recent activity; the
// second return names the suppression reason. On success the processed
// timestamp is advanced before the pass runs, and the in-flight flag stays
// set until EndPass.
func (s *Session) TryBeginPass(now time.Time) (bool, string) {
	nowMs := now.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return false, SuppressedEnded
	}
	if s.inFlight {
		return false, SuppressedInFlight
	}
	if nowMs-s.lastProcessed <= s.tunables.Cadence.Milliseconds() {
		return false, SuppressedCadence
	}

	active := false
	recency := s.tunables.ActivityRecency.Milliseconds()
	for _, c := range s.chunks {
		if nowMs-c.Timestamp < recency && c.AudioLevel > s.tunables.ActivityThreshold {
			active = true
			break
		}
	}
	if !active {
		return false, SuppressedInactive
	}

	s.lastProcessed = nowMs
	s.inFlight = true
	return true, ""
}

// EndPass releases the in-flight guard taken by TryBeginPass.
func (s *Session) EndPass() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// Window returns a copy of the retained chunks newer than the processing
// window relative to now, in arrival order.
func (s *Session) Window(now time.Time) []models.AudioChunk {
	cutoff := now.UnixMilli() - s.tunables.Window.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AudioChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if c.Timestamp > cutoff {
			out = append(out, c)
		}
	}
	return out
}

// AppendTranscript records a finalized transcript entry. Returns false when
// the session has already ended, so a pass that outlives the end signal does
// not write past finalization.
func (s *Session) AppendTranscript(entry models.TranscriptEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.transcripts = append(s.transcripts, entry)
	return true
}

// Transcripts returns a copy of the transcript history in insertion order.
func (s *Session) Transcripts() []models.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TranscriptEntry, len(s.transcripts))
	copy(out, s.transcripts)
	return out
}

// Participants returns the sorted set of participants observed so far.
func (s *Session) Participants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.participants))
	for p := range s.participants {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// StartTime returns the session creation time in ms since epoch.
func (s *Session) StartTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

// IdleSince reports how long ago the session last ingested audio.
func (s *Session) IdleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(now.UnixMilli()-s.lastActivity) * time.Millisecond
}

// ChunkCount returns the number of currently retained chunks.
func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// Finalize marks the session ended and builds its persisted record. Further
// ingests and passes are rejected. Safe to call once; subsequent calls return
// the same record content.
func (s *Session) Finalize(now time.Time) models.ConversationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ended = true

	transcripts := make([]models.TranscriptEntry, len(s.transcripts))
	copy(transcripts, s.transcripts)

	participants := make([]string, 0, len(s.participants))
	for p := range s.participants {
		participants = append(participants, p)
	}
	sort.Strings(participants)

	return models.ConversationRecord{
		ID:           s.ID,
		StartTime:    s.startTime,
		EndTime:      now.UnixMilli(),
		Participants: participants,
		Transcripts:  transcripts,
		Summary:      summarize(transcripts),
	}
}

// summarize aggregates transcript stats. The zero-entry case yields zero
// values, never a division by zero.
func summarize(entries []models.TranscriptEntry) models.SummaryStats {
	stats := models.SummaryStats{
		TotalEntries:     len(entries),
		EntriesBySpeaker: make(map[string]int),
	}
	if len(entries) == 0 {
		return stats
	}

	var confidenceSum float64
	first, last := entries[0].Timestamp, entries[0].Timestamp
	for _, e := range entries {
		stats.EntriesBySpeaker[e.SpeakerLabel]++
		confidenceSum += e.Confidence
		if e.Timestamp < first {
			first = e.Timestamp
		}
		if e.Timestamp > last {
			last = e.Timestamp
		}
	}
	stats.DurationMs = last - first
	stats.AverageConfidence = confidenceSum / float64(len(entries))
	return stats
}
