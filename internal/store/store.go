// Package store persists conversation transcripts and summaries to local
// JSON files, one record collection per conversation key. Durability is best
// effort: writes are atomic per file but there is no journal.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"call-transcription-engine/internal/models"
)

const (
	transcriptSuffix = ".transcripts.json"
	recordSuffix     = ".record.json"
)

// ErrConversationFinalized reports an append against a conversation whose
// record has already been written.
var ErrConversationFinalized = errors.New("conversation already finalized")

// checkKey rejects keys that cannot name a file inside the data dir. Keys
// arrive from the bus, so path separators are an input hazard, not a bug.
func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("malformed conversation key %q", key)
	}
	return nil
}

// FileStore is a file-backed persistence store. Appends for one conversation
// are read-modify-write against its transcript file, serialized by a per-key
// lock; different conversations write in parallel.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a FileStore rooted at dir, creating it if needed.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *FileStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// AppendTranscript appends one entry to the conversation's transcript file.
// Appends after FinalizeConversation return ErrConversationFinalized; the
// record already folded the conversation's history and must stay the only
// file for the key.
func (s *FileStore) AppendTranscript(key string, entry models.TranscriptEntry) error {
	if err := checkKey(key); err != nil {
		return err
	}

	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	if _, err := os.Stat(filepath.Join(s.dir, key+recordSuffix)); err == nil {
		return fmt.Errorf("append %s: %w", key, ErrConversationFinalized)
	}

	path := filepath.Join(s.dir, key+transcriptSuffix)

	entries, err := readEntries(path)
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	return writeJSON(path, entries)
}

// ReadTranscripts returns the persisted entries for a conversation in
// insertion order. A conversation with no writes yields an empty slice.
func (s *FileStore) ReadTranscripts(key string) ([]models.TranscriptEntry, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	return readEntries(filepath.Join(s.dir, key+transcriptSuffix))
}

// FinalizeConversation writes the full record of an ended conversation and
// removes the working transcript file.
func (s *FileStore) FinalizeConversation(record models.ConversationRecord) error {
	if err := checkKey(record.ID); err != nil {
		return err
	}

	l := s.keyLock(record.ID)
	l.Lock()
	defer l.Unlock()

	if err := writeJSON(filepath.Join(s.dir, record.ID+recordSuffix), record); err != nil {
		return err
	}

	// The working file is folded into the record; leftover copies are noise.
	if err := os.Remove(filepath.Join(s.dir, record.ID+transcriptSuffix)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove transcript file: %w", err)
	}
	return nil
}

// ListSummaries enumerates all finalized conversation records, sorted by
// conversation key. Read-only.
func (s *FileStore) ListSummaries() ([]models.ConversationRecord, error) {
	names, err := filepath.Glob(filepath.Join(s.dir, "*"+recordSuffix))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	sort.Strings(names)

	out := make([]models.ConversationRecord, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read record %s: %w", filepath.Base(name), err)
		}
		var rec models.ConversationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", filepath.Base(name), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetRecord returns the finalized record for a conversation, or os.ErrNotExist.
func (s *FileStore) GetRecord(key string) (models.ConversationRecord, error) {
	var rec models.ConversationRecord
	if err := checkKey(key); err != nil {
		return rec, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key+recordSuffix))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode record %s: %w", key, err)
	}
	return rec, nil
}

func readEntries(path string) ([]models.TranscriptEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []models.TranscriptEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read transcripts: %w", err)
	}
	var entries []models.TranscriptEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode transcripts: %w", err)
	}
	return entries, nil
}

// writeJSON writes via a temp file and rename so readers never observe a
// partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
