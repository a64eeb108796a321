package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"call-transcription-engine/internal/models"
	"call-transcription-engine/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, *store.FileStore) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return NewRouter(st), st
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"/v1/liveness", "/v1/readiness"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouter_DeriveRoom(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"participantA":"+65 9033 9937","participantB":"90339936"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/rooms/derive", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp deriveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ConversationKey != "room-6590339936-6590339937" {
		t.Errorf("key = %q", resp.ConversationKey)
	}
}

func TestRouter_DeriveRoomRejectsInvalid(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"participantA":"12345","participantB":"90339936"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/rooms/derive", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected an error message")
	}
}

func TestRouter_DeriveRoomBadBody(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/rooms/derive", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRouter_Summaries(t *testing.T) {
	r, st := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summaries", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var empty []models.ConversationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no records, got %d", len(empty))
	}

	record := models.ConversationRecord{
		ID:           "room-6590339936-6590339937",
		StartTime:    1000,
		EndTime:      4000,
		Participants: []string{"6590339936", "6590339937"},
		Transcripts: []models.TranscriptEntry{
			{ID: "t1", Text: "hello", SpeakerLabel: "A", Timestamp: 1500, Confidence: 0.9, IsFinal: true},
		},
		Summary: models.SummaryStats{
			TotalEntries:      1,
			EntriesBySpeaker:  map[string]int{"A": 1},
			DurationMs:        3000,
			AverageConfidence: 0.9,
		},
	}
	if err := st.FinalizeConversation(record); err != nil {
		t.Fatalf("FinalizeConversation: %v", err)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summaries", nil))
	var records []models.ConversationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0].ID != record.ID {
		t.Fatalf("records = %+v", records)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summaries/"+record.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get by key status = %d", rec.Code)
	}
	var got models.ConversationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Summary.TotalEntries != 1 || got.EndTime != 4000 {
		t.Errorf("record = %+v", got)
	}
}

func TestRouter_SummaryNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summaries/room-0-0", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
