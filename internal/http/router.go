package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"call-transcription-engine/internal/identity"
	"call-transcription-engine/internal/models"
	"call-transcription-engine/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type deriveRequest struct {
	ParticipantA string `json:"participantA"`
	ParticipantB string `json:"participantB"`
}

type deriveResponse struct {
	ConversationKey string `json:"conversationKey"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter constructs the HTTP router for the engine.
func NewRouter(st *store.FileStore) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/summaries", listSummaries(st))
		r.Get("/summaries/{key}", getSummary(st))
		r.Post("/rooms/derive", deriveRoom())
	})

	return r
}

func listSummaries(st *store.FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		records, err := st.ListSummaries()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list summaries")
			return
		}
		if records == nil {
			records = []models.ConversationRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func getSummary(st *store.FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		rec, err := st.GetRecord(key)
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "no record for conversation "+key)
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func deriveRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deriveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		key, err := identity.DeriveKey(req.ParticipantA, req.ParticipantB)
		if errors.Is(err, identity.ErrInvalidIdentifier) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, deriveResponse{ConversationKey: key})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
