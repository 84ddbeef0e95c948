// Package api exposes the conversation manager over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/conversation"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/logger"
)

// Conversations is the surface of the conversation manager the API
// serves.
type Conversations interface {
	Ask(ctx context.Context, sessionID, question, language string) (string, error)
	History(ctx context.Context, sessionID string) ([]conversation.Turn, error)
	EvictStale(ctx context.Context, now time.Time, inactivityLimit time.Duration) int
}

type Server struct {
	router          *chi.Mux
	conv            Conversations
	inactivityLimit time.Duration
}

func NewServer(conv Conversations, inactivityLimit time.Duration) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:          router,
		conv:            conv,
		inactivityLimit: inactivityLimit,
	}

	router.Get("/health", s.health)
	router.Post("/api/v1/chat", s.chat)
	router.Get("/api/v1/sessions/{id}/history", s.history)
	router.Post("/api/v1/sessions/evict", s.evict)

	return s
}

// Handler returns the router, served through the caller-owned
// http.Server so shutdown stays in main's hands.
func (s *Server) Handler() http.Handler { return s.router }

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Language  string `json:"language"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Warning   string `json:"warning,omitempty"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	answer, err := s.conv.Ask(r.Context(), req.SessionID, req.Question, req.Language)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Answer: answer})
	case errors.Is(err, conversation.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrGenerationUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, conversation.ErrPersistenceFailed):
		// The answer is good; only durability suffered.
		writeJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Answer: answer, Warning: err.Error()})
	default:
		logger.L.Error("chat request failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process request")
	}
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	turns, err := s.conv.History(r.Context(), sessionID)
	if err != nil {
		logger.L.Error("history request failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]conversation.Turn{"turns": turns})
}

func (s *Server) evict(w http.ResponseWriter, r *http.Request) {
	removed := s.conv.EvictStale(r.Context(), time.Now(), s.inactivityLimit)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
