package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ABHI-11949/avatar/internal/gateway"
)

// commandContext detaches provider calls from the client connection so a
// disconnect never leaves a created session unregistered.
func commandContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req gateway.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.gateway.CreateSession(commandContext(r), req)
	if err != nil {
		s.respondCommandError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req gateway.SpeakRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.gateway.Speak(commandContext(r), req)
	if err != nil {
		s.respondCommandError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleStop accepts session_id in the query string (as the web client sends
// it) or in a JSON body.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		var body struct {
			SessionID string `json:"session_id"`
		}
		if err := decodeJSON(r, &body); err != nil && !errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		sessionID = body.SessionID
	}

	res, err := s.gateway.Stop(commandContext(r), sessionID)
	if err != nil {
		s.respondCommandError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.gateway.GetStatus(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		s.respondCommandError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListAvatars(w http.ResponseWriter, r *http.Request) {
	data, err := s.gateway.ListAvatars(commandContext(r))
	if err != nil {
		s.respondCommandError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "session_id"))
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	if s.history == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "session journal not configured")
		return
	}

	items, err := s.history.History(r.Context(), sessionID, limit)
	if err != nil {
		s.respondCommandError(w, r, err)
		return
	}
	if len(items) == 0 {
		respondError(w, http.StatusNotFound, "session_not_found", "No history for session")
		return
	}
	respondJSON(w, http.StatusOK, gateway.Response{
		Success: true,
		Message: "Session history",
		Data:    items,
	})
}
