// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"resume-anonymizer/internal/domain"

	"github.com/gorilla/mux"
)

// EditorDropper forgets the in-memory editor of a session.
type EditorDropper interface {
	Drop(sessionID string)
}

// SessionHandler handles session persistence requests
type SessionHandler struct {
	sessionService domain.SessionService
	editors        EditorDropper
	logger         domain.Logger
}

func NewSessionHandler(sessionService domain.SessionService, editors EditorDropper, logger domain.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		editors:        editors,
		logger:         logger,
	}
}

// ListSessions returns the caller's sessions, newest first.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	sessions, err := h.sessionService.ListSessions(r.Context(), userID, token)
	if err != nil {
		writeDomainError(w, h.logger, err, "user_id", userID)
		return
	}
	// Ensure JSON is [] not null when there are no sessions.
	if sessions == nil {
		sessions = make([]domain.SessionSummary, 0)
	}
	writeJSON(w, http.StatusOK, sessions)
}

// SaveSession creates the session when session_id is empty and updates it otherwise.
func (h *SessionHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	var session domain.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.sessionService.Save(r.Context(), userID, &session, token)
	if err != nil {
		writeDomainError(w, h.logger, err, "user_id", userID, "session_id", session.SessionID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": saved.SessionID})
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	session, err := h.sessionService.GetSession(r.Context(), userID, sessionID, token)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// DeleteSession removes the session and drops its open editor without saving it.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	if err := h.sessionService.DeleteSession(r.Context(), userID, sessionID, token); err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	h.editors.Drop(sessionID)
	w.WriteHeader(http.StatusNoContent)
}
