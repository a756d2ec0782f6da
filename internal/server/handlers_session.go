package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlaschat/core/internal/domain"
)

// createSessionRequest is the optional body of POST /session.
type createSessionRequest struct {
	UserEmail string `json:"user_email"`
}

// sessionResponse is the public shape of a session (spec §3's Session
// entity, trimmed to what a client needs to display).
type sessionResponse struct {
	ID        string    `json:"id"`
	UserEmail string    `json:"user_email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Active    bool      `json:"active"`
	Messages  int       `json:"message_count"`
}

// createSession allocates a new session. Session IDs are generated here
// (not left to repository.GetOrCreate's empty-id path, which would key
// the map entry by the empty string instead of the session's own
// generated id) and always handed to GetOrCreate explicitly.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
			return
		}
	}

	id := uuid.NewString()
	session := s.app.Repository.GetOrCreate(id)
	session.UserEmail = req.UserEmail

	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	session, ok := s.app.Repository.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.app.Repository.Delete(id)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// resetSession implements the spec's session_reset operation: clear
// history and files in place without removing the session.
func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.app.Repository.Exists(id) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	s.app.Repository.Reset(id)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toSessionResponse(session *domain.Session) sessionResponse {
	return sessionResponse{
		ID:        session.ID,
		UserEmail: session.UserEmail,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		Active:    session.Active,
		Messages:  len(session.History),
	}
}
