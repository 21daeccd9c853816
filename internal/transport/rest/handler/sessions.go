package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"driftwatch/internal/model"
	"driftwatch/internal/repository"
	"driftwatch/internal/service"
)

// SessionHandler serves test session progress and history
type SessionHandler struct {
	orch     *service.OrchestratorService
	sessions repository.SessionStore
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(orch *service.OrchestratorService, sessions repository.SessionStore) *SessionHandler {
	return &SessionHandler{orch: orch, sessions: sessions}
}

// List handles GET /v1/sessions?model=
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 20, 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions, err := h.sessions.List(r.Context(), r.URL.Query().Get("model"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []*model.TestSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Get handles GET /v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.orch.Session(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}
