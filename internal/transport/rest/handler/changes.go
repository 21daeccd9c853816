package handler

import (
	"net/http"

	"driftwatch/internal/cache"
	"driftwatch/internal/model"
	"driftwatch/internal/repository"
)

// ChangeHandler serves drift events
type ChangeHandler struct {
	store repository.ScoreStore
	board cache.DriftBoardCache
}

// NewChangeHandler creates a new change handler. board may be nil when
// Redis is not configured.
func NewChangeHandler(store repository.ScoreStore, board cache.DriftBoardCache) *ChangeHandler {
	return &ChangeHandler{store: store, board: board}
}

// List handles GET /v1/changes
func (h *ChangeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ChangeFilter{
		Model:      q.Get("model"),
		PromptID:   q.Get("promptId"),
		AlertLevel: model.AlertLevel(q.Get("alertLevel")),
	}
	if filter.AlertLevel != "" && !filter.AlertLevel.Valid() {
		writeError(w, http.StatusBadRequest, "alertLevel must be high, medium or low")
		return
	}

	var err error
	if filter.Since, err = queryTime(r, "since"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit, err = queryLimit(r, 100, 1000); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.store.Changes(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []*model.ChangeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Top handles GET /v1/changes/top
func (h *ChangeHandler) Top(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeError(w, http.StatusServiceUnavailable, "drift board requires redis")
		return
	}
	limit, err := queryLimit(r, 10, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.board.Top(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []model.DriftBoardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
