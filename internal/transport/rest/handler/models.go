package handler

import (
	"net/http"
	"slices"

	"github.com/gorilla/mux"

	"driftwatch/internal/repository"
	"driftwatch/internal/service"
)

// ModelHandler serves per-model time series and summaries
type ModelHandler struct {
	orch  *service.OrchestratorService
	store repository.ScoreStore
	agg   *service.AggregatorService
}

// NewModelHandler creates a new model handler
func NewModelHandler(orch *service.OrchestratorService, store repository.ScoreStore, agg *service.AggregatorService) *ModelHandler {
	return &ModelHandler{orch: orch, store: store, agg: agg}
}

// ModelInfo describes one model known to the deployment or the store
type ModelInfo struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Running    bool   `json:"running"`
	HasRecords bool   `json:"hasRecords"`
}

// List handles GET /v1/models
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	stored, err := h.store.AllModels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	byName := make(map[string]*ModelInfo)
	for _, name := range h.orch.Models() {
		byName[name] = &ModelInfo{Name: name, Configured: true, Running: h.orch.IsRunning(name)}
	}
	for _, name := range stored {
		if info, ok := byName[name]; ok {
			info.HasRecords = true
			continue
		}
		byName[name] = &ModelInfo{Name: name, HasRecords: true}
	}

	out := make([]ModelInfo, 0, len(byName))
	for _, info := range byName {
		out = append(out, *info)
	}
	slices.SortFunc(out, func(a, b ModelInfo) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	writeJSON(w, http.StatusOK, out)
}

// Summary handles GET /v1/models/{model}/summary
func (h *ModelHandler) Summary(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["model"]
	summary, err := h.agg.ModelSummary(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "no records for model")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Records handles GET /v1/models/{model}/prompts/{promptId}/records
func (h *ModelHandler) Records(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	recs, err := h.store.Range(r.Context(), vars["model"], vars["promptId"], from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// Latest handles GET /v1/models/{model}/prompts/{promptId}/latest
func (h *ModelHandler) Latest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rec, err := h.store.Latest(r.Context(), vars["model"], vars["promptId"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no records for model and prompt")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Anomalies handles GET /v1/models/{model}/anomalies
func (h *ModelHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	anomalies, err := h.agg.Anomalies(r.Context(), mux.Vars(r)["model"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, anomalies)
}
