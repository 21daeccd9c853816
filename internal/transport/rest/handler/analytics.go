package handler

import (
	"net/http"

	"driftwatch/internal/service"
)

// AnalyticsHandler serves cross-model aggregates
type AnalyticsHandler struct {
	agg *service.AggregatorService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(agg *service.AggregatorService) *AnalyticsHandler {
	return &AnalyticsHandler{agg: agg}
}

// Heatmap handles GET /v1/analytics/heatmap
func (h *AnalyticsHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	heatmap, err := h.agg.Heatmap(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, heatmap)
}

// Correlation handles GET /v1/analytics/correlation?a=&b=
func (h *AnalyticsHandler) Correlation(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "categories a and b are required")
		return
	}

	corr, err := h.agg.Correlation(r.Context(), a, b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, corr)
}
