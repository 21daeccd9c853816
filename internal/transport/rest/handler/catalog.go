package handler

import (
	"net/http"

	"driftwatch/internal/catalog"
	"driftwatch/internal/model"
)

// CatalogHandler serves the loaded prompt battery
type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

type catalogResponse struct {
	Categories []string              `json:"categories"`
	Prompts    []model.DilemmaPrompt `json:"prompts"`
}

// List handles GET /v1/catalog
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{
		Categories: h.catalog.Categories(),
		Prompts:    h.catalog.Prompts(),
	})
}
