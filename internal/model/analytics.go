package model

import "time"

// Heatmap is the model x category matrix of average recent sentiment
type Heatmap struct {
	Models     []string                          `json:"models"`
	Categories []string                          `json:"categories"`
	Cells      map[string]map[string]HeatmapCell `json:"cells"` // model -> category -> cell
	Window     int                               `json:"window"`
}

// HeatmapCell is one model/category aggregate
type HeatmapCell struct {
	AverageSentiment float64 `json:"averageSentiment"`
	Samples          int     `json:"samples"`
}

// Cell returns the cell for a model/category pair, if any samples exist
func (h *Heatmap) Cell(modelName, category string) (HeatmapCell, bool) {
	row, ok := h.Cells[modelName]
	if !ok {
		return HeatmapCell{}, false
	}
	cell, ok := row[category]
	return cell, ok
}

// Correlation is the cross-category result. Value is nil when there is not
// enough data, which is distinct from a true zero correlation.
type Correlation struct {
	CategoryA string   `json:"categoryA"`
	CategoryB string   `json:"categoryB"`
	Value     *float64 `json:"correlation"`
	Models    []string `json:"models"` // models that contributed
}

// Anomaly is a record whose sentiment deviates from the model's trailing history
type Anomaly struct {
	PromptID string       `json:"promptId"`
	Record   *ScoreRecord `json:"record"`
	ZScore   float64      `json:"zScore"`
	Mean     float64      `json:"mean"`
	StdDev   float64      `json:"stdDev"`
}

// ModelSummary is the per-model overview shown on the dashboard
type ModelSummary struct {
	ModelName        string             `json:"modelName"`
	RecordCount      int                `json:"recordCount"`
	PromptCount      int                `json:"promptCount"`
	AverageSentiment float64            `json:"averageSentiment"`
	AverageCertainty float64            `json:"averageCertainty"`
	StanceCounts     map[Stance]int     `json:"stanceCounts"`
	ChangeCounts     map[AlertLevel]int `json:"changeCounts"`
	TopKeywords      []KeywordCount     `json:"topKeywords"`
	FirstTestedAt    *time.Time         `json:"firstTestedAt,omitempty"`
	LastTestedAt     *time.Time         `json:"lastTestedAt,omitempty"`
}

// KeywordCount is a keyword with its count
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// DriftBoardEntry ranks change events by adjusted magnitude
type DriftBoardEntry struct {
	Event *ChangeEvent `json:"event"`
	Score float64      `json:"score"`
	Rank  int          `json:"rank"`
}
