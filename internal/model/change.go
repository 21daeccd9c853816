package model

import "time"

// AlertLevel classifies how severe a detected drift is
type AlertLevel string

const (
	AlertHigh   AlertLevel = "high"
	AlertMedium AlertLevel = "medium"
	AlertLow    AlertLevel = "low"
)

// Valid reports whether l is a known alert level
func (l AlertLevel) Valid() bool {
	return l == AlertHigh || l == AlertMedium || l == AlertLow
}

// ChangeEvent records a stance transition between two consecutive
// records of the same model and prompt
type ChangeEvent struct {
	ID                string        `json:"id" bson:"_id"`
	ModelName         string        `json:"modelName" bson:"modelName"`
	PromptID          string        `json:"promptId" bson:"promptId"`
	FromStance        Stance        `json:"fromStance" bson:"fromStance"`
	ToStance          Stance        `json:"toStance" bson:"toStance"`
	Magnitude         float64       `json:"magnitude" bson:"magnitude"`                 // 0-1, raw
	AdjustedMagnitude float64       `json:"adjustedMagnitude" bson:"adjustedMagnitude"` // 0-1, time-dampened
	AlertLevel        AlertLevel    `json:"alertLevel" bson:"alertLevel"`
	TimeSincePrior    time.Duration `json:"timeSincePrior" bson:"timeSincePrior"` // nanoseconds
	DetectedAt        time.Time     `json:"detectedAt" bson:"detectedAt"`
	PriorRecordID     string        `json:"priorRecordId" bson:"priorRecordId"`
	RecordID          string        `json:"recordId" bson:"recordId"`
}
