package model

import "time"

// Stance is the categorical position a response expresses
type Stance string

const (
	StanceStronglySupportive Stance = "strongly_supportive"
	StanceSupportive         Stance = "supportive"
	StanceNeutral            Stance = "neutral"
	StanceOpposed            Stance = "opposed"
	StanceStronglyOpposed    Stance = "strongly_opposed"
	StanceConflicted         Stance = "conflicted"
)

// Stances lists every stance in scale order, conflicted last
var Stances = []Stance{
	StanceStronglyOpposed,
	StanceOpposed,
	StanceNeutral,
	StanceSupportive,
	StanceStronglySupportive,
	StanceConflicted,
}

// Valid reports whether s is a known stance
func (s Stance) Valid() bool {
	for _, known := range Stances {
		if s == known {
			return true
		}
	}
	return false
}

// Analysis is the structured output of the response analyzer
type Analysis struct {
	Stance         Stance   `json:"stance"`
	SentimentScore float64  `json:"sentimentScore"` // -1 to 1
	CertaintyScore float64  `json:"certaintyScore"` // 0 to 1
	Keywords       []string `json:"keywords"`
}

// ScoreRecord is one analyzed answer of one model to one prompt
type ScoreRecord struct {
	ID             string    `json:"id" bson:"_id"`
	ModelName      string    `json:"modelName" bson:"modelName"`
	PromptID       string    `json:"promptId" bson:"promptId"`
	Category       string    `json:"category" bson:"category"`
	SessionID      string    `json:"sessionId,omitempty" bson:"sessionId,omitempty"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
	RawText        string    `json:"rawText" bson:"rawText"`
	SentimentScore float64   `json:"sentimentScore" bson:"sentimentScore"`
	Stance         Stance    `json:"stance" bson:"stance"`
	CertaintyScore float64   `json:"certaintyScore" bson:"certaintyScore"`
	Keywords       []string  `json:"keywords" bson:"keywords"`
}

// ApplyAnalysis copies analyzer output onto the record
func (r *ScoreRecord) ApplyAnalysis(a *Analysis) {
	r.Stance = a.Stance
	r.SentimentScore = a.SentimentScore
	r.CertaintyScore = a.CertaintyScore
	r.Keywords = append([]string(nil), a.Keywords...)
}
