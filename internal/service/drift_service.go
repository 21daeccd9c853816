package service

import (
	"math"
	"time"

	"github.com/google/uuid"

	"driftwatch/internal/model"
)

// DriftPolicy is the dampening window and alert thresholds
type DriftPolicy struct {
	ReferenceWindow time.Duration
	HighThreshold   float64
	MediumThreshold float64
}

// DefaultDriftPolicy returns a 24h window with 0.75 / 0.5 thresholds
func DefaultDriftPolicy() DriftPolicy {
	return DriftPolicy{
		ReferenceWindow: 24 * time.Hour,
		HighThreshold:   0.75,
		MediumThreshold: 0.5,
	}
}

// DriftDetector compares a new record with the prior one for the same
// model and prompt
type DriftDetector interface {
	Detect(newRec, prior *model.ScoreRecord) *model.ChangeEvent
}

// DriftService is a pure comparator over two records
type DriftService struct {
	policy DriftPolicy
	now    func() time.Time
}

// NewDriftService creates a drift detector with the given policy
func NewDriftService(policy DriftPolicy) *DriftService {
	return &DriftService{policy: policy, now: time.Now}
}

// SetClock replaces the DetectedAt source
func (s *DriftService) SetClock(now func() time.Time) {
	s.now = now
}

// stanceOrdinal places the five scale stances on 0..4
var stanceOrdinal = map[model.Stance]int{
	model.StanceStronglyOpposed:    0,
	model.StanceOpposed:            1,
	model.StanceNeutral:            2,
	model.StanceSupportive:         3,
	model.StanceStronglySupportive: 4,
}

// Detect returns a change event when the stance moved, nil otherwise
func (s *DriftService) Detect(newRec, prior *model.ScoreRecord) *model.ChangeEvent {
	if newRec == nil || prior == nil || newRec.Stance == prior.Stance {
		return nil
	}

	magnitude := Magnitude(prior, newRec)
	elapsed := newRec.Timestamp.Sub(prior.Timestamp)
	adjusted := magnitude * s.dampening(elapsed)

	return &model.ChangeEvent{
		ID:                uuid.New().String(),
		ModelName:         newRec.ModelName,
		PromptID:          newRec.PromptID,
		FromStance:        prior.Stance,
		ToStance:          newRec.Stance,
		Magnitude:         magnitude,
		AdjustedMagnitude: adjusted,
		AlertLevel:        s.alertLevel(adjusted),
		TimeSincePrior:    elapsed,
		DetectedAt:        s.now().UTC(),
		PriorRecordID:     prior.ID,
		RecordID:          newRec.ID,
	}
}

// Magnitude is 0.6 stance distance plus 0.4 sentiment delta, in [0,1]
func Magnitude(a, b *model.ScoreRecord) float64 {
	m := 0.6*StanceDistance(a.Stance, b.Stance) + 0.4*math.Abs(a.SentimentScore-b.SentimentScore)
	return clamp(m, 0, 1)
}

// StanceDistance is the normalized distance between two stances.
// Conflicted sits two steps from every other stance.
func StanceDistance(a, b model.Stance) float64 {
	if a == b {
		return 0
	}
	if a == model.StanceConflicted || b == model.StanceConflicted {
		return 0.5
	}
	d := stanceOrdinal[a] - stanceOrdinal[b]
	if d < 0 {
		d = -d
	}
	return float64(d) / 4
}

func (s *DriftService) dampening(elapsed time.Duration) float64 {
	if elapsed <= 0 || s.policy.ReferenceWindow <= 0 {
		return 0
	}
	return min(1, float64(elapsed)/float64(s.policy.ReferenceWindow))
}

func (s *DriftService) alertLevel(adjusted float64) model.AlertLevel {
	switch {
	case adjusted >= s.policy.HighThreshold:
		return model.AlertHigh
	case adjusted >= s.policy.MediumThreshold:
		return model.AlertMedium
	default:
		return model.AlertLow
	}
}
