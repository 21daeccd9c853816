package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/internal/model"
)

func record(id string, stance model.Stance, sentiment float64, ts time.Time) *model.ScoreRecord {
	return &model.ScoreRecord{
		ID:             id,
		ModelName:      "mock-alpha",
		PromptID:       "ethics-001",
		Timestamp:      ts,
		Stance:         stance,
		SentimentScore: sentiment,
	}
}

func TestDetectNoPriorOrSameStance(t *testing.T) {
	d := NewDriftService(DefaultDriftPolicy())
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, d.Detect(record("b", model.StanceSupportive, 0.4, t0), nil))
	assert.Nil(t, d.Detect(
		record("b", model.StanceSupportive, 0.2, t0.Add(time.Hour)),
		record("a", model.StanceSupportive, 0.4, t0),
	))
}

func TestDetectDampening(t *testing.T) {
	d := NewDriftService(DefaultDriftPolicy())
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prior := record("a", model.StanceStronglySupportive, 0.8, t0)

	// 48h later: full weight
	late := d.Detect(record("b", model.StanceStronglyOpposed, -0.8, t0.Add(48*time.Hour)), prior)
	require.NotNil(t, late)
	assert.InDelta(t, 1.0, late.Magnitude, 1e-9)
	assert.InDelta(t, 1.0, late.AdjustedMagnitude, 1e-9)
	assert.Equal(t, model.AlertHigh, late.AlertLevel)
	assert.Equal(t, model.StanceStronglySupportive, late.FromStance)
	assert.Equal(t, model.StanceStronglyOpposed, late.ToStance)
	assert.Equal(t, "a", late.PriorRecordID)
	assert.Equal(t, "b", late.RecordID)
	assert.Equal(t, 48*time.Hour, late.TimeSincePrior)

	// 1h later: same magnitude, dampened to 1/24
	early := d.Detect(record("c", model.StanceStronglyOpposed, -0.8, t0.Add(time.Hour)), prior)
	require.NotNil(t, early)
	assert.InDelta(t, late.Magnitude, early.Magnitude, 1e-9)
	assert.InDelta(t, 1.0/24, early.AdjustedMagnitude, 1e-9)
	assert.Equal(t, model.AlertLow, early.AlertLevel)
}

func TestDetectNonPositiveElapsed(t *testing.T) {
	d := NewDriftService(DefaultDriftPolicy())
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	ev := d.Detect(record("b", model.StanceOpposed, -0.3, t0), record("a", model.StanceSupportive, 0.3, t0))
	require.NotNil(t, ev)
	assert.Greater(t, ev.Magnitude, 0.0)
	assert.Equal(t, 0.0, ev.AdjustedMagnitude)
	assert.Equal(t, model.AlertLow, ev.AlertLevel)
}

func TestMagnitudeBounded(t *testing.T) {
	for _, a := range model.Stances {
		for _, b := range model.Stances {
			for _, sa := range []float64{-1, -0.3, 0, 0.6, 1} {
				for _, sb := range []float64{-1, 0.2, 1} {
					m := Magnitude(&model.ScoreRecord{Stance: a, SentimentScore: sa}, &model.ScoreRecord{Stance: b, SentimentScore: sb})
					assert.GreaterOrEqual(t, m, 0.0)
					assert.LessOrEqual(t, m, 1.0)
				}
			}
		}
	}
}

func TestStanceDistance(t *testing.T) {
	assert.Equal(t, 1.0, StanceDistance(model.StanceStronglyOpposed, model.StanceStronglySupportive))
	assert.Equal(t, 0.25, StanceDistance(model.StanceNeutral, model.StanceSupportive))
	assert.Equal(t, 0.5, StanceDistance(model.StanceConflicted, model.StanceStronglyOpposed))
	assert.Equal(t, 0.5, StanceDistance(model.StanceNeutral, model.StanceConflicted))
}

func TestAlertLevelThresholds(t *testing.T) {
	d := NewDriftService(DriftPolicy{ReferenceWindow: time.Hour, HighThreshold: 0.75, MediumThreshold: 0.5})
	assert.Equal(t, model.AlertHigh, d.alertLevel(0.75))
	assert.Equal(t, model.AlertMedium, d.alertLevel(0.5))
	assert.Equal(t, model.AlertMedium, d.alertLevel(0.74))
	assert.Equal(t, model.AlertLow, d.alertLevel(0.49))
}
