package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/internal/model"
)

func TestAnalyzeClearlyBeneficial(t *testing.T) {
	a := NewAnalyzerService(nil, 5)

	got, err := a.Analyze("This is clearly beneficial and necessary")
	require.NoError(t, err)

	assert.Equal(t, model.StanceStronglySupportive, got.Stance)
	assert.Equal(t, 1.0, got.SentimentScore)
	assert.GreaterOrEqual(t, got.CertaintyScore, 0.6)
	assert.Equal(t, []string{"beneficial", "necessary"}, got.Keywords)
}

func TestAnalyzeEmpty(t *testing.T) {
	a := NewAnalyzerService(nil, 5)
	for _, raw := range []string{"", "   ", "\n\t"} {
		_, err := a.Analyze(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyResponse))
		var ae *AnalysisError
		assert.True(t, errors.As(err, &ae))
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	a := NewAnalyzerService(nil, 5)
	text := "Universal basic income could be valuable. However, it risks inflation and may be costly for taxpayers."

	first, err := a.Analyze(text)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := a.Analyze(text)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAnalyzeStances(t *testing.T) {
	a := NewAnalyzerService(nil, 5)
	tests := []struct {
		name string
		text string
		want model.Stance
	}{
		{"strongly opposed", "This policy is harmful, dangerous and unethical.", model.StanceStronglyOpposed},
		{"neutral without hits", "The committee will meet on Tuesday to discuss the schedule.", model.StanceNeutral},
		{"but also marker", "It is good but also harmful.", model.StanceConflicted},
		{"mixed in one sentence", "It is good and harmful.", model.StanceNeutral},
		{"conflicted", "Nuclear power is safe and effective. On the other hand, waste storage is dangerous and costly.", model.StanceConflicted},
		{"supportive", "Remote work is good and helpful, though commuting less has some risk.", model.StanceSupportive},
		{"opposed", "Surveillance is harmful and unfair, though it can be effective.", model.StanceOpposed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Analyze(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Stance)
			assert.GreaterOrEqual(t, got.SentimentScore, -1.0)
			assert.LessOrEqual(t, got.SentimentScore, 1.0)
			assert.GreaterOrEqual(t, got.CertaintyScore, 0.0)
			assert.LessOrEqual(t, got.CertaintyScore, 1.0)
		})
	}
}

func TestStanceBoundaries(t *testing.T) {
	tests := []struct {
		sentiment float64
		want      model.Stance
	}{
		{1, model.StanceStronglySupportive},
		{0.51, model.StanceStronglySupportive},
		{0.5, model.StanceSupportive},
		{0.15, model.StanceSupportive},
		{0.14, model.StanceNeutral},
		{0, model.StanceNeutral},
		{-0.14, model.StanceNeutral},
		{-0.15, model.StanceOpposed},
		{-0.5, model.StanceOpposed},
		{-0.51, model.StanceStronglyOpposed},
		{-1, model.StanceStronglyOpposed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stanceFor(tt.sentiment), "sentiment %v", tt.sentiment)
	}
}

func TestCertaintyDropsWithHedging(t *testing.T) {
	a := NewAnalyzerService(nil, 5)

	sure, err := a.Analyze("Vaccination is certainly important for public health.")
	require.NoError(t, err)
	unsure, err := a.Analyze("Vaccination might perhaps be important, it depends on the case.")
	require.NoError(t, err)

	assert.Greater(t, sure.CertaintyScore, 0.5)
	assert.Less(t, unsure.CertaintyScore, 0.5)
}

func TestKeywordsRankByFrequencyThenPosition(t *testing.T) {
	a := NewAnalyzerService(nil, 3)

	got, err := a.Analyze("Taxes fund schools. Schools need taxes. Schools matter in 2024.")
	require.NoError(t, err)
	assert.Equal(t, []string{"schools", "taxes", "fund"}, got.Keywords)
}

func TestCustomLexicon(t *testing.T) {
	lex, err := ParseLexicon([]byte(`
positive: [splendid]
negative: [dreadful]
hedges: [yet]
`))
	require.NoError(t, err)
	a := NewAnalyzerService(lex, 5)

	got, err := a.Analyze("Splendid idea")
	require.NoError(t, err)
	assert.Equal(t, model.StanceStronglySupportive, got.Stance)

	got, err = a.Analyze("Beneficial idea")
	require.NoError(t, err)
	assert.Equal(t, model.StanceNeutral, got.Stance)
}

func TestParseLexiconRequiresPolarity(t *testing.T) {
	_, err := ParseLexicon([]byte("hedges: [however]"))
	assert.Error(t, err)
}
