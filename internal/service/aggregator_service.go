package service

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"driftwatch/internal/cache"
	"driftwatch/internal/model"
	"driftwatch/internal/repository"
)

// minStdDev is the spread below which a series counts as constant. Averages
// of identical scores carry rounding noise around 1e-17.
const minStdDev = 1e-9

// AggregatorOptions holds the windows and thresholds of the read-side analytics
type AggregatorOptions struct {
	HeatmapWindow    int
	AnomalyWindow    int
	MinSampleSize    int
	ZThreshold       float64
	CorrelationFloor int // minimum qualifying models
}

func DefaultAggregatorOptions() AggregatorOptions {
	return AggregatorOptions{
		HeatmapWindow:    10,
		AnomalyWindow:    30,
		MinSampleSize:    5,
		ZThreshold:       2.0,
		CorrelationFloor: 3,
	}
}

// AggregatorService derives heatmaps, correlations and anomalies from the store
type AggregatorService struct {
	store repository.ScoreStore
	cache cache.AnalyticsCache
	opts  AggregatorOptions
	log   *zap.Logger
}

// NewAggregatorService creates a new aggregator
func NewAggregatorService(store repository.ScoreStore, opts AggregatorOptions, log *zap.Logger) *AggregatorService {
	def := DefaultAggregatorOptions()
	if opts.HeatmapWindow <= 0 {
		opts.HeatmapWindow = def.HeatmapWindow
	}
	if opts.AnomalyWindow <= 0 {
		opts.AnomalyWindow = def.AnomalyWindow
	}
	if opts.MinSampleSize < 2 {
		opts.MinSampleSize = def.MinSampleSize
	}
	if opts.ZThreshold <= 0 {
		opts.ZThreshold = def.ZThreshold
	}
	if opts.CorrelationFloor < 2 {
		opts.CorrelationFloor = def.CorrelationFloor
	}
	return &AggregatorService{store: store, opts: opts, log: log}
}

// SetCache injects the Redis heatmap memo
func (s *AggregatorService) SetCache(c cache.AnalyticsCache) {
	s.cache = c
}

// Heatmap averages the most recent records of every model and category
func (s *AggregatorService) Heatmap(ctx context.Context) (*model.Heatmap, error) {
	if s.cache != nil {
		cached, err := s.cache.GetHeatmap(ctx)
		if err != nil {
			s.log.Warn("heatmap cache get failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	models, err := s.store.AllModels(ctx)
	if err != nil {
		return nil, err
	}

	heatmap := &model.Heatmap{
		Models:     models,
		Categories: []string{},
		Cells:      make(map[string]map[string]model.HeatmapCell, len(models)),
		Window:     s.opts.HeatmapWindow,
	}
	seen := make(map[string]bool)

	for _, m := range models {
		recs, err := s.store.RecordsByModel(ctx, m, 0)
		if err != nil {
			return nil, err
		}
		row := make(map[string]model.HeatmapCell)
		for category, values := range sentimentByCategory(recs) {
			if len(values) > s.opts.HeatmapWindow {
				values = values[len(values)-s.opts.HeatmapWindow:]
			}
			avg, _ := stats.Mean(values)
			row[category] = model.HeatmapCell{AverageSentiment: avg, Samples: len(values)}
			if !seen[category] {
				seen[category] = true
				heatmap.Categories = append(heatmap.Categories, category)
			}
		}
		heatmap.Cells[m] = row
	}
	slices.Sort(heatmap.Categories)

	if s.cache != nil {
		if err := s.cache.SetHeatmap(ctx, heatmap); err != nil {
			s.log.Warn("heatmap cache set failed", zap.Error(err))
		}
	}
	return heatmap, nil
}

// Correlation computes Pearson's r of per-model average sentiment between two
// categories. Value stays nil when too few models qualify or either side has
// no variance.
func (s *AggregatorService) Correlation(ctx context.Context, categoryA, categoryB string) (*model.Correlation, error) {
	result := &model.Correlation{CategoryA: categoryA, CategoryB: categoryB, Models: []string{}}

	models, err := s.store.AllModels(ctx)
	if err != nil {
		return nil, err
	}

	var xs, ys stats.Float64Data
	for _, m := range models {
		recs, err := s.store.RecordsByModel(ctx, m, 0)
		if err != nil {
			return nil, err
		}
		byCat := sentimentByCategory(recs)
		a, b := byCat[categoryA], byCat[categoryB]
		if len(a) < 2 || len(b) < 2 {
			continue
		}
		avgA, _ := stats.Mean(a)
		avgB, _ := stats.Mean(b)
		xs = append(xs, avgA)
		ys = append(ys, avgB)
		result.Models = append(result.Models, m)
	}

	if len(xs) < s.opts.CorrelationFloor {
		return result, nil
	}
	sdA, _ := stats.StandardDeviationPopulation(xs)
	sdB, _ := stats.StandardDeviationPopulation(ys)
	if sdA < minStdDev || sdB < minStdDev {
		return result, nil
	}
	r, err := stats.Pearson(xs, ys)
	if err != nil || math.IsNaN(r) {
		return result, nil
	}
	r = clamp(r, -1, 1)
	result.Value = &r
	return result, nil
}

// Anomalies flags records whose sentiment sits more than the z threshold away
// from the model's trailing window of preceding records
func (s *AggregatorService) Anomalies(ctx context.Context, modelName string) ([]model.Anomaly, error) {
	recs, err := s.store.RecordsByModel(ctx, modelName, 0)
	if err != nil {
		return nil, err
	}

	out := []model.Anomaly{}
	for i, rec := range recs {
		if i < s.opts.MinSampleSize {
			continue
		}
		window := make(stats.Float64Data, 0, s.opts.AnomalyWindow)
		for _, prev := range recs[max(0, i-s.opts.AnomalyWindow):i] {
			window = append(window, prev.SentimentScore)
		}
		mean, _ := stats.Mean(window)
		sd, _ := stats.StandardDeviationSample(window)
		if math.IsNaN(sd) || sd < minStdDev {
			continue
		}
		z := (rec.SentimentScore - mean) / sd
		if math.Abs(z) > s.opts.ZThreshold {
			out = append(out, model.Anomaly{
				PromptID: rec.PromptID,
				Record:   rec,
				ZScore:   z,
				Mean:     mean,
				StdDev:   sd,
			})
		}
	}
	return out, nil
}

// ModelSummary returns the dashboard overview for a model, nil if it has no records
func (s *AggregatorService) ModelSummary(ctx context.Context, modelName string) (*model.ModelSummary, error) {
	recs, err := s.store.RecordsByModel(ctx, modelName, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	summary := &model.ModelSummary{
		ModelName:    modelName,
		RecordCount:  len(recs),
		StanceCounts: make(map[model.Stance]int),
		ChangeCounts: map[model.AlertLevel]int{model.AlertHigh: 0, model.AlertMedium: 0, model.AlertLow: 0},
	}

	prompts := make(map[string]bool)
	keywordCounts := make(map[string]int)
	var sentiment, certainty stats.Float64Data
	for _, rec := range recs {
		prompts[rec.PromptID] = true
		summary.StanceCounts[rec.Stance]++
		sentiment = append(sentiment, rec.SentimentScore)
		certainty = append(certainty, rec.CertaintyScore)
		for _, kw := range rec.Keywords {
			keywordCounts[kw]++
		}
	}
	summary.PromptCount = len(prompts)
	summary.AverageSentiment, _ = stats.Mean(sentiment)
	summary.AverageCertainty, _ = stats.Mean(certainty)
	summary.TopKeywords = topKeywords(keywordCounts, 10)

	first, last := recs[0].Timestamp, recs[len(recs)-1].Timestamp
	summary.FirstTestedAt = &first
	summary.LastTestedAt = &last

	changes, err := s.store.Changes(ctx, repository.ChangeFilter{Model: modelName})
	if err != nil {
		return nil, fmt.Errorf("failed to load changes: %w", err)
	}
	for _, ev := range changes {
		summary.ChangeCounts[ev.AlertLevel]++
	}
	return summary, nil
}

// sentimentByCategory groups sentiment values by category, preserving the
// chronological order of recs
func sentimentByCategory(recs []*model.ScoreRecord) map[string]stats.Float64Data {
	out := make(map[string]stats.Float64Data)
	for _, rec := range recs {
		out[rec.Category] = append(out[rec.Category], rec.SentimentScore)
	}
	return out
}

func topKeywords(counts map[string]int, n int) []model.KeywordCount {
	out := make([]model.KeywordCount, 0, len(counts))
	for kw, c := range counts {
		out = append(out, model.KeywordCount{Keyword: kw, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
