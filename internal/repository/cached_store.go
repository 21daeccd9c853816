package repository

import (
	"context"

	"go.uber.org/zap"

	"driftwatch/internal/cache"
	"driftwatch/internal/model"
)

// CachedStore is a read-through Redis cache in front of a ScoreStore.
// Cache failures are logged and fall back to the underlying store.
type CachedStore struct {
	ScoreStore
	latest    cache.LatestCache
	analytics cache.AnalyticsCache
	board     cache.DriftBoardCache
	log       *zap.Logger
}

// NewCachedStore wraps store; any of the caches may be nil
func NewCachedStore(store ScoreStore, latest cache.LatestCache, analytics cache.AnalyticsCache, board cache.DriftBoardCache, log *zap.Logger) *CachedStore {
	return &CachedStore{
		ScoreStore: store,
		latest:     latest,
		analytics:  analytics,
		board:      board,
		log:        log,
	}
}

// Append writes rec and refreshes the cached latest record. A cached entry
// that cannot be refreshed is dropped so reads fall back to the store.
func (s *CachedStore) Append(ctx context.Context, rec *model.ScoreRecord) error {
	if s.latest != nil {
		s.dropLatest(ctx, rec.ModelName, rec.PromptID)
	}
	if err := s.ScoreStore.Append(ctx, rec); err != nil {
		return err
	}
	if s.latest != nil {
		if err := s.latest.Set(ctx, rec); err != nil {
			s.log.Warn("latest cache set failed", zap.String("model", rec.ModelName), zap.Error(err))
			s.dropLatest(ctx, rec.ModelName, rec.PromptID)
		}
	}
	if s.analytics != nil {
		if err := s.analytics.Invalidate(ctx); err != nil {
			s.log.Warn("analytics cache invalidate failed", zap.Error(err))
		}
	}
	return nil
}

func (s *CachedStore) Latest(ctx context.Context, modelName, promptID string) (*model.ScoreRecord, error) {
	if s.latest != nil {
		rec, err := s.latest.Get(ctx, modelName, promptID)
		if err == nil && rec != nil {
			return rec, nil
		}
		if err != nil {
			s.log.Warn("latest cache get failed", zap.String("model", modelName), zap.Error(err))
		}
	}

	rec, err := s.ScoreStore.Latest(ctx, modelName, promptID)
	if err != nil || rec == nil {
		return rec, err
	}
	if s.latest != nil {
		if err := s.latest.Set(ctx, rec); err != nil {
			s.log.Warn("latest cache set failed", zap.String("model", modelName), zap.Error(err))
		}
	}
	return rec, nil
}

func (s *CachedStore) AppendChange(ctx context.Context, ev *model.ChangeEvent) error {
	if err := s.ScoreStore.AppendChange(ctx, ev); err != nil {
		return err
	}
	if s.board != nil {
		if err := s.board.Record(ctx, ev); err != nil {
			s.log.Warn("drift board record failed", zap.String("event", ev.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *CachedStore) dropLatest(ctx context.Context, modelName, promptID string) {
	if err := s.latest.Delete(ctx, modelName, promptID); err != nil {
		s.log.Warn("latest cache delete failed", zap.String("model", modelName), zap.String("prompt", promptID), zap.Error(err))
	}
}
