package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"driftwatch/internal/model"
)

type fakeLatest struct {
	recs     map[string]*model.ScoreRecord
	gets     int
	fails    bool
	setFails bool
}

func (f *fakeLatest) Get(_ context.Context, modelName, promptID string) (*model.ScoreRecord, error) {
	f.gets++
	if f.fails {
		return nil, errors.New("redis down")
	}
	return f.recs[modelName+"|"+promptID], nil
}

func (f *fakeLatest) Set(_ context.Context, rec *model.ScoreRecord) error {
	if f.fails || f.setFails {
		return errors.New("redis down")
	}
	f.recs[rec.ModelName+"|"+rec.PromptID] = rec
	return nil
}

func (f *fakeLatest) Delete(_ context.Context, modelName, promptID string) error {
	if f.fails {
		return errors.New("redis down")
	}
	delete(f.recs, modelName+"|"+promptID)
	return nil
}

type fakeAnalytics struct{ invalidations int }

func (f *fakeAnalytics) GetHeatmap(context.Context) (*model.Heatmap, error) { return nil, nil }
func (f *fakeAnalytics) SetHeatmap(context.Context, *model.Heatmap) error   { return nil }
func (f *fakeAnalytics) Invalidate(context.Context) error {
	f.invalidations++
	return nil
}

type fakeBoard struct{ events []*model.ChangeEvent }

func (f *fakeBoard) Record(_ context.Context, ev *model.ChangeEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeBoard) Top(context.Context, int) ([]model.DriftBoardEntry, error) { return nil, nil }

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	latest := &fakeLatest{recs: map[string]*model.ScoreRecord{}}
	analytics := &fakeAnalytics{}
	board := &fakeBoard{}
	store := NewCachedStore(base, latest, analytics, board, zap.NewNop())

	// populated directly in the base store, so the first read misses the cache
	require.NoError(t, base.Append(ctx, rec("r1", "m1", "p1", t0, model.StanceNeutral, 0)))
	got, err := store.Latest(ctx, "m1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Contains(t, latest.recs, "m1|p1")

	require.NoError(t, store.Append(ctx, rec("r2", "m1", "p1", t0.Add(1), model.StanceOpposed, -0.2)))
	assert.Equal(t, 1, analytics.invalidations)
	got, err = store.Latest(ctx, "m1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ID)

	require.NoError(t, store.AppendChange(ctx, &model.ChangeEvent{ID: "e1", ModelName: "m1", PromptID: "p1", DetectedAt: t0}))
	require.Len(t, board.events, 1)
}

func TestCachedStoreFallsBackOnCacheFailure(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	latest := &fakeLatest{recs: map[string]*model.ScoreRecord{}, fails: true}
	store := NewCachedStore(base, latest, nil, nil, zap.NewNop())

	require.NoError(t, store.Append(ctx, rec("r1", "m1", "p1", t0, model.StanceNeutral, 0)))
	got, err := store.Latest(ctx, "m1", "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ID)

	missing, err := store.Latest(ctx, "m1", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCachedStoreDropsStaleLatestWhenSetFails(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	latest := &fakeLatest{recs: map[string]*model.ScoreRecord{}}
	store := NewCachedStore(base, latest, nil, nil, zap.NewNop())

	require.NoError(t, store.Append(ctx, rec("r1", "m1", "p1", t0, model.StanceSupportive, 0.3)))
	require.Equal(t, "r1", latest.recs["m1|p1"].ID)

	latest.setFails = true
	require.NoError(t, store.Append(ctx, rec("r2", "m1", "p1", t0.Add(1), model.StanceOpposed, -0.3)))
	assert.NotContains(t, latest.recs, "m1|p1")

	got, err := store.Latest(ctx, "m1", "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r2", got.ID)
	assert.Equal(t, model.StanceOpposed, got.Stance)
}
