package repository

import (
	"context"
	"time"

	"driftwatch/internal/model"
)

// ScoreStore persists score records and change events as per model,
// per prompt time series
type ScoreStore interface {
	Append(ctx context.Context, rec *model.ScoreRecord) error
	// Latest returns nil, nil when the pair has no records
	Latest(ctx context.Context, modelName, promptID string) (*model.ScoreRecord, error)
	// Range is inclusive on both ends; a zero bound is open
	Range(ctx context.Context, modelName, promptID string, from, to time.Time) ([]*model.ScoreRecord, error)
	AllModels(ctx context.Context) ([]string, error)
	// RecordsByModel returns the most recent limit records of a model in
	// chronological order, limit 0 returns all
	RecordsByModel(ctx context.Context, modelName string, limit int) ([]*model.ScoreRecord, error)

	AppendChange(ctx context.Context, ev *model.ChangeEvent) error
	Changes(ctx context.Context, filter ChangeFilter) ([]*model.ChangeEvent, error)
}

// ChangeFilter narrows a change event query. Limit keeps the most recent
// matches; results are always ordered by DetectedAt ascending.
type ChangeFilter struct {
	Model      string
	PromptID   string
	AlertLevel model.AlertLevel
	Since      time.Time
	Limit      int
}

// SessionStore persists test session snapshots
type SessionStore interface {
	Save(ctx context.Context, session *model.TestSession) error
	Get(ctx context.Context, sessionID string) (*model.TestSession, error)
	// List returns sessions newest first, optionally for one model
	List(ctx context.Context, modelName string, limit int) ([]*model.TestSession, error)
}
