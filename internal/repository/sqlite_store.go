package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"driftwatch/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS score_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	model_name TEXT NOT NULL,
	prompt_id TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	ts INTEGER NOT NULL,
	raw_text TEXT NOT NULL,
	sentiment REAL NOT NULL,
	stance TEXT NOT NULL,
	certainty REAL NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_records_model_prompt_ts ON score_records(model_name, prompt_id, ts);
CREATE INDEX IF NOT EXISTS idx_records_model_ts ON score_records(model_name, ts);

CREATE TABLE IF NOT EXISTS change_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	model_name TEXT NOT NULL,
	prompt_id TEXT NOT NULL,
	from_stance TEXT NOT NULL,
	to_stance TEXT NOT NULL,
	magnitude REAL NOT NULL,
	adjusted_magnitude REAL NOT NULL,
	alert_level TEXT NOT NULL,
	since_prior INTEGER NOT NULL,
	detected_at INTEGER NOT NULL,
	prior_record_id TEXT NOT NULL,
	record_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_changes_model_detected ON change_events(model_name, detected_at);

CREATE TABLE IF NOT EXISTS test_sessions (
	id TEXT PRIMARY KEY,
	model_name TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	body TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_model_started ON test_sessions(model_name, started_at);
`

const recordColumns = `id, model_name, prompt_id, category, session_id, ts, raw_text, sentiment, stance, certainty, keywords`

const changeColumns = `id, model_name, prompt_id, from_stance, to_stance, magnitude, adjusted_magnitude, alert_level, since_prior, detected_at, prior_record_id, record_id`

// SQLiteStore is a single-node ScoreStore and SessionStore
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" keeps
// everything in process.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps a :memory: database alive on a single conn
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record methods

func (s *SQLiteStore) Append(ctx context.Context, rec *model.ScoreRecord) error {
	keywords, err := json.Marshal(orEmpty(rec.Keywords))
	if err != nil {
		return writeErr("append", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO score_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ModelName, rec.PromptID, rec.Category, rec.SessionID, rec.Timestamp.UnixNano(),
		rec.RawText, rec.SentimentScore, string(rec.Stance), rec.CertaintyScore, string(keywords),
	)
	return writeErr("append", err)
}

func (s *SQLiteStore) Latest(ctx context.Context, modelName, promptID string) (*model.ScoreRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM score_records
		 WHERE model_name = ? AND prompt_id = ?
		 ORDER BY ts DESC, seq DESC LIMIT 1`,
		modelName, promptID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr("latest", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Range(ctx context.Context, modelName, promptID string, from, to time.Time) ([]*model.ScoreRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM score_records WHERE model_name = ? AND prompt_id = ?`
	args := []any{modelName, promptID}
	if !from.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, to.UnixNano())
	}
	query += ` ORDER BY ts ASC, seq ASC`
	return s.queryRecords(ctx, "range", query, args...)
}

func (s *SQLiteStore) AllModels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT model_name FROM score_records ORDER BY model_name`)
	if err != nil {
		return nil, readErr("all models", err)
	}
	defer rows.Close()

	models := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, readErr("all models", err)
		}
		models = append(models, name)
	}
	return models, readErr("all models", rows.Err())
}

func (s *SQLiteStore) RecordsByModel(ctx context.Context, modelName string, limit int) ([]*model.ScoreRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM score_records WHERE model_name = ? ORDER BY ts DESC, seq DESC`
	args := []any{modelName}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	recs, err := s.queryRecords(ctx, "records by model", query, args...)
	if err != nil {
		return nil, err
	}
	slices.Reverse(recs)
	return recs, nil
}

func (s *SQLiteStore) queryRecords(ctx context.Context, op, query string, args ...any) ([]*model.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, readErr(op, err)
	}
	defer rows.Close()

	recs := []*model.ScoreRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, readErr(op, err)
		}
		recs = append(recs, rec)
	}
	return recs, readErr(op, rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*model.ScoreRecord, error) {
	var (
		rec      model.ScoreRecord
		ts       int64
		stance   string
		keywords string
	)
	err := sc.Scan(&rec.ID, &rec.ModelName, &rec.PromptID, &rec.Category, &rec.SessionID, &ts,
		&rec.RawText, &rec.SentimentScore, &stance, &rec.CertaintyScore, &keywords)
	if err != nil {
		return nil, err
	}
	rec.Timestamp = time.Unix(0, ts).UTC()
	rec.Stance = model.Stance(stance)
	if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	return &rec, nil
}

// Change event methods

func (s *SQLiteStore) AppendChange(ctx context.Context, ev *model.ChangeEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO change_events (`+changeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ModelName, ev.PromptID, string(ev.FromStance), string(ev.ToStance), ev.Magnitude,
		ev.AdjustedMagnitude, string(ev.AlertLevel), int64(ev.TimeSincePrior), ev.DetectedAt.UnixNano(),
		ev.PriorRecordID, ev.RecordID,
	)
	return writeErr("append change", err)
}

func (s *SQLiteStore) Changes(ctx context.Context, filter ChangeFilter) ([]*model.ChangeEvent, error) {
	var (
		where []string
		args  []any
	)
	if filter.Model != "" {
		where = append(where, "model_name = ?")
		args = append(args, filter.Model)
	}
	if filter.PromptID != "" {
		where = append(where, "prompt_id = ?")
		args = append(args, filter.PromptID)
	}
	if filter.AlertLevel != "" {
		where = append(where, "alert_level = ?")
		args = append(args, string(filter.AlertLevel))
	}
	if !filter.Since.IsZero() {
		where = append(where, "detected_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	query := `SELECT ` + changeColumns + ` FROM change_events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY detected_at DESC, seq DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, readErr("changes", err)
	}
	defer rows.Close()

	evs := []*model.ChangeEvent{}
	for rows.Next() {
		var (
			ev                 model.ChangeEvent
			from, to, level    string
			sincePrior, detect int64
		)
		if err := rows.Scan(&ev.ID, &ev.ModelName, &ev.PromptID, &from, &to, &ev.Magnitude,
			&ev.AdjustedMagnitude, &level, &sincePrior, &detect, &ev.PriorRecordID, &ev.RecordID); err != nil {
			return nil, readErr("changes", err)
		}
		ev.FromStance = model.Stance(from)
		ev.ToStance = model.Stance(to)
		ev.AlertLevel = model.AlertLevel(level)
		ev.TimeSincePrior = time.Duration(sincePrior)
		ev.DetectedAt = time.Unix(0, detect).UTC()
		evs = append(evs, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, readErr("changes", err)
	}
	slices.Reverse(evs)
	return evs, nil
}

// Session methods

func (s *SQLiteStore) Save(ctx context.Context, session *model.TestSession) error {
	body, err := json.Marshal(session)
	if err != nil {
		return writeErr("save session", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO test_sessions (id, model_name, started_at, body) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body`,
		session.SessionID, session.ModelName, session.StartedAt.UnixNano(), string(body),
	)
	return writeErr("save session", err)
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*model.TestSession, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM test_sessions WHERE id = ?`, sessionID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr("get session", err)
	}
	var session model.TestSession
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		return nil, readErr("get session", err)
	}
	return &session, nil
}

func (s *SQLiteStore) List(ctx context.Context, modelName string, limit int) ([]*model.TestSession, error) {
	query := `SELECT body FROM test_sessions`
	var args []any
	if modelName != "" {
		query += ` WHERE model_name = ?`
		args = append(args, modelName)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, readErr("list sessions", err)
	}
	defer rows.Close()

	sessions := []*model.TestSession{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, readErr("list sessions", err)
		}
		var session model.TestSession
		if err := json.Unmarshal([]byte(body), &session); err != nil {
			return nil, readErr("list sessions", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, readErr("list sessions", rows.Err())
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
