package repository

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"driftwatch/internal/model"
)

type mongoScoreRepo struct {
	records *mongo.Collection
	changes *mongo.Collection
	log     *zap.Logger
	lastSeq atomic.Int64
}

// mongoRecord adds an insertion sequence that orders records sharing a
// millisecond timestamp
type mongoRecord struct {
	model.ScoreRecord `bson:",inline"`
	Seq               int64 `bson:"seq"`
}

var (
	newestFirst = bson.D{{Key: "timestamp", Value: -1}, {Key: "seq", Value: -1}}
	oldestFirst = bson.D{{Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}}
)

// NewMongoScoreRepo creates a MongoDB backed score store with indexes
func NewMongoScoreRepo(ctx context.Context, db *mongo.Database, log *zap.Logger) ScoreStore {
	repo := &mongoScoreRepo{
		records: db.Collection("score_records"),
		changes: db.Collection("change_events"),
		log:     log,
	}

	repo.ensureIndexes(ctx)

	return repo
}

func (r *mongoScoreRepo) ensureIndexes(ctx context.Context) {
	// score_records indexes
	createIndex(ctx, r.log, r.records, bson.D{
		{Key: "modelName", Value: 1},
		{Key: "promptId", Value: 1},
		{Key: "timestamp", Value: -1},
		{Key: "seq", Value: -1},
	}, false)
	createIndex(ctx, r.log, r.records, bson.D{
		{Key: "modelName", Value: 1},
		{Key: "timestamp", Value: -1},
	}, false)

	// change_events indexes
	createIndex(ctx, r.log, r.changes, bson.D{
		{Key: "modelName", Value: 1},
		{Key: "detectedAt", Value: -1},
	}, false)
	createIndex(ctx, r.log, r.changes, bson.D{
		{Key: "alertLevel", Value: 1},
		{Key: "detectedAt", Value: -1},
	}, false)

	r.log.Debug("score store indexes ensured")
}

func createIndex(ctx context.Context, log *zap.Logger, coll *mongo.Collection, keys bson.D, unique bool) {
	opts := options.Index().SetUnique(unique)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts})
	if err != nil {
		log.Warn("failed to create index", zap.String("collection", coll.Name()), zap.Error(err))
	}
}

// Record methods

func (r *mongoScoreRepo) Append(ctx context.Context, rec *model.ScoreRecord) error {
	_, err := r.records.InsertOne(ctx, mongoRecord{ScoreRecord: *rec, Seq: r.nextSeq()})
	return writeErr("append", err)
}

// nextSeq is strictly increasing within the process, which is where
// writes for one model and prompt are serialized
func (r *mongoScoreRepo) nextSeq() int64 {
	for {
		last := r.lastSeq.Load()
		next := max(time.Now().UnixNano(), last+1)
		if r.lastSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (r *mongoScoreRepo) Latest(ctx context.Context, modelName, promptID string) (*model.ScoreRecord, error) {
	opts := options.FindOne().SetSort(newestFirst)
	var rec model.ScoreRecord
	err := r.records.FindOne(ctx, bson.M{"modelName": modelName, "promptId": promptID}, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr("latest", err)
	}
	return &rec, nil
}

func (r *mongoScoreRepo) Range(ctx context.Context, modelName, promptID string, from, to time.Time) ([]*model.ScoreRecord, error) {
	filter := bson.M{"modelName": modelName, "promptId": promptID}
	if ts := timeBounds(from, to); len(ts) > 0 {
		filter["timestamp"] = ts
	}

	opts := options.Find().SetSort(oldestFirst)
	return r.findRecords(ctx, "range", filter, opts)
}

func (r *mongoScoreRepo) AllModels(ctx context.Context) ([]string, error) {
	values, err := r.records.Distinct(ctx, "modelName", bson.M{})
	if err != nil {
		return nil, readErr("all models", err)
	}
	models := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			models = append(models, s)
		}
	}
	slices.Sort(models)
	return models, nil
}

func (r *mongoScoreRepo) RecordsByModel(ctx context.Context, modelName string, limit int) ([]*model.ScoreRecord, error) {
	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	recs, err := r.findRecords(ctx, "records by model", bson.M{"modelName": modelName}, opts)
	if err != nil {
		return nil, err
	}
	slices.Reverse(recs)
	return recs, nil
}

func (r *mongoScoreRepo) findRecords(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]*model.ScoreRecord, error) {
	cursor, err := r.records.Find(ctx, filter, opts)
	if err != nil {
		return nil, readErr(op, err)
	}
	defer cursor.Close(ctx)

	var recs []*model.ScoreRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, readErr(op, err)
	}
	return recs, nil
}

// Change event methods

func (r *mongoScoreRepo) AppendChange(ctx context.Context, ev *model.ChangeEvent) error {
	_, err := r.changes.InsertOne(ctx, ev)
	return writeErr("append change", err)
}

func (r *mongoScoreRepo) Changes(ctx context.Context, filter ChangeFilter) ([]*model.ChangeEvent, error) {
	q := bson.M{}
	if filter.Model != "" {
		q["modelName"] = filter.Model
	}
	if filter.PromptID != "" {
		q["promptId"] = filter.PromptID
	}
	if filter.AlertLevel != "" {
		q["alertLevel"] = filter.AlertLevel
	}
	if !filter.Since.IsZero() {
		q["detectedAt"] = bson.M{"$gte": filter.Since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "detectedAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.changes.Find(ctx, q, opts)
	if err != nil {
		return nil, readErr("changes", err)
	}
	defer cursor.Close(ctx)

	var evs []*model.ChangeEvent
	if err := cursor.All(ctx, &evs); err != nil {
		return nil, readErr("changes", err)
	}
	slices.Reverse(evs)
	return evs, nil
}

func timeBounds(from, to time.Time) bson.M {
	ts := bson.M{}
	if !from.IsZero() {
		ts["$gte"] = from
	}
	if !to.IsZero() {
		ts["$lte"] = to
	}
	return ts
}
