package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"driftwatch/internal/model"
)

type mongoSessionRepo struct {
	sessions *mongo.Collection
}

// NewMongoSessionRepo creates a MongoDB backed session store
func NewMongoSessionRepo(ctx context.Context, db *mongo.Database, log *zap.Logger) SessionStore {
	repo := &mongoSessionRepo{sessions: db.Collection("test_sessions")}
	createIndex(ctx, log, repo.sessions, bson.D{
		{Key: "modelName", Value: 1},
		{Key: "startedAt", Value: -1},
	}, false)
	return repo
}

func (r *mongoSessionRepo) Save(ctx context.Context, session *model.TestSession) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.sessions.ReplaceOne(ctx, bson.M{"_id": session.SessionID}, session, opts)
	return writeErr("save session", err)
}

func (r *mongoSessionRepo) Get(ctx context.Context, sessionID string) (*model.TestSession, error) {
	var session model.TestSession
	err := r.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr("get session", err)
	}
	return &session, nil
}

func (r *mongoSessionRepo) List(ctx context.Context, modelName string, limit int) ([]*model.TestSession, error) {
	filter := bson.M{}
	if modelName != "" {
		filter["modelName"] = modelName
	}
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.sessions.Find(ctx, filter, opts)
	if err != nil {
		return nil, readErr("list sessions", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.TestSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, readErr("list sessions", err)
	}
	return sessions, nil
}
