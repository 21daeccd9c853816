package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"driftwatch/internal/model"
)

// LatestCache keeps the most recent score record per model and prompt
type LatestCache interface {
	Get(ctx context.Context, modelName, promptID string) (*model.ScoreRecord, error)
	Set(ctx context.Context, rec *model.ScoreRecord) error
	Delete(ctx context.Context, modelName, promptID string) error
}

type latestCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLatestCache creates a new latest-record cache
func NewLatestCache(client *redis.Client) LatestCache {
	return &latestCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func latestKey(modelName, promptID string) string {
	return fmt.Sprintf("drift:latest:%s:%s", modelName, promptID)
}

func (c *latestCache) Get(ctx context.Context, modelName, promptID string) (*model.ScoreRecord, error) {
	data, err := c.client.Get(ctx, latestKey(modelName, promptID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.ScoreRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *latestCache) Set(ctx context.Context, rec *model.ScoreRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, latestKey(rec.ModelName, rec.PromptID), data, c.ttl).Err()
}

func (c *latestCache) Delete(ctx context.Context, modelName, promptID string) error {
	return c.client.Del(ctx, latestKey(modelName, promptID)).Err()
}
