package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"driftwatch/internal/model"
)

const heatmapKey = "analytics:heatmap"

// AnalyticsCache memoizes aggregator results between appends
type AnalyticsCache interface {
	GetHeatmap(ctx context.Context) (*model.Heatmap, error)
	SetHeatmap(ctx context.Context, heatmap *model.Heatmap) error
	Invalidate(ctx context.Context) error
}

type analyticsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAnalyticsCache creates a new analytics cache
func NewAnalyticsCache(client *redis.Client, ttl time.Duration) AnalyticsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &analyticsCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *analyticsCache) GetHeatmap(ctx context.Context) (*model.Heatmap, error) {
	data, err := c.client.Get(ctx, heatmapKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var heatmap model.Heatmap
	if err := json.Unmarshal([]byte(data), &heatmap); err != nil {
		return nil, err
	}
	return &heatmap, nil
}

func (c *analyticsCache) SetHeatmap(ctx context.Context, heatmap *model.Heatmap) error {
	data, err := json.Marshal(heatmap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, heatmapKey, data, c.ttl).Err()
}

func (c *analyticsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, heatmapKey).Err()
}
