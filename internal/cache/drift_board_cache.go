package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"driftwatch/internal/model"
)

const (
	driftBoardKey       = "drift:board"
	driftBoardEventsKey = "drift:board:events"
	driftBoardMax       = 500
)

// DriftBoardCache ranks change events by adjusted magnitude in a ZSET
type DriftBoardCache interface {
	Record(ctx context.Context, ev *model.ChangeEvent) error
	Top(ctx context.Context, limit int) ([]model.DriftBoardEntry, error)
}

type driftBoardCache struct {
	client *redis.Client
	max    int64
}

// NewDriftBoardCache creates a new drift board cache
func NewDriftBoardCache(client *redis.Client) DriftBoardCache {
	return &driftBoardCache{
		client: client,
		max:    driftBoardMax,
	}
}

func (c *driftBoardCache) Record(ctx context.Context, ev *model.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, driftBoardKey, redis.Z{Score: ev.AdjustedMagnitude, Member: ev.ID})
		pipe.HSet(ctx, driftBoardEventsKey, ev.ID, data)
		return nil
	})
	if err != nil {
		return err
	}
	return c.trim(ctx)
}

// trim drops the lowest ranked events beyond the board size
func (c *driftBoardCache) trim(ctx context.Context) error {
	evicted, err := c.client.ZRange(ctx, driftBoardKey, 0, -(c.max + 1)).Result()
	if err != nil || len(evicted) == 0 {
		return err
	}
	members := make([]interface{}, len(evicted))
	for i, id := range evicted {
		members[i] = id
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, driftBoardKey, members...)
		pipe.HDel(ctx, driftBoardEventsKey, evicted...)
		return nil
	})
	return err
}

func (c *driftBoardCache) Top(ctx context.Context, limit int) ([]model.DriftBoardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	results, err := c.client.ZRevRangeWithScores(ctx, driftBoardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []model.DriftBoardEntry{}, nil
	}

	ids := make([]string, len(results))
	for i, z := range results {
		ids[i] = z.Member.(string)
	}
	raw, err := c.client.HMGet(ctx, driftBoardEventsKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]model.DriftBoardEntry, 0, len(results))
	for i, z := range results {
		s, ok := raw[i].(string)
		if !ok {
			continue
		}
		var ev model.ChangeEvent
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			continue
		}
		entries = append(entries, model.DriftBoardEntry{
			Event: &ev,
			Score: z.Score,
			Rank:  len(entries) + 1,
		})
	}
	return entries, nil
}
