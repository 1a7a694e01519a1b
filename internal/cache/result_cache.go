package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"neuropathx/internal/model"
)

// ResultCache keeps the latest PredictionResult per session in redis so a
// later report-generation request can retrieve it. A new result under the
// same session key overwrites the previous one; with a zero TTL entries
// never expire.
type ResultCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewResultCache(client *redisv9.Client, ttl time.Duration) *ResultCache {
	if ttl < 0 {
		ttl = 0
	}
	return &ResultCache{client: client, ttl: ttl}
}

func (c *ResultCache) Put(ctx context.Context, result *model.PredictionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(result.SessionID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set result failed: %w", err)
	}
	return nil
}

func (c *ResultCache) Get(ctx context.Context, sessionID string) (*model.PredictionResult, bool, error) {
	raw, err := c.client.Get(ctx, c.key(sessionID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get result failed: %w", err)
	}

	var result model.PredictionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached result failed: %w", err)
	}
	return &result, true, nil
}

func (c *ResultCache) key(sessionID string) string {
	return fmt.Sprintf("scan:result:%s", sessionID)
}
