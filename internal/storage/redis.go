package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IngestCache is a Redis-backed fast path for the dedup check. Entries are
// written after a successful save and consulted before hitting Postgres; a
// cache miss always falls through to the database, so losing the cache only
// costs an extra query.
type IngestCache struct {
	client *redis.Client
}

func NewIngestCache(addr string) *IngestCache {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &IngestCache{client: rdb}
}

func (c *IngestCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *IngestCache) Close() error {
	return c.client.Close()
}

// MarkIngested records a video as saved, with a TTL.
func (c *IngestCache) MarkIngested(ctx context.Context, videoID string, ttl time.Duration) error {
	key := fmt.Sprintf("ingested:%s", videoID)
	return c.client.Set(ctx, key, "1", ttl).Err()
}

// IsRecentlyIngested checks whether a video was saved within the TTL window.
func (c *IngestCache) IsRecentlyIngested(ctx context.Context, videoID string) (bool, error) {
	key := fmt.Sprintf("ingested:%s", videoID)
	val, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}
