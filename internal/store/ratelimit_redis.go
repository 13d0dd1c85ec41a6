package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// recordScript prunes the log, then adds the hit only while the count stays within the
// limit. It returns the count the attempt reaches.
var recordScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1]) + 1
if count <= tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
end
return count
`)

// RateLimitRedisStore is a Redis implementation of ratelimit.Store backed by one
// sorted set per key, scored by request time in microseconds.
type RateLimitRedisStore struct {
	client *redis.Client
	prefix string
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client *redis.Client) *RateLimitRedisStore {
	return &RateLimitRedisStore{
		client: client,
		prefix: "ratelimit:",
	}
}

func (s *RateLimitRedisStore) Record(ctx context.Context, key string, limit int64, window time.Duration) (int64, error) {
	now := time.Now()

	count, err := recordScript.Run(ctx, s.client, []string{s.prefix + key},
		now.Add(-window).UnixMicro(),
		now.UnixMicro(),
		limit,
		uuid.NewString(),
		window.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("record request: %w", err)
	}

	return count, nil
}
