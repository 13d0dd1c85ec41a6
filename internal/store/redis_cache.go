package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlinks/internal/shortener"
)

// RedisCacheRepository wraps a Repository with Redis caching for code lookups.
// Click counts are not cached; reads through the cache report zero clicks.
type RedisCacheRepository struct {
	shortener.Repository

	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
func NewRedisCacheRepository(
	store shortener.Repository, client *redis.Client, ttl time.Duration,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		Repository: store,
		client:     client,
		prefix:     "link:",
		ttl:        ttl,
	}
}

// Save stores a link in the underlying store and updates the cache.
func (r *RedisCacheRepository) Save(ctx context.Context, link *shortener.Link) error {
	if err := r.Repository.Save(ctx, link); err != nil {
		return err
	}

	// Write-through: update cache after successful save
	r.cacheLink(ctx, link)

	return nil
}

// GetByCode retrieves a link by its code, checking cache first.
func (r *RedisCacheRepository) GetByCode(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	if link, err := r.getFromCache(ctx, code); err == nil {
		return link, nil
	}

	// Cache miss - fetch from store
	link, err := r.Repository.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	r.cacheLink(ctx, link)

	return link, nil
}

// Evict removes the cached entry for code.
func (r *RedisCacheRepository) Evict(ctx context.Context, code shortener.Code) error {
	return r.client.Del(ctx, r.prefix+string(code)).Err()
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, shortener.ErrNotFound
	}

	link := &shortener.Link{
		ID:          result["id"],
		Code:        shortener.Code(result["code"]),
		OriginalURL: result["original_url"],
		UserID:      result["user_id"],
		CreatedAt:   parseNanos(result["created_at"]),
	}

	if ts := result["expires_at"]; ts != "" {
		expiresAt := parseNanos(ts)
		link.ExpiresAt = &expiresAt
	}

	return link, nil
}

func (r *RedisCacheRepository) cacheLink(ctx context.Context, link *shortener.Link) {
	pipe := r.client.Pipeline()
	key := r.prefix + string(link.Code)

	expiresAt := ""
	if link.ExpiresAt != nil {
		expiresAt = strconv.FormatInt(link.ExpiresAt.UnixNano(), 10)
	}

	pipe.HSet(ctx, key, map[string]interface{}{
		"id":           link.ID,
		"code":         string(link.Code),
		"original_url": link.OriginalURL,
		"user_id":      link.UserID,
		"created_at":   link.CreatedAt.UnixNano(),
		"expires_at":   expiresAt,
	})

	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	_, _ = pipe.Exec(ctx)
}

func parseNanos(s string) time.Time {
	nanos, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(0, nanos).UTC()
}

// Compile-time check.
var (
	_ shortener.Repository = (*RedisCacheRepository)(nil)
	_ shortener.Cache      = (*RedisCacheRepository)(nil)
)
