package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/p-n-ai/pai-lms/internal/platform/cache"
)

// Cache memoizes percent-complete per (user, subject). Implementations must
// treat every failure as a miss.
type Cache interface {
	Get(ctx context.Context, userID, subjectID int64) (int, bool)
	Set(ctx context.Context, userID, subjectID int64, percent int)
	Invalidate(ctx context.Context, userID, subjectID int64)
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, int64, int64) (int, bool) { return 0, false }
func (NopCache) Set(context.Context, int64, int64, int)        {}
func (NopCache) Invalidate(context.Context, int64, int64)      {}

// RedisCache stores percentages in Redis/Dragonfly.
type RedisCache struct {
	c   *cache.Cache
	ttl time.Duration
}

// NewRedisCache creates a cache with the given entry TTL.
func NewRedisCache(c *cache.Cache, ttl time.Duration) *RedisCache {
	return &RedisCache{c: c, ttl: ttl}
}

// CacheKey returns the Redis key for a (user, subject) pair.
func CacheKey(userID, subjectID int64) string {
	return fmt.Sprintf("progress:%d:%d", userID, subjectID)
}

func (r *RedisCache) Get(ctx context.Context, userID, subjectID int64) (int, bool) {
	v, err := r.c.Get(ctx, CacheKey(userID, subjectID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("progress cache get failed", "error", err)
		}
		return 0, false
	}
	pct, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func (r *RedisCache) Set(ctx context.Context, userID, subjectID int64, percent int) {
	if err := r.c.Set(ctx, CacheKey(userID, subjectID), strconv.Itoa(percent), r.ttl); err != nil {
		slog.Warn("progress cache set failed", "error", err)
	}
}

func (r *RedisCache) Invalidate(ctx context.Context, userID, subjectID int64) {
	if err := r.c.Delete(ctx, CacheKey(userID, subjectID)); err != nil {
		slog.Warn("progress cache invalidate failed", "error", err)
	}
}
