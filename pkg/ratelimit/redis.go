package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisLimiter keeps window marks in Redis so that several gateway processes
// behind one load balancer share admission. SET NX with a PX expiry is the
// atomic check-and-stamp: the key exists exactly while the window is closed.
//
// When Redis is unreachable the limiter answers from an in-process fallback
// so that admission keeps working, only without cross-process sharing.
type RedisLimiter struct {
	redis    *redis.Client
	window   time.Duration
	now      func() time.Time
	fallback *MemoryLimiter
	logger   zerolog.Logger
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(redisClient *redis.Client, window time.Duration, now func() time.Time, logger zerolog.Logger) *RedisLimiter {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{
		redis:    redisClient,
		window:   window,
		now:      now,
		fallback: NewMemoryLimiter(window, now, logger),
		logger:   logger,
	}
}

// TryAcquire implements Limiter.
func (r *RedisLimiter) TryAcquire(ctx context.Context, key string) bool {
	if r.window <= 0 {
		return true
	}

	stamp := r.now().UnixMilli()
	granted, err := r.redis.SetNX(ctx, RedisKeyPrefix+key, stamp, r.window).Result()
	if err != nil {
		rateLimitRedisFallbacksTotal.Inc()
		r.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Redis admission check failed, using in-process limiter")
		return r.fallback.TryAcquire(ctx, key)
	}

	recordDecision("redis", granted)
	if !granted {
		r.logger.Debug().Str("key", key).Msg("Admission rejected")
	}
	return granted
}

// Mark returns the stored window mark for key, if the window is still closed.
func (r *RedisLimiter) Mark(ctx context.Context, key string) (WindowMark, bool, error) {
	raw, err := r.redis.Get(ctx, RedisKeyPrefix+key).Result()
	if err == redis.Nil {
		return WindowMark{}, false, nil
	}
	if err != nil {
		return WindowMark{}, false, fmt.Errorf("redis get: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return WindowMark{}, false, fmt.Errorf("parse window mark %q: %w", raw, err)
	}
	return WindowMark{Key: key, LastCallAt: time.UnixMilli(ms)}, true, nil
}

// Marks implements MarkLister. Closed windows held in Redis are merged with
// any marks the fallback limiter stamped while Redis was down.
func (r *RedisLimiter) Marks() map[string]WindowMark {
	marks := r.fallback.Marks()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	iter := r.redis.Scan(ctx, 0, RedisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), RedisKeyPrefix)
		mark, ok, err := r.Mark(ctx, key)
		if err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("Failed to read window mark")
			continue
		}
		if ok {
			marks[key] = mark
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to scan window marks")
	}

	return marks
}

// RetryAfter implements RetryAdvisor using the remaining TTL of the mark.
func (r *RedisLimiter) RetryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := r.redis.PTTL(ctx, RedisKeyPrefix+key).Result()
	if err != nil {
		return r.fallback.RetryAfter(ctx, key)
	}
	if ttl < 0 {
		// -2: no mark, -1: no expiry (never written by this limiter).
		return r.fallback.RetryAfter(ctx, key)
	}
	return ttl
}

// Ping checks Redis connectivity.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}
