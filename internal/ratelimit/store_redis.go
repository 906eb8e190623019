package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a fixed-window limiter shared across instances. Each key gets
// a counter that expires with its window; INCR and EXPIRE run in one pipeline
// so a crash between them cannot leave an immortal counter.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit"}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := time.Now()
	bucket := now.Truncate(window)
	redisKey := fmt.Sprintf("%s:%s:%d", s.prefix, key, bucket.Unix())

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := int(incr.Val())
	result := Result{
		Limit:   limit,
		ResetAt: bucket.Add(window),
	}
	if count > limit {
		return result, nil
	}
	result.Allowed = true
	result.Remaining = limit - count
	return result, nil
}
