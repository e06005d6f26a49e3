package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a fixed-window Limiter backed by Redis, for deployments running
// more than one API replica. Window keys expire on their own, so there is no
// eviction to manage.
type Redis struct {
	client *redis.Client
	limit  int
	per    time.Duration
}

func NewRedis(redisURL string, limit int, per time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, limit: limit, per: per}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Allow(ctx context.Context, clientKey string) (bool, error) {
	bucket := time.Now().Unix() / int64(r.per.Seconds())
	key := fmt.Sprintf("ratelimit:%s:%d", clientKey, bucket)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr failed: %w", err)
	}
	if count == 1 {
		// First hit in this window owns the expiry
		if err := r.client.Expire(ctx, key, r.per).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire failed: %w", err)
		}
	}

	return count <= int64(r.limit), nil
}

var _ Limiter = (*Redis)(nil)
