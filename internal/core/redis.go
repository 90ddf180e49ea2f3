// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/bookshelf/internal/config"
)

const denylistPrefix = "denylist:"

// Redis backs rate limiting and the access token denylist.
type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.ConnMaxIdleTime = 5 * time.Minute

	r := WrapRedis(redis.NewClient(opts))
	if err := r.Ping(ctx); err != nil {
		_ = r.Close() //nolint:errcheck // cleanup on connection failure
		return nil, err
	}

	return r, nil
}

// WrapRedis adopts an existing client, mostly for tests against miniredis.
func WrapRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.Client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

// Deny records id until ttl elapses. Non-positive ttls are a no-op since
// the credential has already lapsed on its own.
func (r *Redis) Deny(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.Client.Set(ctx, denylistPrefix+id, 1, ttl).Err(); err != nil {
		return fmt.Errorf("deny %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Denied(ctx context.Context, id string) (bool, error) {
	n, err := r.Client.Exists(ctx, denylistPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("check denylist: %w", err)
	}
	return n > 0, nil
}
