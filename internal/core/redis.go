// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/harvest-table/internal/config"
)

type Redis struct {
	Client *redis.Client
}

// NewRedis builds the shared client from a redis:// URL and checks it
// answers before handing it out.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	r := &Redis{Client: redis.NewClient(opts)}
	if err := r.Ping(ctx); err != nil {
		//nolint:errcheck // client never became usable
		_ = r.Client.Close()
		return nil, err
	}

	return r, nil
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	return probe(ctx, "redis", func(ctx context.Context) error {
		return r.Client.Ping(ctx).Err()
	})
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

// SetJSON stores v under key as JSON with the given TTL.
func SetJSON(
	ctx context.Context,
	rdb redis.Cmdable,
	key string,
	v any,
	ttl time.Duration,
) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}

// GetJSON loads key into dest. A missing key reports ErrNotFound.
func GetJSON(ctx context.Context, rdb redis.Cmdable, key string, dest any) error {
	payload, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}

	return nil
}
