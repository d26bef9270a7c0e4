// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/user-admin/internal/config"
)

const (
	redisPingTimeout  = 5 * time.Second
	redisConnectLimit = 15 * time.Second
)

// Redis backs the rate limiter and the preference store. It must answer a
// ping at startup. A later outage marks readiness degraded and the limiter
// falls back to in-process buckets, while user traffic keeps flowing.
type Redis struct {
	Client *redis.Client
}

// NewRedis parses the URL, applies pool sizing and waits for the first
// successful ping with exponential backoff. It fails once redisConnectLimit
// passes or ctx ends, which aborts startup.
func NewRedis(
	ctx context.Context,
	cfg config.RedisConfig,
	logger *slog.Logger,
) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	r := &Redis{Client: redis.NewClient(opts)}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = redisConnectLimit

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		pingErr := r.Ping(ctx)
		if pingErr != nil && logger != nil {
			logger.Debug("redis not ready", "attempt", attempt, "error", pingErr)
		}
		return pingErr
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		_ = r.Client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return r, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := r.Client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}
