// Package redis provides the shared Redis client behind sessions and rate limiting.
package redis

import (
	"context"
	"log/slog"

	"healthbridge/config"
	"healthbridge/internal/domain/lifecycle"
	"healthbridge/internal/errors"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New creates the Redis client. It returns a nil client when no address is
// configured, so deployments running purely in memory need no Redis.
func New(params Params) (*goredis.Client, error) {
	cfg := params.Config.Redis
	if cfg == nil || cfg.Addr == "" {
		return nil, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to ping Redis")
			}
			params.Logger.Info("Redis connected", slog.String("addr", cfg.Addr), slog.Int("db", cfg.DB))

			return nil
		},
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

// KeyPrefix returns the configured namespace for portal keys.
func KeyPrefix(cfg *config.Config) string {
	if cfg == nil || cfg.Redis == nil || cfg.Redis.KeyPrefix == "" {
		return "healthbridge"
	}

	return cfg.Redis.KeyPrefix
}
