package ratelimit

import (
	"log/slog"

	"healthbridge/config"
	"healthbridge/internal/domain/constants"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"
	redisinfra "healthbridge/internal/infra/redis"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params defines the dependencies for the limiter
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
	Redis  *goredis.Client `optional:"true"`
}

// New selects the limiter backend from rateLimit.store.
func New(params Params) (service.RateLimiter, error) {
	cfg := params.Config.RateLimit

	switch cfg.Store {
	case constants.StoreRedis:
		if params.Redis == nil {
			return nil, errors.New("rate limit store is redis but redis.addr is not configured")
		}
		params.Logger.Info("Using Redis rate limiter",
			slog.Int("maxAttempts", cfg.MaxAttempts),
			slog.Duration("window", cfg.Window),
		)

		return NewRedisLimiter(params.Redis, redisinfra.KeyPrefix(params.Config), cfg.MaxAttempts, cfg.Window), nil
	case constants.StoreMemory, "":
		params.Logger.Info("Using in-memory rate limiter",
			slog.Int("maxAttempts", cfg.MaxAttempts),
			slog.Duration("window", cfg.Window),
		)

		return NewMemoryLimiter(cfg.MaxAttempts, cfg.Window), nil
	default:
		return nil, errors.Errorf("unknown rate limit store: %s", cfg.Store)
	}
}
