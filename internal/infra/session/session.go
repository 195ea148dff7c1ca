package session

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

// Params defines the dependencies for the session store
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
	Redis  *goredis.Client `optional:"true"`
}

// New selects the session store from session.store.
func New(params Params) (service.SessionStore, error) {
	store := constants.StoreMemory
	if params.Config.Session != nil && params.Config.Session.Store != "" {
		store = params.Config.Session.Store
	}

	switch store {
	case constants.StoreRedis:
		if params.Redis == nil {
			return nil, errors.New("session store is redis but redis.addr is not configured")
		}
		params.Logger.Info("Using Redis session store")

		return NewRedisStore(params.Redis, redisinfra.KeyPrefix(params.Config)), nil
	case constants.StoreMemory:
		params.Logger.Warn("Using in-memory session store, sessions are lost on restart")

		return NewMemoryStore(), nil
	default:
		return nil, errors.Errorf("unknown session store: %s", store)
	}
}
