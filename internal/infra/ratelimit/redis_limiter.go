// Package ratelimit implements sliding-window attempt limiters.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// The sorted set holds one member per attempt scored by its unix millisecond.
// Pruning, counting and recording run in one script so concurrent attempts
// from the same key are all counted.
const slidingWindowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`

var slidingWindowLua = goredis.NewScript(slidingWindowScript)

type redisLimiter struct {
	client      goredis.UniversalClient
	prefix      string
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewRedisLimiter creates a limiter shared by every instance using the same Redis.
func NewRedisLimiter(client goredis.UniversalClient, prefix string, maxAttempts int, window time.Duration) service.RateLimiter {
	return newRedisLimiter(client, prefix, maxAttempts, window, time.Now)
}

func newRedisLimiter(client goredis.UniversalClient, prefix string, maxAttempts int, window time.Duration, now func() time.Time) *redisLimiter {
	return &redisLimiter{
		client:      client,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		window:      window,
		now:         now,
	}
}

func (l *redisLimiter) CheckAndRecord(ctx context.Context, key string) (bool, error) {
	now := l.now()
	cutoff := now.Add(-l.window).UnixMilli()

	allowed, err := slidingWindowLua.Run(ctx, l.client,
		[]string{l.prefix + ":ratelimit:" + key},
		strconv.FormatInt(cutoff, 10),
		strconv.FormatInt(now.UnixMilli(), 10),
		l.maxAttempts,
		uuid.NewString(),
		l.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, errors.Wrap(err, "failed to evaluate rate limit")
	}

	return allowed == 1, nil
}
