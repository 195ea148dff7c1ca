package service

import "context"

// RateLimiter is a per-key sliding-window attempt counter.
type RateLimiter interface {
	// CheckAndRecord prunes attempts outside the window, then rejects when the
	// remaining count has reached the limit. A rejected call is not recorded.
	// Otherwise the attempt is recorded and allowed.
	CheckAndRecord(ctx context.Context, key string) (bool, error)
}
