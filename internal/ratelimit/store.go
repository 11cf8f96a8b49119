package ratelimit

import (
	"context"
	"time"
)

// Store is a TTL counter. IncrWithTTL increments the counter at key and, on
// the first increment of a window, arms the expiry. Implementations are safe
// for concurrent use.
type Store interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Allow applies a fixed-window limit on top of a Store.
func Allow(ctx context.Context, store Store, key string, window time.Duration, limit int64) (bool, int64, error) {
	count, err := store.IncrWithTTL(ctx, key, window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}
