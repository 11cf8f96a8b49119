package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCountsWithinWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, err := store.IncrWithTTL(ctx, "rl:api:1.2.3.4", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, count)
	}

	// A different key has its own counter.
	count, err := store.IncrWithTTL(ctx, "rl:api:5.6.7.8", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestMemoryStoreResetsAfterExpiry(t *testing.T) {
	current := time.Now()
	store := &memoryStore{
		entries: make(map[string]*memoryEntry),
		now:     func() time.Time { return current },
	}
	ctx := context.Background()

	_, err := store.IncrWithTTL(ctx, "rl:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	count, err := store.IncrWithTTL(ctx, "rl:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	current = current.Add(2 * time.Minute)

	count, err = store.IncrWithTTL(ctx, "rl:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestAllow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _, err := Allow(ctx, store, "rl:api:k", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, count, err := Allow(ctx, store, "rl:api:k", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int64(4), count)
}
