package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/consignment/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(time.Hour, WithClock(clock.Now))
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_Claims(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)
	const key = "consignment:sale:t1:REF-1"

	claimed, err := store.MarkProcessed(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.MarkProcessed(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "live key is a duplicate")

	seen, err := store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	clock.Advance(time.Minute)
	seen, err = store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen, "key expires exactly at its ttl")

	claimed, err = store.MarkProcessed(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "expired key can be claimed again")
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryIdempotencyStore_Forget(t *testing.T) {
	ctx := context.Background()
	store, _ := newClockedStore(t)
	const key = "consignment:sale:t1:REF-F"

	_, err := store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, key))

	claimed, err := store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed, "forgotten key can be claimed again")

	assert.NoError(t, store.Forget(ctx, "never-marked"))
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	_, _ = store.MarkProcessed(ctx, "short-1", time.Second)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Second)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	clock.Advance(time.Minute)
	require.Equal(t, 3, store.Len())

	store.sweep()

	assert.Equal(t, 1, store.Len())
	seen, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	store := NewInMemoryIdempotencyStore(0)
	defer store.Close()

	const workers = 64
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.MarkProcessed(context.Background(), "consignment:sale:t1:REF-C", time.Hour)
			if err == nil && claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Millisecond)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestIdempotencyStoreFactory_CreateStore(t *testing.T) {
	t.Run("uses in-memory store when Redis is disabled", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false})

		store, client := f.CreateStore(context.Background())
		defer store.Close()

		assert.Nil(t, client)
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("falls back to in-memory store when Redis is unreachable", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		f := NewIdempotencyStoreFactory(
			config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1},
			WithLogger(zap.New(core)),
		)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		store, client := f.CreateStore(ctx)
		defer store.Close()

		assert.Nil(t, client)
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
		assert.Equal(t, 1, logs.Len())
	})
}
