//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisSupplierLocker(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	l := NewRedisSupplierLocker(client, WithRetry(10*time.Millisecond, 3))

	release, err := l.Acquire(ctx, supplierKey, time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, supplierKey, time.Minute)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	require.NoError(t, release(ctx))

	release, err = l.Acquire(ctx, supplierKey, 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, release(ctx), "releasing an expired lock is tolerated")
}
