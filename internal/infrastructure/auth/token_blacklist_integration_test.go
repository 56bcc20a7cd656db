//go:build integration

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/consignment/internal/infrastructure/auth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisTokenBlacklist(t *testing.T) {
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
	defer client.Close()

	blacklist := auth.NewRedisTokenBlacklist(client, "")

	t.Run("jti revocation", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, blacklist.JTIKey("jti-1"), "1", time.Minute).Err())

		revoked, err := blacklist.IsBlacklisted(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, err = blacklist.IsBlacklisted(ctx, "jti-2")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("user sign-out", func(t *testing.T) {
		signedOut := time.Now()
		issued := signedOut.Add(-time.Hour)

		invalidated, err := blacklist.IsUserTokenInvalidated(ctx, "user-1", issued)
		require.NoError(t, err)
		assert.False(t, invalidated)

		require.NoError(t, client.Set(ctx, blacklist.SignOutKey("user-1"), signedOut.Unix(), time.Hour).Err())

		invalidated, err = blacklist.IsUserTokenInvalidated(ctx, "user-1", issued)
		require.NoError(t, err)
		assert.True(t, invalidated)

		invalidated, err = blacklist.IsUserTokenInvalidated(ctx, "user-1", signedOut.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, invalidated)
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, blacklist.SignOutKey("user-2"), "yesterday", time.Hour).Err())

		_, err := blacklist.IsUserTokenInvalidated(ctx, "user-2", time.Now())
		assert.ErrorContains(t, err, "malformed")
	})
}
