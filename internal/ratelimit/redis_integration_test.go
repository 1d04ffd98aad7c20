//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

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
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisBackend_WindowAndBlock(t *testing.T) {
	client := startRedis(t)
	backend := NewRedisBackend(client, "test:")
	ctx := context.Background()
	b := Bucket{Name: "auth", Requests: 3, Window: time.Minute, Block: 2 * time.Second}

	for i := 0; i < 3; i++ {
		d, err := backend.Hit(ctx, b, "203.0.113.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := backend.Hit(ctx, b, "203.0.113.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(2*time.Second), float64(d.RetryAfter), float64(100*time.Millisecond))

	d, err = backend.Hit(ctx, b, "203.0.113.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	require.Eventually(t, func() bool {
		d, err := backend.Hit(ctx, b, "203.0.113.1")
		return err == nil && d.Allowed
	}, 5*time.Second, 200*time.Millisecond)
}
