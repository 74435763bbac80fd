//go:build integration

package consistency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisTracker_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	tr := NewRedisTracker(client, 300*time.Millisecond)

	recent, err := tr.RecentMutation(ctx, "user:42")
	require.NoError(t, err)
	assert.False(t, recent)

	require.NoError(t, tr.MarkMutation(ctx, "user:42"))

	exp, ok, err := tr.Expiry(ctx, "user:42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(300*time.Millisecond), exp, 300*time.Millisecond)

	n, err := client.Exists(ctx, DefaultRedisPrefix+"user:42").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Eventually(t, func() bool {
		recent, err := tr.RecentMutation(ctx, "user:42")
		return err == nil && !recent
	}, 2*time.Second, 50*time.Millisecond)
}
