//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
)

func startRedis(ctx context.Context, t *testing.T) *goredis.Client {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(terminateCtx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := NewClient(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_Redis(t *testing.T) {
	ctx := context.Background()
	client := startRedis(ctx, t)

	t.Run("cart", func(t *testing.T) {
		store := NewCartStore(client, time.Hour)

		c, err := store.Get(ctx, "c1")
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())

		require.NoError(t, store.Set(ctx, "c1", cart.Cart{Items: map[string]int{"a": 2, "b": 1}}))
		require.NoError(t, store.Set(ctx, "c1", cart.Cart{Items: map[string]int{"a": 3}}))

		c, err = store.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"a": 3}, c.Items)

		ttl, err := client.TTL(ctx, cartKeyPrefix+"c1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		require.NoError(t, store.Clear(ctx, "c1"))
		c, err = store.Get(ctx, "c1")
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
	})

	t.Run("session", func(t *testing.T) {
		store := NewSessionStore(client)
		now := time.Now().Truncate(time.Microsecond)
		sess := &auth.Session{
			ID: "s1", UserID: "u1", Username: "alice", IsAdmin: true, CartID: "c1",
			CSRFToken: "tok", Fingerprint: "fp", CreatedAt: now, LastActivity: now,
		}
		require.NoError(t, store.Save(ctx, sess, time.Minute))

		loaded, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, sess.CartID, loaded.CartID)
		assert.True(t, loaded.IsAdmin)
		assert.True(t, now.Equal(loaded.CreatedAt))
		assert.Empty(t, loaded.RotatedTo)

		retired := *sess
		retired.RotatedTo = "s2"
		require.NoError(t, store.Save(ctx, &retired, 30*time.Second))
		loaded, err = store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "s2", loaded.RotatedTo)
		ttl, err := client.TTL(ctx, sessionKeyPrefix+"s1").Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, 30*time.Second)

		require.NoError(t, store.Delete(ctx, "s1"))
		_, err = store.Load(ctx, "s1")
		require.ErrorIs(t, err, auth.ErrSessionNotFound)
		require.ErrorIs(t, store.Delete(ctx, "s1"), auth.ErrSessionNotFound)
	})

	t.Run("rate counter", func(t *testing.T) {
		counter := NewRateCounter(client)
		for want := int64(1); want <= 3; want++ {
			got, err := counter.Incr(ctx, "127.0.0.1", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})
}
