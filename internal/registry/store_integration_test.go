//go:build integration

package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gokatarajesh/livequiz/internal/game"
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
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(startRedis(t), zerolog.Nop(), Options{})
	hostID := uuid.New()

	meta, err := store.Create(ctx, 42, hostID)
	require.NoError(t, err)
	assert.Len(t, meta.Pin, 6)

	got, err := store.Lookup(ctx, meta.Pin)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.QuizID)
	assert.Equal(t, hostID, got.HostID)

	ok, err := store.NicknameAvailable(ctx, meta.Pin, "Alex")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.ClaimNickname(ctx, meta.Pin, "Alex"))
	ok, err = store.NicknameAvailable(ctx, meta.Pin, " ALEX ")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ReleaseNickname(ctx, meta.Pin, "alex"))
	ok, err = store.NicknameAvailable(ctx, meta.Pin, "Alex")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Release(ctx, meta.Pin))
	_, err = store.Lookup(ctx, meta.Pin)
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestStore_CreateRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := NewStore(startRedis(t), zerolog.Nop(), Options{PinLength: 1, MaxAttempts: 3})

	store.intN = func(int) int { return 5 }
	first, err := store.Create(ctx, 1, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "5", first.Pin)

	_, err = store.Create(ctx, 1, uuid.New())
	assert.ErrorIs(t, err, ErrPinExhausted)
}
