//go:build integration

package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gokatarajesh/livequiz/internal/game"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

func TestService_HallOfFame(t *testing.T) {
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

	svc := NewService(client, zerolog.Nop(), ServiceOptions{TopN: 2, Retain: 2})
	finished := time.Date(2024, 5, 1, 18, 5, 0, 0, time.UTC)

	require.NoError(t, svc.RecordGame(ctx, game.Summary{Pin: "111111", QuizID: 3, FinishedAt: finished, Leaderboard: []ws.LeaderboardEntry{
		{PlayerID: "a", Nickname: "Alex", Score: 900},
		{PlayerID: "b", Nickname: "Blair", Score: 0},
	}}))
	require.NoError(t, svc.RecordGame(ctx, game.Summary{Pin: "222222", QuizID: 3, FinishedAt: finished, Leaderboard: []ws.LeaderboardEntry{
		{PlayerID: "c", Nickname: "Casey", Score: 1500},
		{PlayerID: "d", Nickname: "Dana", Score: 300},
	}}))

	top, err := svc.Top(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, top, 2, "limited to TopN and trimmed to Retain")
	assert.Equal(t, Entry{Rank: 1, Pin: "222222", PlayerID: "c", Nickname: "Casey", Score: 1500, FinishedAt: finished}, top[0])
	assert.Equal(t, "Alex", top[1].Nickname)

	games, players, err := svc.Stats(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, games)
	assert.Equal(t, 4, players)
}
