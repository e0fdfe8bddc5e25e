package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/livequiz/internal/game"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

type mockSaver struct {
	mock.Mock
}

func (m *mockSaver) Save(ctx context.Context, summary game.Summary) (uuid.UUID, error) {
	args := m.Called(ctx, summary)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type mockFame struct {
	mock.Mock
}

func (m *mockFame) RecordGame(ctx context.Context, summary game.Summary) error {
	return m.Called(ctx, summary).Error(0)
}

func testSummary(pin string) game.Summary {
	return game.Summary{
		Pin:        pin,
		QuizID:     3,
		FinishedAt: time.Date(2024, 5, 1, 18, 5, 0, 0, time.UTC),
		Questions:  2,
		Leaderboard: []ws.LeaderboardEntry{
			{Rank: 1, PlayerID: "p1", Nickname: "Alex", Score: 1900},
		},
	}
}

func TestRecorder_PersistsAndRanks(t *testing.T) {
	saver := new(mockSaver)
	fame := new(mockFame)
	summary := testSummary("123456")

	done := make(chan struct{})
	saver.On("Save", mock.Anything, summary).Return(uuid.New(), nil).Once()
	fame.On("RecordGame", mock.Anything, summary).Return(nil).Once().Run(func(mock.Arguments) { close(done) })

	rec := NewRecorder(saver, fame, 4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- rec.Run(ctx) }()

	rec.Submit(summary)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("summary not recorded")
	}
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	saver.AssertExpectations(t)
	fame.AssertExpectations(t)
}

func TestRecorder_SaveFailureStillUpdatesHallOfFame(t *testing.T) {
	saver := new(mockSaver)
	fame := new(mockFame)
	summary := testSummary("123456")

	saver.On("Save", mock.Anything, summary).Return(uuid.Nil, errors.New("db down"))
	fame.On("RecordGame", mock.Anything, summary).Return(nil)

	rec := NewRecorder(saver, fame, 1, zerolog.Nop())
	rec.record(context.Background(), summary)

	saver.AssertExpectations(t)
	fame.AssertExpectations(t)
}

func TestRecorder_SubmitNeverBlocks(t *testing.T) {
	rec := NewRecorder(nil, nil, 1, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		rec.Submit(testSummary("1"))
		rec.Submit(testSummary("2"))
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
	require.Len(t, rec.queue, 1)
	assert.Equal(t, "1", (<-rec.queue).Pin)
}

func TestRecorder_DrainsOnShutdown(t *testing.T) {
	saver := new(mockSaver)
	summary := testSummary("123456")
	saver.On("Save", mock.Anything, summary).Return(uuid.New(), nil).Once()

	rec := NewRecorder(saver, nil, 4, zerolog.Nop())
	rec.Submit(summary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rec.Run(ctx), context.Canceled)
	saver.AssertExpectations(t)
}
