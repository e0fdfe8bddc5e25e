package question

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/livequiz/internal/game"
)

type memoryCache struct {
	store  map[int64]Pack
	getErr error
	setErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{store: map[int64]Pack{}}
}

func (c *memoryCache) Get(_ context.Context, quizID int64) (*Pack, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if val, ok := c.store[quizID]; ok {
		return &val, nil
	}
	return nil, nil
}

func (c *memoryCache) Set(_ context.Context, pack Pack) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.store[pack.QuizID] = pack
	return nil
}

type stubSource struct {
	calls     int
	questions []game.Question
	err       error
}

func (s *stubSource) LoadQuestions(context.Context, int64) ([]game.Question, error) {
	s.calls++
	return s.questions, s.err
}

func sampleQuestions() []game.Question {
	return []game.Question{{
		ID: 7, Kind: game.KindTrueFalse, Prompt: "Go has generics", TimeLimit: 20 * time.Second, Points: 1000,
		Choices: []game.Choice{{ID: 71, Text: "True", IsCorrect: true}, {ID: 72, Text: "False"}},
	}}
}

func TestLoadQuestionsPopulatesCacheOnMiss(t *testing.T) {
	cache := newMemoryCache()
	source := &stubSource{questions: sampleQuestions()}
	svc := NewService(source, cache, zerolog.Nop())
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	qs, err := svc.LoadQuestions(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, sampleQuestions(), qs)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, int64(1700000000), cache.store[3].LoadedAt)

	qs, err = svc.LoadQuestions(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, sampleQuestions(), qs)
	assert.Equal(t, 1, source.calls, "second load served from cache")
}

func TestLoadQuestionsSurvivesCacheFailures(t *testing.T) {
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	source := &stubSource{questions: sampleQuestions()}
	svc := NewService(source, cache, zerolog.Nop())

	qs, err := svc.LoadQuestions(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
	assert.Equal(t, 1, source.calls)
}

func TestLoadQuestionsDoesNotCacheFailuresOrEmptyQuizzes(t *testing.T) {
	cache := newMemoryCache()
	source := &stubSource{err: game.ErrNotFound}
	svc := NewService(source, cache, zerolog.Nop())

	_, err := svc.LoadQuestions(context.Background(), 9)
	assert.ErrorIs(t, err, game.ErrNotFound)
	assert.Empty(t, cache.store)

	source.err = nil
	qs, err := svc.LoadQuestions(context.Background(), 9)
	require.NoError(t, err)
	assert.Empty(t, qs)
	assert.Empty(t, cache.store)
}
