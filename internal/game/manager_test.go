package game

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	questions []Question
	err       error
	calls     atomic.Int32
}

func (l *stubLoader) LoadQuestions(context.Context, int64) ([]Question, error) {
	l.calls.Add(1)
	return l.questions, l.err
}

func newTestManager(registry *memRegistry, loader QuizLoader, clock *clockwork.FakeClock) *Manager {
	return NewManager(loader, Deps{
		Broadcaster: newRecordingBus(),
		Registry:    registry,
		Scorer:      linearScorer{},
		Clock:       clock,
		Logger:      zerolog.Nop(),
	}, SessionOptions{Retention: time.Minute})
}

func TestManager_OpenIsLazyAndCached(t *testing.T) {
	registry := newMemRegistry(SessionMeta{Pin: testPin, QuizID: 3, HostID: uuid.New()})
	loader := &stubLoader{questions: []Question{choiceQuestion(1)}}
	m := newTestManager(registry, loader, clockwork.NewFakeClockAt(t0))
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	assert.Zero(t, m.Count())

	first, err := m.Open(context.Background(), testPin)
	require.NoError(t, err)
	second, err := m.Open(context.Background(), testPin)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, int64(3), first.Meta().QuizID)
}

func TestManager_UnknownPin(t *testing.T) {
	m := newTestManager(newMemRegistry(), &stubLoader{}, clockwork.NewFakeClockAt(t0))

	_, err := m.Open(context.Background(), "000000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.Count())
}

func TestManager_LoadFailure(t *testing.T) {
	registry := newMemRegistry(SessionMeta{Pin: testPin, QuizID: 3})
	m := newTestManager(registry, &stubLoader{err: errors.New("db down")}, clockwork.NewFakeClockAt(t0))

	_, err := m.Open(context.Background(), testPin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load quiz 3")
	_, ok := m.Get(testPin)
	assert.False(t, ok)
}

func TestManager_ForgetsEvictedSessions(t *testing.T) {
	registry := newMemRegistry(SessionMeta{Pin: testPin, QuizID: 3})
	m := newTestManager(registry, &stubLoader{}, clockwork.NewFakeClockAt(t0))

	s, err := m.Open(context.Background(), testPin)
	require.NoError(t, err)

	s.Stop()
	require.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_Shutdown(t *testing.T) {
	registry := newMemRegistry(
		SessionMeta{Pin: "111111", QuizID: 1},
		SessionMeta{Pin: "222222", QuizID: 2},
	)
	m := newTestManager(registry, &stubLoader{}, clockwork.NewFakeClockAt(t0))

	a, err := m.Open(context.Background(), "111111")
	require.NoError(t, err)
	b, err := m.Open(context.Background(), "222222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	for _, s := range []*Session{a, b} {
		select {
		case <-s.Done():
		default:
			t.Fatalf("session %s still running", s.Pin())
		}
	}
	assert.Zero(t, m.Count())
	assert.Empty(t, registry.released, "shutdown keeps registry state for the next process")
}
