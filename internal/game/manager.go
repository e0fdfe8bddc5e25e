package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Manager owns the live sessions of this process, creating each lazily on first join.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	quizzes QuizLoader
	deps    Deps
	opts    SessionOptions
	logger  zerolog.Logger
}

// NewManager creates a session manager.
func NewManager(quizzes QuizLoader, deps Deps, opts SessionOptions) *Manager {
	deps = deps.withDefaults()
	return &Manager{
		sessions: make(map[string]*Session),
		quizzes:  quizzes,
		deps:     deps,
		opts:     opts.withDefaults(),
		logger:   deps.Logger.With().Str("component", "game_manager").Logger(),
	}
}

// Open returns the live session for pin, materializing it from the registry and
// the quiz store if this process has not seen it yet.
func (m *Manager) Open(ctx context.Context, pin string) (*Session, error) {
	if s, ok := m.Get(pin); ok {
		return s, nil
	}

	meta, err := m.deps.Registry.Lookup(ctx, pin)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup session %s: %w", pin, err)
	}

	questions, err := m.quizzes.LoadQuestions(ctx, meta.QuizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz %d: %w", meta.QuizID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[pin]; ok {
		return s, nil
	}

	// Stale claims from a previous process must not block nicknames.
	if err := m.deps.Registry.ClearNicknames(ctx, pin); err != nil {
		m.logger.Warn().Err(err).Str("pin", pin).Msg("clear nicknames failed")
	}

	s := newSession(meta, questions, m.deps, m.opts, m.forget)
	m.sessions[pin] = s
	m.logger.Info().
		Str("pin", pin).
		Int64("quiz_id", meta.QuizID).
		Int("questions", len(questions)).
		Msg("session opened")
	return s, nil
}

// Get returns a live session without touching the registry.
func (m *Manager) Get(pin string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[pin]
	return s, ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.Pin()]; ok && cur == s {
		delete(m.sessions, s.Pin())
	}
}

// Shutdown stops every live session, cancelling their timers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, s := range live {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				s.Stop()
			}(s)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Int("sessions", len(live)).Msg("sessions stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop sessions: %w", ctx.Err())
	}
}
