package question

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/game"
)

// PackCache defines cache behavior (implemented by Redis-backed Cache).
type PackCache interface {
	Get(ctx context.Context, quizID int64) (*Pack, error)
	Set(ctx context.Context, pack Pack) error
}

// Service serves quiz snapshots from the cache, falling back to the content store.
type Service struct {
	source game.QuizLoader
	cache  PackCache
	logger zerolog.Logger
	now    func() time.Time
}

var _ game.QuizLoader = (*Service)(nil)

func NewService(source game.QuizLoader, cache PackCache, logger zerolog.Logger) *Service {
	return &Service{source: source, cache: cache, logger: logger, now: time.Now}
}

// LoadQuestions returns the quiz's questions. Cache failures are logged and never fail the load.
func (s *Service) LoadQuestions(ctx context.Context, quizID int64) ([]game.Question, error) {
	cached, err := s.cache.Get(ctx, quizID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("quiz cache read failed")
	}
	if cached != nil && len(cached.Questions) > 0 {
		return cached.Questions, nil
	}

	questions, err := s.source.LoadQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	if err := s.cache.Set(ctx, Pack{QuizID: quizID, Questions: questions, LoadedAt: s.now().Unix()}); err != nil {
		s.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("quiz cache write failed")
	}
	return questions, nil
}
