package leaderboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/game"
)

// ResultSaver persists a finished game.
type ResultSaver interface {
	Save(ctx context.Context, summary game.Summary) (uuid.UUID, error)
}

// HallOfFame folds a finished game into the per-quiz ranking.
type HallOfFame interface {
	RecordGame(ctx context.Context, summary game.Summary) error
}

// Recorder persists finished games off the session goroutine.
type Recorder struct {
	saver   ResultSaver
	fame    HallOfFame
	queue   chan game.Summary
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRecorder creates a results recorder with a bounded queue.
func NewRecorder(saver ResultSaver, fame HallOfFame, buffer int, logger zerolog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	return &Recorder{
		saver:   saver,
		fame:    fame,
		queue:   make(chan game.Summary, buffer),
		timeout: 5 * time.Second,
		logger:  logger.With().Str("component", "leaderboard_recorder").Logger(),
	}
}

// Submit enqueues a summary without blocking. Summaries are dropped when the queue is full.
func (r *Recorder) Submit(summary game.Summary) {
	select {
	case r.queue <- summary:
	default:
		r.logger.Warn().Str("pin", summary.Pin).Msg("results queue full, dropping game summary")
	}
}

// Run blocks until context cancellation, then flushes what is already queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case summary := <-r.queue:
			r.record(ctx, summary)
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	for {
		select {
		case summary := <-r.queue:
			r.record(ctx, summary)
		default:
			return
		}
	}
}

func (r *Recorder) record(ctx context.Context, summary game.Summary) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log := r.logger.With().Str("pin", summary.Pin).Int64("quiz_id", summary.QuizID).Logger()

	if r.saver != nil {
		id, err := r.saver.Save(ctx, summary)
		if err != nil {
			log.Error().Err(err).Msg("failed to persist game result")
		} else {
			log.Info().Str("result_id", id.String()).Int("players", len(summary.Leaderboard)).Msg("game result persisted")
		}
	}

	if r.fame != nil {
		if err := r.fame.RecordGame(ctx, summary); err != nil {
			log.Warn().Err(err).Msg("failed to update hall of fame")
		}
	}
}

var _ game.ResultSink = (*Recorder)(nil)
