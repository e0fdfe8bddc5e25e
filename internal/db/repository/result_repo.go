package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/gokatarajesh/livequiz/internal/game"
)

type resultStore interface {
	InsertGameResult(ctx context.Context, result GameResult, entries []GameResultEntry) error
	ListGameResults(ctx context.Context, quizID int64, limit int32) ([]GameResult, error)
	ListGameResultEntries(ctx context.Context, resultID uuid.UUID) ([]GameResultEntry, error)
}

// ResultRepository persists finished games.
type ResultRepository struct {
	store resultStore
	newID func() uuid.UUID
}

func NewResultRepository(store resultStore) *ResultRepository {
	return &ResultRepository{store: store, newID: uuid.New}
}

// Save stores the summary and its final leaderboard, returning the result id.
func (r *ResultRepository) Save(ctx context.Context, summary game.Summary) (uuid.UUID, error) {
	id := r.newID()
	result := GameResult{
		ID:            id,
		Pin:           summary.Pin,
		QuizID:        summary.QuizID,
		HostID:        summary.HostID,
		QuestionCount: summary.Questions,
		StartedAt:     summary.StartedAt,
		FinishedAt:    summary.FinishedAt,
	}

	entries := make([]GameResultEntry, len(summary.Leaderboard))
	for i, e := range summary.Leaderboard {
		entries[i] = GameResultEntry{
			ResultID: id,
			PlayerID: e.PlayerID,
			Nickname: e.Nickname,
			Rank:     e.Rank,
			Score:    e.Score,
		}
	}

	if err := r.store.InsertGameResult(ctx, result, entries); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Recent lists the latest stored games of a quiz.
func (r *ResultRepository) Recent(ctx context.Context, quizID int64, limit int32) ([]GameResult, error) {
	return r.store.ListGameResults(ctx, quizID, limit)
}

// Entries returns the final leaderboard of a stored game.
func (r *ResultRepository) Entries(ctx context.Context, resultID uuid.UUID) ([]GameResultEntry, error) {
	return r.store.ListGameResultEntries(ctx, resultID)
}
