package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gokatarajesh/livequiz/internal/game"
)

type quizStore interface {
	ListQuestions(ctx context.Context, quizID int64) ([]QuestionRow, error)
	ListChoices(ctx context.Context, quizID int64) ([]ChoiceRow, error)
	QuizHasQuestions(ctx context.Context, quizID int64) (bool, error)
	CreateQuiz(ctx context.Context, arg CreateQuizParams) (int64, error)
}

// QuizRepository reads quiz content and turns it into immutable game snapshots.
type QuizRepository struct {
	store quizStore
}

func NewQuizRepository(store quizStore) *QuizRepository {
	return &QuizRepository{store: store}
}

// LoadQuestions returns the questions of quizID ordered by position, with defaults applied.
func (r *QuizRepository) LoadQuestions(ctx context.Context, quizID int64) ([]game.Question, error) {
	rows, err := r.store.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	choiceRows, err := r.store.ListChoices(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}

	byQuestion := make(map[int64][]game.Choice, len(rows))
	for _, c := range choiceRows {
		byQuestion[c.QuestionID] = append(byQuestion[c.QuestionID], game.Choice{
			ID:        c.ID,
			Text:      c.Text,
			Position:  c.Position,
			IsCorrect: c.IsCorrect,
		})
	}

	questions := make([]game.Question, 0, len(rows))
	for _, row := range rows {
		kind, ok := game.ParseKind(row.Type)
		if !ok {
			return nil, fmt.Errorf("question %d: unknown type %q", row.ID, row.Type)
		}

		timeLimit := time.Duration(row.TimeLimitMs) * time.Millisecond
		if timeLimit <= 0 {
			timeLimit = game.DefaultTimeLimit
		}
		points := row.Points
		if points <= 0 {
			points = game.DefaultPoints
		}

		questions = append(questions, game.Question{
			ID:        row.ID,
			Kind:      kind,
			Prompt:    row.Prompt,
			TimeLimit: timeLimit,
			Points:    points,
			Position:  row.Position,
			Choices:   byQuestion[row.ID],
		})
	}
	return questions, nil
}

// Exists reports whether quizID has playable content.
func (r *QuizRepository) Exists(ctx context.Context, quizID int64) (bool, error) {
	return r.store.QuizHasQuestions(ctx, quizID)
}

// Create stores a quiz, replacing the content of an existing quiz with the same slug.
func (r *QuizRepository) Create(ctx context.Context, params CreateQuizParams) (int64, error) {
	return r.store.CreateQuiz(ctx, params)
}

var (
	_ game.QuizLoader  = (*QuizRepository)(nil)
	_ game.QuizCatalog = (*QuizRepository)(nil)
)
