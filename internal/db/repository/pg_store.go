package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore runs the repository queries against Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps a pgx pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const listQuestionsSQL = `
SELECT id, quiz_id, position, type, prompt, time_limit_ms, points
FROM questions
WHERE quiz_id = $1
ORDER BY position, id`

const listChoicesSQL = `
SELECT c.id, c.question_id, c.position, c.text, c.is_correct
FROM choices c
JOIN questions q ON q.id = c.question_id
WHERE q.quiz_id = $1
ORDER BY c.question_id, c.position, c.id`

const quizHasQuestionsSQL = `SELECT EXISTS (SELECT 1 FROM questions WHERE quiz_id = $1)`

func (s *PgStore) ListQuestions(ctx context.Context, quizID int64) ([]QuestionRow, error) {
	rows, err := s.pool.Query(ctx, listQuestionsSQL, quizID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[QuestionRow])
}

func (s *PgStore) ListChoices(ctx context.Context, quizID int64) ([]ChoiceRow, error) {
	rows, err := s.pool.Query(ctx, listChoicesSQL, quizID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ChoiceRow])
}

func (s *PgStore) QuizHasQuestions(ctx context.Context, quizID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, quizHasQuestionsSQL, quizID).Scan(&exists)
	return exists, err
}

// CreateQuiz inserts a quiz with its questions and choices in one transaction.
// Positions follow slice order starting at 1.
func (s *PgStore) CreateQuiz(ctx context.Context, arg CreateQuizParams) (int64, error) {
	var quizID int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO quizzes (slug, title, description) VALUES ($1, $2, $3)
			 ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description
			 RETURNING id`,
			arg.Slug, arg.Title, arg.Description,
		).Scan(&quizID)
		if err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id = $1`, quizID); err != nil {
			return fmt.Errorf("reset questions: %w", err)
		}

		for i, q := range arg.Questions {
			var questionID int64
			err := tx.QueryRow(ctx,
				`INSERT INTO questions (quiz_id, position, type, prompt, time_limit_ms, points)
				 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
				quizID, i+1, q.Type, q.Prompt, q.TimeLimitMs, q.Points,
			).Scan(&questionID)
			if err != nil {
				return fmt.Errorf("insert question %d: %w", i+1, err)
			}

			batch := &pgx.Batch{}
			for j, c := range q.Choices {
				batch.Queue(
					`INSERT INTO choices (question_id, position, text, is_correct) VALUES ($1, $2, $3, $4)`,
					questionID, j+1, c.Text, c.IsCorrect,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert choices for question %d: %w", i+1, err)
			}
		}
		return nil
	})
	return quizID, err
}

// InsertGameResult stores a finished game and its leaderboard atomically.
func (s *PgStore) InsertGameResult(ctx context.Context, result GameResult, entries []GameResultEntry) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO game_results (id, pin, quiz_id, host_id, question_count, started_at, finished_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			result.ID, result.Pin, result.QuizID, result.HostID, result.QuestionCount, result.StartedAt, result.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert game result: %w", err)
		}

		rows := make([][]any, len(entries))
		for i, e := range entries {
			rows[i] = []any{e.ResultID, e.PlayerID, e.Nickname, e.Rank, e.Score}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"game_result_entries"},
			[]string{"result_id", "player_id", "nickname", "rank", "score"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("insert game result entries: %w", err)
		}
		return nil
	})
}

// ListGameResults returns the most recent results of a quiz.
func (s *PgStore) ListGameResults(ctx context.Context, quizID int64, limit int32) ([]GameResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, pin, quiz_id, host_id, question_count, started_at, finished_at
		 FROM game_results WHERE quiz_id = $1 ORDER BY finished_at DESC LIMIT $2`,
		quizID, limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[GameResult])
}

// ListGameResultEntries returns the leaderboard of one stored game ordered by rank.
func (s *PgStore) ListGameResultEntries(ctx context.Context, resultID uuid.UUID) ([]GameResultEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT result_id, player_id, nickname, rank, score
		 FROM game_result_entries WHERE result_id = $1 ORDER BY rank`,
		resultID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[GameResultEntry])
}
