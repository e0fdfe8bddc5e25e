package repository

import (
	"time"

	"github.com/google/uuid"
)

// QuestionRow mirrors a questions row.
type QuestionRow struct {
	ID          int64  `db:"id"`
	QuizID      int64  `db:"quiz_id"`
	Position    int    `db:"position"`
	Type        string `db:"type"`
	Prompt      string `db:"prompt"`
	TimeLimitMs int    `db:"time_limit_ms"`
	Points      int    `db:"points"`
}

// ChoiceRow mirrors a choices row.
type ChoiceRow struct {
	ID         int64  `db:"id"`
	QuestionID int64  `db:"question_id"`
	Position   int    `db:"position"`
	Text       string `db:"text"`
	IsCorrect  bool   `db:"is_correct"`
}

// CreateQuizParams describes a quiz and its content for insertion.
type CreateQuizParams struct {
	Slug        string
	Title       string
	Description string
	Questions   []CreateQuestionParams
}

type CreateQuestionParams struct {
	Type        string
	Prompt      string
	TimeLimitMs int
	Points      int
	Choices     []CreateChoiceParams
}

type CreateChoiceParams struct {
	Text      string
	IsCorrect bool
}

// GameResult mirrors a game_results row.
type GameResult struct {
	ID            uuid.UUID `db:"id"`
	Pin           string    `db:"pin"`
	QuizID        int64     `db:"quiz_id"`
	HostID        uuid.UUID `db:"host_id"`
	QuestionCount int       `db:"question_count"`
	StartedAt     time.Time `db:"started_at"`
	FinishedAt    time.Time `db:"finished_at"`
}

// GameResultEntry mirrors a game_result_entries row.
type GameResultEntry struct {
	ResultID uuid.UUID `db:"result_id"`
	PlayerID string    `db:"player_id"`
	Nickname string    `db:"nickname"`
	Rank     int       `db:"rank"`
	Score    int       `db:"score"`
}
