package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gokatarajesh/livequiz/internal/db/repository"
	"github.com/gokatarajesh/livequiz/internal/game"
)

// File is the top-level layout of a fixture file.
type File struct {
	Quizzes []Quiz `yaml:"quizzes"`
}

type Quiz struct {
	Slug        string     `yaml:"slug"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Questions   []Question `yaml:"questions"`
}

type Question struct {
	Type        string   `yaml:"type"`
	Prompt      string   `yaml:"prompt"`
	TimeLimitMs int      `yaml:"time_limit_ms"`
	Points      int      `yaml:"points"`
	Choices     []Choice `yaml:"choices"`
}

type Choice struct {
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

// QuizCreator stores one quiz.
type QuizCreator interface {
	Create(ctx context.Context, params repository.CreateQuizParams) (int64, error)
}

// LoadFile parses and validates a fixture file from disk.
func LoadFile(path string) ([]repository.CreateQuizParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates fixtures.
func Load(r io.Reader) ([]repository.CreateQuizParams, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	seen := make(map[string]bool, len(file.Quizzes))
	out := make([]repository.CreateQuizParams, 0, len(file.Quizzes))
	for i, q := range file.Quizzes {
		if q.Slug == "" || q.Title == "" {
			return nil, fmt.Errorf("quiz %d: slug and title are required", i+1)
		}
		if seen[q.Slug] {
			return nil, fmt.Errorf("quiz %q: duplicate slug", q.Slug)
		}
		seen[q.Slug] = true

		params := repository.CreateQuizParams{Slug: q.Slug, Title: q.Title, Description: q.Description}
		for j, question := range q.Questions {
			if err := validateQuestion(question); err != nil {
				return nil, fmt.Errorf("quiz %q question %d: %w", q.Slug, j+1, err)
			}
			choices := make([]repository.CreateChoiceParams, len(question.Choices))
			for k, c := range question.Choices {
				choices[k] = repository.CreateChoiceParams{Text: c.Text, IsCorrect: c.Correct}
			}
			params.Questions = append(params.Questions, repository.CreateQuestionParams{
				Type:        question.Type,
				Prompt:      question.Prompt,
				TimeLimitMs: question.TimeLimitMs,
				Points:      question.Points,
				Choices:     choices,
			})
		}
		if len(params.Questions) == 0 {
			return nil, fmt.Errorf("quiz %q: no questions", q.Slug)
		}
		out = append(out, params)
	}
	return out, nil
}

func validateQuestion(q Question) error {
	kind, ok := game.ParseKind(q.Type)
	if !ok {
		return fmt.Errorf("unknown type %q", q.Type)
	}
	if q.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if q.TimeLimitMs < 0 || q.Points < 0 {
		return fmt.Errorf("time_limit_ms and points must not be negative")
	}
	if len(q.Choices) == 0 {
		return fmt.Errorf("at least one choice is required")
	}

	correct := 0
	for _, c := range q.Choices {
		if c.Correct {
			correct++
		}
	}
	switch kind {
	case game.KindSingleChoice, game.KindTrueFalse:
		if correct != 1 {
			return fmt.Errorf("exactly one correct choice expected, got %d", correct)
		}
	case game.KindFreeText:
		if correct == 0 {
			return fmt.Errorf("at least one accepted answer expected")
		}
	case game.KindOrdering:
		if len(q.Choices) < 2 {
			return fmt.Errorf("ordering needs at least two items")
		}
	}
	return nil
}

// Apply stores every fixture and returns the quiz ids by slug.
func Apply(ctx context.Context, creator QuizCreator, quizzes []repository.CreateQuizParams) (map[string]int64, error) {
	ids := make(map[string]int64, len(quizzes))
	for _, q := range quizzes {
		id, err := creator.Create(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("seed quiz %q: %w", q.Slug, err)
		}
		ids[q.Slug] = id
	}
	return ids, nil
}
