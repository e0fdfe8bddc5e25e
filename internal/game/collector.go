package game

import (
	"strings"
	"time"

	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// Scorer awards points for one answer. Implementations must be deterministic in
// (answer.IsCorrect, latencyMs); results outside [0, question.Points] are clamped.
type Scorer interface {
	Compute(answer Answer, question Question, latencyMs int64) int
}

// Collector holds the answers of one question window.
type Collector struct {
	question  Question
	index     int
	startedAt time.Time
	endsAt    time.Time
	answers   map[string]Answer
	order     []string
	closed    bool
}

// NewCollector opens a window for q starting at startedAt.
func NewCollector(q Question, index int, startedAt time.Time) *Collector {
	return &Collector{
		question:  q,
		index:     index,
		startedAt: startedAt,
		endsAt:    startedAt.Add(q.TimeLimit),
		answers:   make(map[string]Answer),
	}
}

func (c *Collector) Question() Question { return c.question }
func (c *Collector) Index() int { return c.index }
func (c *Collector) StartedAt() time.Time { return c.startedAt }
func (c *Collector) EndsAt() time.Time { return c.endsAt }
func (c *Collector) Closed() bool { return c.closed }

// Submit records playerID's answer at time at. The window closes at endsAt regardless of
// whether the reveal has been broadcast yet.
func (c *Collector) Submit(playerID string, questionID int64, value ws.AnswerValue, at time.Time, scorer Scorer) (Answer, error) {
	if c.closed || questionID != c.question.ID || !at.Before(c.endsAt) {
		return Answer{}, ErrWindowClosed
	}
	if _, dup := c.answers[playerID]; dup {
		return Answer{}, ErrDuplicateAnswer
	}

	correct, err := Evaluate(c.question, value)
	if err != nil {
		return Answer{}, err
	}

	latency := clampLatency(at.Sub(c.startedAt), c.question.TimeLimit)
	answer := Answer{
		PlayerID:    playerID,
		QuestionID:  c.question.ID,
		Value:       value,
		SubmittedAt: at,
		LatencyMs:   latency,
		IsCorrect:   correct,
	}
	answer.Points = clampPoints(scorer.Compute(answer, c.question, latency), c.question.Points)

	c.answers[playerID] = answer
	c.order = append(c.order, playerID)
	return answer, nil
}

// Close ends the window and returns the answers in submission order. Further submissions fail.
func (c *Collector) Close() []Answer {
	c.closed = true
	out := make([]Answer, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.answers[id])
	}
	return out
}

// Answered reports whether playerID has an answer in this window.
func (c *Collector) Answered(playerID string) bool {
	_, ok := c.answers[playerID]
	return ok
}

// Evaluate checks value against q. Shape mismatches yield ErrInvalidPayload.
func Evaluate(q Question, value ws.AnswerValue) (bool, error) {
	switch q.Kind {
	case KindSingleChoice, KindTrueFalse:
		if value.ChoiceID == nil {
			return false, ErrInvalidPayload.With("choice_id is required")
		}
		if !q.hasChoice(*value.ChoiceID) {
			return false, ErrInvalidPayload.With("unknown choice %d", *value.ChoiceID)
		}
		for _, c := range q.Choices {
			if c.ID == *value.ChoiceID {
				return c.IsCorrect, nil
			}
		}
		return false, nil

	case KindOrdering:
		if len(value.Ordering) == 0 {
			return false, ErrInvalidPayload.With("ordering is required")
		}
		for _, id := range value.Ordering {
			if !q.hasChoice(id) {
				return false, ErrInvalidPayload.With("unknown choice %d", id)
			}
		}
		expected := q.expectedOrder()
		if len(expected) != len(value.Ordering) {
			return false, nil
		}
		for i := range expected {
			if expected[i] != value.Ordering[i] {
				return false, nil
			}
		}
		return true, nil

	case KindFreeText:
		if value.Text == nil {
			return false, ErrInvalidPayload.With("text is required")
		}
		given := normalizeText(*value.Text)
		if given == "" {
			return false, nil
		}
		for _, c := range q.Choices {
			if c.IsCorrect && normalizeText(c.Text) == given {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, ErrInvalidPayload.With("unsupported question type %q", q.Kind)
	}
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clampLatency(elapsed, limit time.Duration) int64 {
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > limit {
		elapsed = limit
	}
	return elapsed.Milliseconds()
}

func clampPoints(points, limit int) int {
	if points < 0 {
		return 0
	}
	if points > limit {
		return limit
	}
	return points
}
