package scoring

import (
	"math"

	"github.com/gokatarajesh/livequiz/internal/game"
)

// ScoringConfig holds configurable scoring constants.
type ScoringConfig struct {
	// SpeedWeight is the share of a question's points that decays with latency.
	// 0.5 means an answer on the buzzer still earns half the points.
	SpeedWeight float64
	// RoundTo snaps awards to a multiple, e.g. 10. Zero or one disables rounding.
	RoundTo int
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		SpeedWeight: 0.5,
		RoundTo:     1,
	}
}

// Engine computes points server-side. It satisfies game.Scorer.
type Engine struct {
	config ScoringConfig
}

var _ game.Scorer = (*Engine)(nil)

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config ScoringConfig) *Engine {
	if config.SpeedWeight < 0 {
		config.SpeedWeight = 0
	}
	if config.SpeedWeight > 1 {
		config.SpeedWeight = 1
	}
	return &Engine{config: config}
}

// Compute awards points for a single answer.
// Formula: points * (1 - speed_weight * latency/time_limit), zero when incorrect.
func (e *Engine) Compute(answer game.Answer, question game.Question, latencyMs int64) int {
	if !answer.IsCorrect || question.Points <= 0 {
		return 0
	}

	limitMs := question.TimeLimit.Milliseconds()
	ratio := 0.0
	if limitMs > 0 {
		ratio = float64(latencyMs) / float64(limitMs)
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
	}

	score := float64(question.Points) * (1 - e.config.SpeedWeight*ratio)
	points := int(math.Round(score))
	if step := e.config.RoundTo; step > 1 {
		points = int(math.Round(float64(points)/float64(step))) * step
	}

	if points < 0 {
		return 0
	}
	if points > question.Points {
		return question.Points
	}
	return points
}
