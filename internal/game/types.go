package game

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// Phase is the authoritative progress of a session.
type Phase string

const (
	PhaseLobby    Phase = ws.PhaseLobby
	PhaseQuestion Phase = ws.PhaseQuestion
	PhaseReveal   Phase = ws.PhaseReveal
	PhaseFinished Phase = ws.PhaseFinished
)

// allowedTransitions is the complete transition table; anything else is a programming error.
var allowedTransitions = map[Phase][]Phase{
	PhaseLobby:    {PhaseQuestion},
	PhaseQuestion: {PhaseReveal},
	PhaseReveal:   {PhaseQuestion, PhaseFinished},
}

func canTransition(from, to Phase) bool {
	for _, p := range allowedTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// QuestionKind tags the answer shape a question expects.
type QuestionKind string

const (
	KindSingleChoice QuestionKind = "single_choice"
	KindTrueFalse    QuestionKind = "true_false"
	KindOrdering     QuestionKind = "ordering"
	KindFreeText     QuestionKind = "free_text"
)

// ParseKind accepts canonical tags and the short storage spellings.
func ParseKind(tag string) (QuestionKind, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "single_choice", "mcq", "":
		return KindSingleChoice, true
	case "true_false", "tf":
		return KindTrueFalse, true
	case "ordering":
		return KindOrdering, true
	case "free_text", "input":
		return KindFreeText, true
	default:
		return "", false
	}
}

// Defaults applied when quiz content leaves a field at zero.
const (
	DefaultTimeLimit = 20 * time.Second
	DefaultPoints    = 1000
)

// Choice is one option of a question. IsCorrect never leaves the server before reveal.
type Choice struct {
	ID        int64
	Text      string
	Position  int
	IsCorrect bool
}

// Question is an immutable snapshot of quiz content taken when the session opens.
type Question struct {
	ID        int64
	Kind      QuestionKind
	Prompt    string
	TimeLimit time.Duration
	Points    int
	Position  int
	Choices   []Choice
}

// CorrectChoiceIDs lists the ids disclosed at reveal. For ordering questions this is the expected sequence.
func (q Question) CorrectChoiceIDs() []int64 {
	if q.Kind == KindOrdering {
		return q.expectedOrder()
	}
	ids := make([]int64, 0, 1)
	for _, c := range q.Choices {
		if c.IsCorrect {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (q Question) expectedOrder() []int64 {
	sorted := make([]Choice, len(q.Choices))
	copy(sorted, q.Choices)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	ids := make([]int64, len(sorted))
	for i, c := range sorted {
		ids[i] = c.ID
	}
	return ids
}

func (q Question) hasChoice(id int64) bool {
	for _, c := range q.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// SessionMeta is what the registry knows about a session before it goes live.
type SessionMeta struct {
	Pin       string    `json:"pin"`
	QuizID    int64     `json:"quiz_id"`
	HostID    uuid.UUID `json:"host_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Player is retained for the lifetime of the session, across reconnects.
type Player struct {
	ID       string
	Nickname string
	Token    string
	JoinedAt time.Time
	// ConnID is uuid.Nil while disconnected.
	ConnID uuid.UUID
}

// Answer is a scored submission.
type Answer struct {
	PlayerID    string
	QuestionID  int64
	Value       ws.AnswerValue
	SubmittedAt time.Time
	LatencyMs   int64
	IsCorrect   bool
	Points      int
}

// Summary describes a finished game for persistence.
type Summary struct {
	Pin         string
	QuizID      int64
	HostID      uuid.UUID
	StartedAt   time.Time
	FinishedAt  time.Time
	Questions   int
	Leaderboard []ws.LeaderboardEntry
}
