package question

import (
	"github.com/gokatarajesh/livequiz/internal/game"
)

// Pack is the cached snapshot of a quiz's questions, in play order.
type Pack struct {
	QuizID    int64           `json:"quiz_id"`
	Questions []game.Question `json:"questions"`
	LoadedAt  int64           `json:"loaded_at"`
}
