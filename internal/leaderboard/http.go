package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/db/repository"
	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
)

type topReader interface {
	Top(ctx context.Context, quizID int64, limit int) ([]Entry, error)
	Stats(ctx context.Context, quizID int64) (games, players int, err error)
}

type resultReader interface {
	Recent(ctx context.Context, quizID int64, limit int32) ([]repository.GameResult, error)
	Entries(ctx context.Context, resultID uuid.UUID) ([]repository.GameResultEntry, error)
}

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc     topReader
	results resultReader
	logger  zerolog.Logger
	now     func() time.Time
}

// NewHTTPHandler constructs a leaderboard HTTP handler. Either source may be nil.
func NewHTTPHandler(svc topReader, results resultReader, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:     svc,
		results: results,
		logger:  logger.With().Str("component", "leaderboard_http").Logger(),
		now:     time.Now,
	}
}

// HandleTop responds with the hall of fame of a quiz.
// Route: GET /v1/quizzes/{quizID}/leaderboard?limit=10
func (h *HTTPHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(mux.Vars(r)["quizID"], 10, 64)
	if err != nil || quizID <= 0 {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "quiz id must be a positive integer")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	ctx := r.Context()
	var (
		top    []Entry
		source = "redis"
	)

	if h.svc != nil {
		if entries, err := h.svc.Top(ctx, quizID, limit); err == nil {
			top = entries
		} else {
			h.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("redis leaderboard fetch failed")
		}
	}

	if len(top) == 0 {
		source = "last_game"
		top, err = h.lastGameFallback(ctx, quizID, limit)
		if err != nil {
			httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeLeaderboardFetchFailed, "Failed to fetch leaderboard")
			return
		}
	}

	payload := map[string]interface{}{
		"quiz_id":     quizID,
		"top":         top,
		"source":      source,
		"retrievedAt": h.now().UTC().Format(time.RFC3339),
	}
	if h.svc != nil {
		if games, players, err := h.svc.Stats(ctx, quizID); err == nil {
			payload["games_played"] = games
			payload["players_recorded"] = players
		}
	}
	writeJSON(w, payload)
}

// lastGameFallback serves the final leaderboard of the most recent stored game.
func (h *HTTPHandler) lastGameFallback(ctx context.Context, quizID int64, limit int) ([]Entry, error) {
	if h.results == nil {
		return []Entry{}, nil
	}
	games, err := h.results.Recent(ctx, quizID, 1)
	if err != nil {
		h.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("result fetch failed")
		return nil, err
	}
	if len(games) == 0 {
		return []Entry{}, nil
	}

	last := games[0]
	rows, err := h.results.Entries(ctx, last.ID)
	if err != nil {
		h.logger.Warn().Err(err).Str("result_id", last.ID.String()).Msg("result entries fetch failed")
		return nil, err
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = Entry{
			Rank:       row.Rank,
			Pin:        last.Pin,
			PlayerID:   row.PlayerID,
			Nickname:   row.Nickname,
			Score:      row.Score,
			FinishedAt: last.FinishedAt,
		}
	}
	return entries, nil
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
