package game

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
)

// SessionCreator allocates a pin and records the session in the registry.
type SessionCreator interface {
	Create(ctx context.Context, quizID int64, hostID uuid.UUID) (SessionMeta, error)
}

// QuizCatalog checks that a quiz exists and has content.
type QuizCatalog interface {
	Exists(ctx context.Context, quizID int64) (bool, error)
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	QuizID int64 `json:"quiz_id"`
}

// CreateSessionResponse is returned on success.
type CreateSessionResponse struct {
	Pin       string `json:"pin"`
	QuizID    int64  `json:"quiz_id"`
	HostID    string `json:"host_id"`
	CreatedAt string `json:"created_at"`
}

// HTTPHandlers provides REST endpoints for session lifecycle.
type HTTPHandlers struct {
	creator SessionCreator
	quizzes QuizCatalog
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for session endpoints.
func NewHTTPHandlers(creator SessionCreator, quizzes QuizCatalog, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		creator: creator,
		quizzes: quizzes,
		logger:  logger.With().Str("component", "game_http").Logger(),
	}
}

// CreateSession handles POST /v1/sessions
func (h *HTTPHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwt.HostClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.QuizID <= 0 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "quiz_id must be a positive integer", "quiz_id")
		return
	}

	exists, err := h.quizzes.Exists(r.Context(), req.QuizID)
	if err != nil {
		h.logger.Error().Err(err).Int64("quiz_id", req.QuizID).Msg("failed to check quiz")
		httperrors.RespondInternalError(w, "Failed to load quiz")
		return
	}
	if !exists {
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
		return
	}

	meta, err := h.creator.Create(r.Context(), req.QuizID, claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("host_id", claims.UserID.String()).Msg("failed to create session")
		httperrors.RespondError(w, http.StatusServiceUnavailable, httperrors.ErrCodeSessionCreateFail, "Could not allocate a game pin")
		return
	}

	h.logger.Info().
		Str("pin", meta.Pin).
		Int64("quiz_id", meta.QuizID).
		Str("host_id", meta.HostID.String()).
		Msg("session created")

	h.respondJSON(w, http.StatusCreated, CreateSessionResponse{
		Pin:       meta.Pin,
		QuizID:    meta.QuizID,
		HostID:    meta.HostID.String(),
		CreatedAt: meta.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write response")
	}
}
