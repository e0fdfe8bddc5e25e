package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
)

// HostTokenValidator parses host bearer tokens.
type HostTokenValidator interface {
	ValidateHostToken(token string) (*jwt.HostClaims, error)
}

// RequireHost validates the host bearer token and injects its claims into the request context.
func RequireHost(tokens HostTokenValidator, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthorized, "Authentication required")
				return
			}

			claims, err := tokens.ValidateHostToken(token)
			if err != nil {
				logger.Warn().Err(err).Msg("token validation failed")
				httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(jwt.WithHostClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
