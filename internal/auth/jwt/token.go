package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// HostClaims identify a quiz host. Hosts sign in elsewhere; this service only verifies.
type HostClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	jwt.RegisteredClaims
}

// PlayerClaims bind a reconnection credential to one player of one session.
type PlayerClaims struct {
	Pin      string `json:"pin"`
	PlayerID string `json:"player_id"`
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongSession = errors.New("token issued for another session")
)

// TokenConfig holds JWT signing configuration.
type TokenConfig struct {
	HostSecret   []byte
	PlayerSecret []byte
	HostTTL      time.Duration // default: 12 hours
	PlayerTTL    time.Duration // default: 6 hours
	Issuer       string
}

// Manager handles JWT token generation and validation.
type Manager struct {
	hostSecret   []byte
	playerSecret []byte
	hostTTL      time.Duration
	playerTTL    time.Duration
	issuer       string
	now          func() time.Time
}

// NewManager creates a JWT token manager.
func NewManager(cfg TokenConfig) *Manager {
	if cfg.HostTTL == 0 {
		cfg.HostTTL = 12 * time.Hour
	}
	if cfg.PlayerTTL == 0 {
		cfg.PlayerTTL = 6 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "livequiz"
	}
	if len(cfg.PlayerSecret) == 0 {
		cfg.PlayerSecret = cfg.HostSecret
	}

	return &Manager{
		hostSecret:   cfg.HostSecret,
		playerSecret: cfg.PlayerSecret,
		hostTTL:      cfg.HostTTL,
		playerTTL:    cfg.PlayerTTL,
		issuer:       cfg.Issuer,
		now:          time.Now,
	}
}

// GenerateHostToken creates a host bearer token. Used by tooling and tests.
func (m *Manager) GenerateHostToken(userID uuid.UUID, displayName string) (string, error) {
	now := m.now()
	claims := HostClaims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.hostTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.hostSecret)
}

// ValidateHostToken parses and validates a host token.
func (m *Manager) ValidateHostToken(tokenString string) (*HostClaims, error) {
	claims := &HostClaims{}
	if err := m.parse(tokenString, claims, m.hostSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyHostToken reports whether token is a valid host token for hostID.
func (m *Manager) VerifyHostToken(token string, hostID uuid.UUID) bool {
	if token == "" {
		return false
	}
	claims, err := m.ValidateHostToken(token)
	if err != nil {
		return false
	}
	return claims.UserID == hostID
}

// IssuePlayerToken signs the reconnection credential for a player.
func (m *Manager) IssuePlayerToken(pin, playerID, nickname string) (string, error) {
	now := m.now()
	claims := PlayerClaims{
		Pin:      pin,
		PlayerID: playerID,
		Nickname: nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   playerID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.playerTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.playerSecret)
}

// ResolvePlayerToken returns the player a token was issued to, provided it belongs to pin.
func (m *Manager) ResolvePlayerToken(tokenString, pin string) (string, string, error) {
	claims := &PlayerClaims{}
	if err := m.parse(tokenString, claims, m.playerSecret); err != nil {
		return "", "", err
	}
	if claims.Pin != pin {
		return "", "", ErrWrongSession
	}
	if claims.PlayerID == "" || claims.Nickname == "" {
		return "", "", ErrInvalidToken
	}
	return claims.PlayerID, claims.Nickname, nil
}

func (m *Manager) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

type contextKey struct{}

// WithHostClaims stores verified host claims on ctx.
func WithHostClaims(ctx context.Context, claims *HostClaims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// HostClaimsFromContext returns the claims stored by WithHostClaims.
func HostClaimsFromContext(ctx context.Context) (*HostClaims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*HostClaims)
	return claims, ok && claims != nil
}
