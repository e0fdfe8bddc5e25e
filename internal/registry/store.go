package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/game"
	"github.com/gokatarajesh/livequiz/internal/presence"
)

// ErrPinExhausted is returned when no free pin was found within the attempt budget.
var ErrPinExhausted = errors.New("no free pin available")

// Options configures the registry.
type Options struct {
	PinLength   int
	TTL         time.Duration
	MaxAttempts int
	KeyPrefix   string
}

// Store keeps session metadata and nickname claims in Redis so pins survive process restarts.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
	opts   Options
	clock  func() time.Time
	intN   func(n int) int
}

// NewStore creates a redis-backed session registry.
func NewStore(client *redis.Client, logger zerolog.Logger, opts Options) *Store {
	if opts.PinLength <= 0 {
		opts.PinLength = 6
	}
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "quiz"
	}
	return &Store{
		redis:  client,
		logger: logger.With().Str("component", "registry").Logger(),
		opts:   opts,
		clock:  time.Now,
		intN:   rand.IntN,
	}
}

// Create allocates a fresh pin for quizID owned by hostID. SetNX makes the allocation atomic.
func (s *Store) Create(ctx context.Context, quizID int64, hostID uuid.UUID) (game.SessionMeta, error) {
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		meta := game.SessionMeta{
			Pin:       s.newPin(),
			QuizID:    quizID,
			HostID:    hostID,
			CreatedAt: s.clock().UTC(),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return game.SessionMeta{}, fmt.Errorf("marshal session meta: %w", err)
		}

		acquired, err := s.redis.SetNX(ctx, s.sessionKey(meta.Pin), data, s.opts.TTL).Result()
		if err != nil {
			return game.SessionMeta{}, fmt.Errorf("reserve pin: %w", err)
		}
		if acquired {
			return meta, nil
		}
		s.logger.Debug().Str("pin", meta.Pin).Int("attempt", attempt).Msg("pin collision")
	}
	return game.SessionMeta{}, ErrPinExhausted
}

// Lookup resolves pin, returning game.ErrNotFound for unknown or expired pins.
func (s *Store) Lookup(ctx context.Context, pin string) (game.SessionMeta, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(pin)).Bytes()
	if err == redis.Nil {
		return game.SessionMeta{}, game.ErrNotFound
	}
	if err != nil {
		return game.SessionMeta{}, fmt.Errorf("get session: %w", err)
	}

	var meta game.SessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return game.SessionMeta{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return meta, nil
}

// NicknameAvailable reports whether no active player of pin holds nickname.
func (s *Store) NicknameAvailable(ctx context.Context, pin, nickname string) (bool, error) {
	taken, err := s.redis.SIsMember(ctx, s.nicknamesKey(pin), presence.NormalizeNickname(nickname)).Result()
	if err != nil {
		return false, fmt.Errorf("check nickname: %w", err)
	}
	return !taken, nil
}

// ClaimNickname marks nickname as held by an active player.
func (s *Store) ClaimNickname(ctx context.Context, pin, nickname string) error {
	key := s.nicknamesKey(pin)
	pipe := s.redis.TxPipeline()
	pipe.SAdd(ctx, key, presence.NormalizeNickname(nickname))
	pipe.Expire(ctx, key, s.opts.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("claim nickname: %w", err)
	}
	return nil
}

// ReleaseNickname frees nickname for other players.
func (s *Store) ReleaseNickname(ctx context.Context, pin, nickname string) error {
	return s.redis.SRem(ctx, s.nicknamesKey(pin), presence.NormalizeNickname(nickname)).Err()
}

// ClearNicknames drops every claim of pin.
func (s *Store) ClearNicknames(ctx context.Context, pin string) error {
	return s.redis.Del(ctx, s.nicknamesKey(pin)).Err()
}

// Release removes pin and its claims, making the pin reusable.
func (s *Store) Release(ctx context.Context, pin string) error {
	if err := s.redis.Del(ctx, s.sessionKey(pin), s.nicknamesKey(pin)).Err(); err != nil {
		return fmt.Errorf("release session %s: %w", pin, err)
	}
	return nil
}

func (s *Store) newPin() string {
	var b strings.Builder
	for i := 0; i < s.opts.PinLength; i++ {
		b.WriteByte(byte('0' + s.intN(10)))
	}
	return b.String()
}

func (s *Store) sessionKey(pin string) string {
	return fmt.Sprintf("%s:session:%s", s.opts.KeyPrefix, pin)
}

func (s *Store) nicknamesKey(pin string) string {
	return fmt.Sprintf("%s:session:%s:nicknames", s.opts.KeyPrefix, pin)
}

var (
	_ game.Registry       = (*Store)(nil)
	_ game.SessionCreator = (*Store)(nil)
)
