package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/game"
)

// Entry is one performance in a quiz's hall of fame.
type Entry struct {
	Rank       int       `json:"rank"`
	Pin        string    `json:"pin"`
	PlayerID   string    `json:"player_id"`
	Nickname   string    `json:"nickname"`
	Score      int       `json:"score"`
	FinishedAt time.Time `json:"finished_at"`
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN           int
	Retain         int
	EntryTTL       time.Duration
	RedisKeyPrefix string
}

// Service keeps the best results of every quiz in Redis sorted sets.
type Service struct {
	redis    *redis.Client
	logger   zerolog.Logger
	topN     int
	retain   int
	entryTTL time.Duration
	prefix   string
}

// NewService constructs a leaderboard service instance.
func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	retain := opts.Retain
	if retain < topN {
		retain = topN * 2
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}

	return &Service{
		redis:    redis,
		logger:   logger.With().Str("component", "leaderboard").Logger(),
		topN:     topN,
		retain:   retain,
		entryTTL: opts.EntryTTL,
		prefix:   prefix,
	}
}

// RecordGame folds the final leaderboard of a finished game into the quiz's hall of fame.
// Players with zero points are not recorded.
func (s *Service) RecordGame(ctx context.Context, summary game.Summary) error {
	zKey := s.leaderboardKey(summary.QuizID)

	pipe := s.redis.TxPipeline()
	for _, e := range summary.Leaderboard {
		if e.Score <= 0 {
			continue
		}
		member := memberID(summary.Pin, e.PlayerID)
		metaKey := s.metaKey(summary.QuizID, member)

		pipe.ZAdd(ctx, zKey, redis.Z{Score: float64(e.Score), Member: member})
		pipe.HSet(ctx, metaKey, map[string]interface{}{
			"nickname":    e.Nickname,
			"finished_at": summary.FinishedAt.UTC().Format(time.RFC3339),
		})
		if s.entryTTL > 0 {
			pipe.Expire(ctx, metaKey, s.entryTTL)
		}
	}
	pipe.HIncrBy(ctx, s.statsKey(summary.QuizID), "games", 1)
	pipe.HIncrBy(ctx, s.statsKey(summary.QuizID), "players", int64(len(summary.Leaderboard)))
	// Keep only the best results; members below the cut lose their rank but keep meta until TTL.
	pipe.ZRemRangeByRank(ctx, zKey, 0, int64(-s.retain-1))
	if s.entryTTL > 0 {
		pipe.Expire(ctx, zKey, s.entryTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update hall of fame for quiz %d: %w", summary.QuizID, err)
	}
	return nil
}

// Top retrieves the best entries of a quiz.
func (s *Service) Top(ctx context.Context, quizID int64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	zKey := s.leaderboardKey(quizID)
	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		entry, err := s.readMeta(ctx, quizID, member)
		if err != nil {
			s.logger.Warn().Err(err).Str("member", member).Msg("failed to read leaderboard metadata")
			continue
		}
		entry.Rank = i + 1
		entry.Score = int(z.Score)
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stats reports how many games and player results a quiz has accumulated.
func (s *Service) Stats(ctx context.Context, quizID int64) (games, players int, err error) {
	data, err := s.redis.HGetAll(ctx, s.statsKey(quizID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("fetch leaderboard stats: %w", err)
	}
	return parseInt(data["games"]), parseInt(data["players"]), nil
}

func (s *Service) readMeta(ctx context.Context, quizID int64, member string) (Entry, error) {
	pin, playerID := splitMember(member)
	entry := Entry{Pin: pin, PlayerID: playerID}

	data, err := s.redis.HGetAll(ctx, s.metaKey(quizID, member)).Result()
	if err != nil {
		return Entry{}, err
	}
	entry.Nickname = data["nickname"]
	if ts := data["finished_at"]; ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.FinishedAt = t
		}
	}
	return entry, nil
}

func (s *Service) leaderboardKey(quizID int64) string {
	return fmt.Sprintf("%s:quiz:%d", s.prefix, quizID)
}

func (s *Service) metaKey(quizID int64, member string) string {
	return fmt.Sprintf("%s:quiz:%d:meta:%s", s.prefix, quizID, member)
}

func (s *Service) statsKey(quizID int64) string {
	return fmt.Sprintf("%s:quiz:%d:stats", s.prefix, quizID)
}

func memberID(pin, playerID string) string {
	return pin + ":" + playerID
}

func splitMember(member string) (pin, playerID string) {
	pin, playerID, ok := strings.Cut(member, ":")
	if !ok {
		return "", member
	}
	return pin, playerID
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
