package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache provides Redis-backed quiz pack caching to offload Postgres when sessions open.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ PackCache = (*Cache)(nil)

func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if prefix == "" {
		prefix = "quiz"
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) key(quizID int64) string {
	return fmt.Sprintf("%s:quizpack:%d", c.prefix, quizID)
}

// Get returns nil, nil on a miss.
func (c *Cache) Get(ctx context.Context, quizID int64) (*Pack, error) {
	data, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

func (c *Cache) Set(ctx context.Context, pack Pack) error {
	data, err := json.Marshal(pack)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(pack.QuizID), data, c.ttl).Err()
}
