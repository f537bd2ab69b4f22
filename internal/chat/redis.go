package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"energy-ai-agent/internal/models"

	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "chat:session:"

// RedisStore keeps each session as a capped list, refreshed to ttl on every write.
type RedisStore struct {
	client redis.UniversalClient
	max    int
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, maxMessages int, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, max: maxMessages, ttl: ttl}
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, sessionPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	out := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...models.ChatMessage) (int, error) {
	if len(msgs) == 0 {
		n, err := s.client.LLen(ctx, sessionPrefix+sessionID).Result()
		return int(n), err
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return 0, err
		}
		values = append(values, string(b))
	}

	key := sessionPrefix + sessionID
	var length *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.max > 0 {
			pipe.LTrim(ctx, key, int64(-s.max), -1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		length = pipe.LLen(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("append chat history: %w", err)
	}
	return int(length.Val()), nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionPrefix+sessionID).Err()
}
