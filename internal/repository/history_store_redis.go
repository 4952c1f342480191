package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisHistoryStore struct {
	client *redis.Client
	key    string
}

// NewRedisHistoryStore keeps the history in a single Redis set.
func NewRedisHistoryStore(client *redis.Client, key string) HistoryStore {
	return &redisHistoryStore{client: client, key: key}
}

func (s *redisHistoryStore) Load(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load history set %s: %w", s.key, err)
	}
	if len(ids) == 0 {
		return nil, ErrHistoryNotFound
	}
	return ids, nil
}

func (s *redisHistoryStore) Save(ctx context.Context, _ []string, issued []string) error {
	if len(issued) == 0 {
		return nil
	}
	members := make([]interface{}, len(issued))
	for i, id := range issued {
		members[i] = id
	}
	if err := s.client.SAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("add to history set %s: %w", s.key, err)
	}
	return nil
}
