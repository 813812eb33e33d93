package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// messageTTL bounds how long an upload keeps its chat message binding; any
// upload still running after this is stale anyway.
const messageTTL = 48 * time.Hour

// RedisStorage keeps notification message bindings so progress edits survive
// a portal restart.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(addr, password string, db int) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	return &RedisStorage{client: client}, nil
}

func (s *RedisStorage) SaveMessageID(ctx context.Context, uploadID string, messageID int) error {
	key := fmt.Sprintf("upload:msg:%s", uploadID)
	return s.client.Set(ctx, key, messageID, messageTTL).Err()
}

// GetMessageID returns 0 with no error when no binding exists.
func (s *RedisStorage) GetMessageID(ctx context.Context, uploadID string) (int, error) {
	key := fmt.Sprintf("upload:msg:%s", uploadID)
	id, err := s.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

func (s *RedisStorage) DeleteMessageID(ctx context.Context, uploadID string) error {
	key := fmt.Sprintf("upload:msg:%s", uploadID)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
