package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const roomKeyPrefix = "room:"

type RedisStore struct {
	rdb *redis.Client
}

func OpenRedis(addr string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStore wraps an existing client (used by tests with miniredis).
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, id string) (string, error) {
	code, err := s.rdb.Get(ctx, roomKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *RedisStore) Create(ctx context.Context, id, document string) error {
	ok, err := s.rdb.SetNX(ctx, roomKeyPrefix+id, document, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) Upsert(ctx context.Context, id, document string) error {
	return s.rdb.Set(ctx, roomKeyPrefix+id, document, 0).Err()
}

func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, roomKeyPrefix+id).Result()
	return n > 0, err
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
