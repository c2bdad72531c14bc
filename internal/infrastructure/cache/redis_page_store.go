package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPageStore implements PageStore using Redis, so cached catalog pages
// are shared between instances
type RedisPageStore struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisPageStore connects to Redis and verifies the connection
func NewRedisPageStore(cfg RedisConfig) (*RedisPageStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPageStore{client: client}, nil
}

// NewRedisPageStoreWithClient wraps an existing client
func NewRedisPageStoreWithClient(client *redis.Client) *RedisPageStore {
	return &RedisPageStore{client: client}
}

// Get implements PageStore
func (s *RedisPageStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set implements PageStore
func (s *RedisPageStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisPageStore) Close() error {
	return s.client.Close()
}

var _ PageStore = (*RedisPageStore)(nil)
