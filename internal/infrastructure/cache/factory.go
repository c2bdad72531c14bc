package cache

import (
	"fmt"
	"time"

	"github.com/sazar-neudorff/productmanager/internal/infrastructure/config"
	"go.uber.org/zap"
)

// PageStoreFactory creates page stores based on configuration
type PageStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// PageStoreFactoryOption is a functional option for configuring the factory
type PageStoreFactoryOption func(*PageStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) PageStoreFactoryOption {
	return func(f *PageStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) PageStoreFactoryOption {
	return func(f *PageStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewPageStoreFactory creates a new factory
func NewPageStoreFactory(cfg config.RedisConfig, opts ...PageStoreFactoryOption) *PageStoreFactory {
	f := &PageStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when Redis is enabled and reachable, and
// the in-memory store otherwise (if fallback is allowed)
func (f *PageStoreFactory) CreateStore() (PageStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory catalog page cache")
		return NewInMemoryPageStore(time.Minute), nil
	}

	store, err := NewRedisPageStore(RedisConfig{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("Using Redis catalog page cache", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for catalog cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory catalog page cache",
		zap.Error(err),
	)
	return NewInMemoryPageStore(time.Minute), nil
}
