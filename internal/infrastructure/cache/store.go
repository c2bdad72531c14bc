package cache

import (
	"context"
	"time"
)

// PageStore is a byte-level key/value cache with per-entry TTL
type PageStore interface {
	// Get returns the value and true, or false on a miss
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}
