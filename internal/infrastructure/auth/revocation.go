package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList answers whether a token was revoked before it expired.
// The identity provider writes the entries; this service only reads them.
type RevocationList interface {
	// IsRevoked reports whether the token with this JTI was revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// IsUserInvalidated reports whether every token of userID issued at or
	// before issuedAt was invalidated (forced logout)
	IsUserInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// RedisRevocationList reads the portal's token blacklist keys:
// <prefix>jti:<jti> and <prefix>user:<userID> holding a unix timestamp.
type RedisRevocationList struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRevocationList creates a list reading keys under prefix
func NewRedisRevocationList(client redis.UniversalClient, prefix string) *RedisRevocationList {
	if prefix == "" {
		prefix = "token:blacklist:"
	}
	return &RedisRevocationList{client: client, keyPrefix: prefix}
}

func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.keyPrefix+"jti:"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRevocationList) IsUserInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := r.client.Get(ctx, r.keyPrefix+"user:"+userID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user token invalidation: %w", err)
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse invalidation timestamp: %w", err)
	}
	return issuedAt.Unix() <= ts, nil
}

// InMemoryRevocationList is a process-local RevocationList for development
// and tests
type InMemoryRevocationList struct {
	mu    sync.RWMutex
	jtis  map[string]time.Time // jti -> entry expiry
	users map[string]time.Time
	now   func() time.Time
}

// NewInMemoryRevocationList creates an empty list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		jtis:  make(map[string]time.Time),
		users: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Revoke adds jti for ttl
func (l *InMemoryRevocationList) Revoke(jti string, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jtis[jti] = l.now().Add(ttl)
}

// InvalidateUser rejects every token of userID issued up to now
func (l *InMemoryRevocationList) InvalidateUser(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[userID] = l.now()
}

func (l *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	exp, ok := l.jtis[jti]
	return ok && l.now().Before(exp), nil
}

func (l *InMemoryRevocationList) IsUserInvalidated(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.users[userID]
	return ok && !issuedAt.After(at), nil
}

var (
	_ RevocationList = (*RedisRevocationList)(nil)
	_ RevocationList = (*InMemoryRevocationList)(nil)
)
