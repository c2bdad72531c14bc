package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"go.uber.org/zap"
)

// CachedOptionSource memoizes catalog pages. The source contract makes a
// (query, cursor) pair idempotent, so a hit can stand in for a request.
// Failures are never cached and cache errors fall through to the source.
type CachedOptionSource struct {
	next   catalog.OptionSource
	store  PageStore
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewCachedOptionSource wraps next
func NewCachedOptionSource(next catalog.OptionSource, store PageStore, ttl time.Duration, prefix string, logger *zap.Logger) *CachedOptionSource {
	if prefix == "" {
		prefix = "catalog:page:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedOptionSource{next: next, store: store, ttl: ttl, prefix: prefix, logger: logger}
}

type cachedPage struct {
	Options    []catalog.Option `json:"options"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

func (s *CachedOptionSource) key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return s.prefix + hex.EncodeToString(h.Sum(nil))
}

// ListDefault implements catalog.OptionSource
func (s *CachedOptionSource) ListDefault(ctx context.Context, limit int) ([]catalog.Option, error) {
	key := s.key("default", strconv.Itoa(limit))
	if page, ok := s.load(ctx, key); ok {
		return page.Options, nil
	}

	options, err := s.next.ListDefault(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.save(ctx, key, cachedPage{Options: options})
	return options, nil
}

// Search implements catalog.OptionSource
func (s *CachedOptionSource) Search(ctx context.Context, query, cursor string, limit int) (catalog.Page, error) {
	key := s.key("search", query, cursor, strconv.Itoa(limit))
	if page, ok := s.load(ctx, key); ok {
		return catalog.Page{Options: page.Options, NextCursor: page.NextCursor, HasMore: page.HasMore}, nil
	}

	page, err := s.next.Search(ctx, query, cursor, limit)
	if err != nil {
		return catalog.Page{}, err
	}
	s.save(ctx, key, cachedPage{Options: page.Options, NextCursor: page.NextCursor, HasMore: page.HasMore})
	return page, nil
}

func (s *CachedOptionSource) load(ctx context.Context, key string) (cachedPage, bool) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
		return cachedPage{}, false
	}
	if !ok {
		return cachedPage{}, false
	}
	var page cachedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		s.logger.Warn("Discarding undecodable catalog cache entry", zap.String("key", key), zap.Error(err))
		return cachedPage{}, false
	}
	return page, true
}

func (s *CachedOptionSource) save(ctx context.Context, key string, page cachedPage) {
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var _ catalog.OptionSource = (*CachedOptionSource)(nil)
