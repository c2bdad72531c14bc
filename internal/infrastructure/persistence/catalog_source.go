package persistence

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"gorm.io/gorm"
)

// GormCatalogSource serves finder options from the local catalog mirror.
// Results are ordered by (title, id) and paged with an opaque keyset cursor,
// so a cursor stays valid while rows are inserted ahead of it.
type GormCatalogSource struct {
	db *gorm.DB
}

// NewGormCatalogSource creates a new GormCatalogSource
func NewGormCatalogSource(db *gorm.DB) *GormCatalogSource {
	return &GormCatalogSource{db: db}
}

// defaultPageSize applies when a caller passes a non-positive limit
const defaultPageSize = 20

func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return limit
}

type keysetCursor struct {
	Title string    `json:"t"`
	ID    uuid.UUID `json:"i"`
}

func encodeCursor(p catalog.Product) string {
	raw, _ := json.Marshal(keysetCursor{Title: p.Title, ID: p.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (keysetCursor, error) {
	var c keysetCursor
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid cursor: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("invalid cursor: %w", err)
	}
	return c, nil
}

// ListDefault implements catalog.OptionSource
func (s *GormCatalogSource) ListDefault(ctx context.Context, limit int) ([]catalog.Option, error) {
	var rows []catalog.Product
	err := s.db.WithContext(ctx).
		Where("status = ?", catalog.ProductStatusActive).
		Order("sort_order ASC").
		Order("title ASC").
		Limit(pageLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, catalog.Unavailable("list default", err)
	}

	options := make([]catalog.Option, 0, len(rows))
	for i := range rows {
		options = append(options, rows[i].ToOption())
	}
	return options, nil
}

// Search implements catalog.OptionSource. The query matches a title or SKU
// substring (case-insensitive) or an exact EAN.
func (s *GormCatalogSource) Search(ctx context.Context, query, cursor string, limit int) (catalog.Page, error) {
	limit = pageLimit(limit)
	q := strings.TrimSpace(query)
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"

	tx := s.db.WithContext(ctx).
		Where("status = ?", catalog.ProductStatusActive).
		Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(sku) LIKE ? ESCAPE '\\' OR ean = ?)", pattern, pattern, q)

	if cursor != "" {
		after, err := decodeCursor(cursor)
		if err != nil {
			return catalog.Page{}, catalog.Unavailable("search", err)
		}
		tx = tx.Where("(title > ? OR (title = ? AND id > ?))", after.Title, after.Title, after.ID)
	}

	var rows []catalog.Product
	err := tx.Order("title ASC").Order("id ASC").Limit(limit + 1).Find(&rows).Error
	if err != nil {
		return catalog.Page{}, catalog.Unavailable("search", err)
	}

	page := catalog.Page{}
	if len(rows) > limit {
		rows = rows[:limit]
		page.HasMore = true
		page.NextCursor = encodeCursor(rows[len(rows)-1])
	}
	page.Options = make([]catalog.Option, 0, len(rows))
	for i := range rows {
		page.Options = append(page.Options, rows[i].ToOption())
	}
	return page, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
