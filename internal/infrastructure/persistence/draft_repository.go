package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDraftRepository implements ordering.DraftRepository using GORM
type GormDraftRepository struct {
	db *gorm.DB
}

// NewGormDraftRepository creates a new GormDraftRepository
func NewGormDraftRepository(db *gorm.DB) *GormDraftRepository {
	return &GormDraftRepository{db: db}
}

// Save inserts or overwrites the saved draft
func (r *GormDraftRepository) Save(ctx context.Context, draft *ordering.SavedDraft) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(draft).Error
}

// FindByID finds a saved draft by its ID
func (r *GormDraftRepository) FindByID(ctx context.Context, id uuid.UUID) (*ordering.SavedDraft, error) {
	var draft ordering.SavedDraft
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&draft).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &draft, nil
}

// Delete removes a saved draft. Deleting a missing draft succeeds.
func (r *GormDraftRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&ordering.SavedDraft{}).Error
}
