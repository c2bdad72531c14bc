package ordering

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// SavedDraft is a persisted snapshot of an order form ("save draft").
// Field states are not stored; a restored form starts untouched.
type SavedDraft struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primary_key"`
	OwnerID               string          `gorm:"type:varchar(100);index"`
	ProductID             string          `gorm:"type:varchar(100)"`
	ProductTitle          string          `gorm:"type:varchar(200)"`
	ProductSKU            string          `gorm:"type:varchar(50)"`
	ProductEAN            string          `gorm:"type:varchar(50)"`
	ProductImageRef       string          `gorm:"type:varchar(500)"`
	UnitPrice             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Quantity              int             `gorm:"not null;default:0"`
	DeliveryAddress       AddressDraft    `gorm:"type:jsonb"`
	BillingSameAsDelivery bool            `gorm:"not null"`
	BillingAddress        *AddressDraft   `gorm:"type:jsonb"`
	Notes                 string          `gorm:"type:text"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TableName returns the table name for GORM
func (SavedDraft) TableName() string {
	return "order_drafts"
}

// Snapshot captures the persistable part of a draft under id
func Snapshot(id uuid.UUID, ownerID string, d *OrderDraft) *SavedDraft {
	s := &SavedDraft{
		ID:                    id,
		OwnerID:               ownerID,
		DeliveryAddress:       d.Delivery.Draft,
		BillingSameAsDelivery: d.BillingSameAsDelivery,
		Notes:                 d.Notes,
	}
	if d.LineItem != nil {
		o := d.LineItem.Option
		s.ProductID = o.ID
		s.ProductTitle = o.Title
		s.ProductSKU = o.SKU
		s.ProductEAN = o.EAN
		s.ProductImageRef = o.ImageRef
		s.UnitPrice = o.UnitPrice
		s.Quantity = d.LineItem.Quantity
	}
	if !d.BillingSameAsDelivery {
		billing := d.Billing.Draft
		s.BillingAddress = &billing
	}
	return s
}

// Restore rebuilds an editable draft from the snapshot. Every field state is
// untouched and no postal code inference runs.
func (s *SavedDraft) Restore(d *OrderDraft) {
	d.Delivery = NewAddressFormFrom(s.DeliveryAddress)
	d.BillingSameAsDelivery = s.BillingSameAsDelivery
	if s.BillingAddress != nil {
		d.Billing = NewAddressFormFrom(*s.BillingAddress)
	}
	d.Notes = s.Notes
	if s.ProductID != "" {
		item := NewLineItem(catalog.Option{
			ID:        s.ProductID,
			Title:     s.ProductTitle,
			SKU:       s.ProductSKU,
			EAN:       s.ProductEAN,
			ImageRef:  s.ProductImageRef,
			UnitPrice: s.UnitPrice,
		}).WithQuantity(s.Quantity)
		d.LineItem = &item
	}
}

// DraftRepository persists saved drafts
type DraftRepository interface {
	// Save inserts or replaces a draft
	Save(ctx context.Context, draft *SavedDraft) error
	// FindByID returns shared.ErrNotFound when the draft does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*SavedDraft, error)
	// Delete removes a draft; deleting a missing draft is not an error
	Delete(ctx context.Context, id uuid.UUID) error
}
