package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the status of a mirrored product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product is a row of the local catalog mirror. The mirror backs the
// "database" option source when the remote catalog is not used.
type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	SKU         string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	EAN         string          `gorm:"type:varchar(50);index"`
	Title       string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text"`
	ImageRef    string          `gorm:"type:varchar(500)"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status      ProductStatus   `gorm:"type:varchar(20);not null;default:'active'"`
	SortOrder   int             `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "catalog_products"
}

// IsActive returns true if the product can be offered
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// ToOption converts the row into a finder option
func (p *Product) ToOption() Option {
	return Option{
		ID:          p.ID.String(),
		Title:       p.Title,
		SKU:         p.SKU,
		EAN:         p.EAN,
		ImageRef:    p.ImageRef,
		UnitPrice:   p.UnitPrice.Copy(),
		Description: p.Description,
	}
}
