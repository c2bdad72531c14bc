package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Option is one selectable catalog entry as the finder shows it.
// Options are immutable once fetched; callers that keep one beyond the
// finder session must take a copy via Clone.
type Option struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	SKU         string          `json:"sku"`
	EAN         string          `json:"ean"`
	ImageRef    string          `json:"image_ref,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Description string          `json:"description,omitempty"`
}

// Clone returns a deep copy of the option
func (o Option) Clone() Option {
	// decimal.Decimal holds a *big.Int; Copy detaches it.
	o.UnitPrice = o.UnitPrice.Copy()
	return o
}

// Validate reports whether a normalized record is usable
func (o Option) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return errOptionField("id")
	}
	if strings.TrimSpace(o.Title) == "" {
		return errOptionField("title")
	}
	if o.UnitPrice.IsNegative() {
		return errOptionField("unit_price")
	}
	return nil
}

// Page is one slice of search results
type Page struct {
	Options []Option
	// NextCursor is opaque; empty means there is no further page
	NextCursor string
	HasMore    bool
}

// OptionSource is the boundary to the product catalog.
//
// Implementations must be idempotent for identical (query, cursor) pairs and
// report every transport or decoding failure as an error wrapping
// shared.ErrSourceUnavailable.
type OptionSource interface {
	// ListDefault returns the seed listing shown before the user types
	ListDefault(ctx context.Context, limit int) ([]Option, error)
	// Search returns one page for query starting at cursor ("" = first page)
	Search(ctx context.Context, query, cursor string, limit int) (Page, error)
}
