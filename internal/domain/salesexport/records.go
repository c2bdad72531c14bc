package salesexport

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the header of an ERP sales order
type Order struct {
	Number      string
	Date        time.Time
	Channel     string
	Country     string
	PostalCode  string
	Marketplace string
	Currency    string
}

// Position is one line of an ERP sales order. Amounts the ERP left out
// are zero.
type Position struct {
	OrderNumber   string
	Date          time.Time
	Channel       string
	Status        string
	ArticleNumber string
	ArticleName   string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	NetValue      decimal.Decimal
	GrossValue    decimal.Decimal
	Currency      string
}

// EffectiveUnitPrice is the stated unit price, or the net value spread over
// the quantity when no price was given.
func (p Position) EffectiveUnitPrice() decimal.Decimal {
	if p.UnitPrice.IsPositive() {
		return p.UnitPrice
	}
	if p.Quantity.IsPositive() {
		return p.NetValue.Div(p.Quantity).Round(2)
	}
	return decimal.Zero
}

// NetAmount is the position's net value, falling back to unit price times
// quantity.
func (p Position) NetAmount() decimal.Decimal {
	if !p.NetValue.IsZero() {
		return p.NetValue
	}
	return p.EffectiveUnitPrice().Mul(p.Quantity)
}

// OrderSource reads sales orders and their positions from the ERP
type OrderSource interface {
	FetchOrders(ctx context.Context, w Window, channels []string) ([]Order, error)
	// FetchPositions returns positions of orders in w; an empty status
	// matches every status.
	FetchPositions(ctx context.Context, w Window, channels []string, status string) ([]Position, error)
}
