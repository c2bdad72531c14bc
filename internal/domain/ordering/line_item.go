package ordering

import (
	"strconv"
	"strings"

	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared/valueobject"
)

// MinQuantity is the smallest orderable quantity
const MinQuantity = 1

// LineItem is the selected product and its quantity. The option is a copy
// taken at selection time; later catalog changes do not reach it.
type LineItem struct {
	Option   catalog.Option `json:"option"`
	Quantity int            `json:"quantity"`
}

// NewLineItem selects an option with quantity 1
func NewLineItem(opt catalog.Option) LineItem {
	return LineItem{Option: opt.Clone(), Quantity: MinQuantity}
}

// ClampQuantity coerces anything below the minimum up to it
func ClampQuantity(q int) int {
	if q < MinQuantity {
		return MinQuantity
	}
	return q
}

// ParseQuantity reads raw user input. Empty, non-integer and non-positive
// input all yield 1.
func ParseQuantity(raw string) int {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return MinQuantity
	}
	return ClampQuantity(q)
}

// WithQuantity returns a copy with the clamped quantity
func (l LineItem) WithQuantity(q int) LineItem {
	l.Quantity = ClampQuantity(q)
	return l
}

// UnitPrice returns the option price in euros
func (l LineItem) UnitPrice() valueobject.Money {
	return valueobject.NewMoneyEUR(l.Option.UnitPrice)
}

// Subtotal is unit price times quantity rounded half-up to cents
func (l LineItem) Subtotal() valueobject.Money {
	return l.UnitPrice().MultiplyByInt(int64(ClampQuantity(l.Quantity))).RoundToCurrency()
}
