package ordering

import (
	"github.com/sazar-neudorff/productmanager/internal/application/finder"
	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared/valueobject"
)

// MoneyResponse is a price in API responses
type MoneyResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

// OptionResponse is a catalog option in API responses
type OptionResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	SKU         string        `json:"sku"`
	EAN         string        `json:"ean"`
	ImageRef    string        `json:"image_ref,omitempty"`
	UnitPrice   MoneyResponse `json:"unit_price"`
	Description string        `json:"description,omitempty"`
}

// FinderResponse is the visible finder state
type FinderResponse struct {
	Status      finder.Status    `json:"status"`
	Query       string           `json:"query"`
	Options     []OptionResponse `json:"options"`
	HasMore     bool             `json:"has_more"`
	Seeded      bool             `json:"seeded"`
	Placeholder string           `json:"placeholder,omitempty"`
	Error       string           `json:"error,omitempty"`
	CanRetry    bool             `json:"can_retry"`
}

// LineItemResponse is the selected product with quantity and subtotal
type LineItemResponse struct {
	Product   OptionResponse `json:"product"`
	Quantity  int            `json:"quantity"`
	UnitPrice MoneyResponse  `json:"unit_price"`
	Subtotal  MoneyResponse  `json:"subtotal"`
}

// AddressResponse holds address values and per-field validation state
type AddressResponse struct {
	Values ordering.AddressDraft                  `json:"values"`
	Fields map[ordering.Field]ordering.FieldState `json:"fields"`
}

// TotalsResponse holds the order totals
type TotalsResponse struct {
	Subtotal MoneyResponse `json:"subtotal"`
	Shipping MoneyResponse `json:"shipping"`
	Total    MoneyResponse `json:"total"`
}

// FormResponse is a full snapshot of an order form session
type FormResponse struct {
	ID                    string                `json:"id"`
	State                 string                `json:"state"`
	Rejection             string                `json:"rejection,omitempty"`
	OrderNumber           string                `json:"order_number,omitempty"`
	SavedDraftID          string                `json:"saved_draft_id,omitempty"`
	Finder                FinderResponse        `json:"finder"`
	LineItem              *LineItemResponse     `json:"line_item,omitempty"`
	Delivery              AddressResponse       `json:"delivery"`
	BillingSameAsDelivery bool                  `json:"billing_same_as_delivery"`
	Billing               *AddressResponse      `json:"billing,omitempty"`
	Notes                 string                `json:"notes,omitempty"`
	Totals                TotalsResponse        `json:"totals"`
	Validation            []ordering.FieldError `json:"validation,omitempty"`
}

// FieldCommitResponse answers a single field commit
type FieldCommitResponse struct {
	Field   ordering.Field      `json:"field"`
	State   ordering.FieldState `json:"state"`
	Country ordering.Country    `json:"country"`
	Form    *FormResponse       `json:"form"`
}

// SavedDraftResponse answers a save-draft request
type SavedDraftResponse struct {
	DraftID string `json:"draft_id"`
}

func toMoneyResponse(m valueobject.Money) MoneyResponse {
	return MoneyResponse{
		Amount:   m.StringFixed(valueobject.CurrencyPlaces),
		Currency: string(m.Currency()),
		Display:  m.Display(),
	}
}

func toOptionResponse(o catalog.Option) OptionResponse {
	return OptionResponse{
		ID:          o.ID,
		Title:       o.Title,
		SKU:         o.SKU,
		EAN:         o.EAN,
		ImageRef:    o.ImageRef,
		UnitPrice:   toMoneyResponse(valueobject.NewMoneyEUR(o.UnitPrice)),
		Description: o.Description,
	}
}

func toFinderResponse(s finder.State) FinderResponse {
	options := make([]OptionResponse, 0, len(s.Options))
	for _, o := range s.Options {
		options = append(options, toOptionResponse(o))
	}
	return FinderResponse{
		Status:      s.Status,
		Query:       s.Query,
		Options:     options,
		HasMore:     s.HasMore,
		Seeded:      s.Seeded,
		Placeholder: s.Placeholder(),
		Error:       s.Error,
		CanRetry:    s.CanRetry(),
	}
}

func toAddressResponse(f *ordering.AddressForm) AddressResponse {
	fields := make(map[ordering.Field]ordering.FieldState, len(ordering.AllFields))
	for _, field := range ordering.AllFields {
		fields[field] = f.State(field)
	}
	return AddressResponse{Values: f.Draft, Fields: fields}
}
