package ordering

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/application/finder"
	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
)

// form is one mounted order page: a finder session plus the order draft.
// mu serializes every event of the form; the finder has its own lock for
// the completions it receives in the background.
type form struct {
	mu           sync.Mutex
	id           uuid.UUID
	ownerID      string
	savedDraftID uuid.UUID
	draft        *ordering.OrderDraft
	finder       *finder.Finder
	validation   []ordering.FieldError
	lastSeen     time.Time
}

func (f *form) touch(now time.Time) {
	f.lastSeen = now
}

// snapshot must be called with f.mu held
func (f *form) snapshot() *FormResponse {
	d := f.draft
	resp := &FormResponse{
		ID:                    f.id.String(),
		State:                 string(d.State),
		Rejection:             d.Rejection,
		OrderNumber:           d.OrderNumber,
		Finder:                toFinderResponse(f.finder.State()),
		Delivery:              toAddressResponse(d.Delivery),
		BillingSameAsDelivery: d.BillingSameAsDelivery,
		Notes:                 d.Notes,
		Totals: TotalsResponse{
			Subtotal: toMoneyResponse(d.Subtotal()),
			Shipping: toMoneyResponse(d.Shipping()),
			Total:    toMoneyResponse(d.Total()),
		},
		Validation: f.validation,
	}
	if f.savedDraftID != uuid.Nil {
		resp.SavedDraftID = f.savedDraftID.String()
	}
	if d.LineItem != nil {
		resp.LineItem = &LineItemResponse{
			Product:   toOptionResponse(d.LineItem.Option),
			Quantity:  d.LineItem.Quantity,
			UnitPrice: toMoneyResponse(d.LineItem.UnitPrice()),
			Subtotal:  toMoneyResponse(d.LineItem.Subtotal()),
		}
	}
	if !d.BillingSameAsDelivery {
		billing := toAddressResponse(d.Billing)
		resp.Billing = &billing
	}
	return resp
}
