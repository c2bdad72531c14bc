package ordering

import (
	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
)

const (
	// EventTypeOrderSubmitted is published after the recipient accepted an order
	EventTypeOrderSubmitted = "OrderSubmitted"
	// EventTypeOrderRejected is published after the recipient declined an order
	EventTypeOrderRejected = "OrderRejected"

	AggregateTypeOrderDraft = "OrderDraft"
)

// OrderSubmittedEvent is raised once per accepted draft
type OrderSubmittedEvent struct {
	shared.BaseDomainEvent
	DraftID      uuid.UUID `json:"draft_id"`
	SavedDraftID uuid.UUID `json:"saved_draft_id,omitempty"`
	OrderNumber  string    `json:"order_number"`
	ProductID    string    `json:"product_id"`
	Quantity     int       `json:"quantity"`
	Total        string    `json:"total"`
}

// NewOrderSubmittedEvent builds the event from a submitted draft
func NewOrderSubmittedEvent(d *OrderDraft, savedDraftID uuid.UUID) *OrderSubmittedEvent {
	e := &OrderSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderSubmitted, AggregateTypeOrderDraft, d.ID),
		DraftID:         d.ID,
		SavedDraftID:    savedDraftID,
		OrderNumber:     d.OrderNumber,
		Total:           d.Total().StringFixed(2),
	}
	if d.LineItem != nil {
		e.ProductID = d.LineItem.Option.ID
		e.Quantity = d.LineItem.Quantity
	}
	return e
}

// OrderRejectedEvent is raised for every declined submit attempt
type OrderRejectedEvent struct {
	shared.BaseDomainEvent
	DraftID uuid.UUID `json:"draft_id"`
	Reason  string    `json:"reason"`
}

// NewOrderRejectedEvent builds the event from a rejected draft
func NewOrderRejectedEvent(d *OrderDraft) *OrderRejectedEvent {
	return &OrderRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderRejected, AggregateTypeOrderDraft, d.ID),
		DraftID:         d.ID,
		Reason:          d.Rejection,
	}
}
