package ordering

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared/valueobject"
)

// SubmissionState is the lifecycle of an order draft
type SubmissionState string

const (
	StateEditing    SubmissionState = "editing"
	StateSubmitting SubmissionState = "submitting"
	StateSubmitted  SubmissionState = "submitted"
	StateRejected   SubmissionState = "rejected"
)

// AddressKind selects the delivery or billing address
type AddressKind string

const (
	AddressDelivery AddressKind = "delivery"
	AddressBilling  AddressKind = "billing"
)

// FieldProduct is reported when submit is attempted without a selection
const FieldProduct Field = "product"

// MaxNotesLength bounds the free-text notes
const MaxNotesLength = 2000

var (
	ErrNoSelection      = shared.NewDomainError("NO_SELECTION", "No product selected")
	ErrAlreadySubmitted = shared.NewDomainError("INVALID_STATE", "Order has already been submitted")
	ErrSubmitInFlight   = shared.NewDomainError("INVALID_STATE", "Order submission is in progress")
	ErrNotesTooLong     = shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Notes exceed %d characters", MaxNotesLength))
)

// OrderDraft composes the line item, the addresses and the notes into a
// submittable order. It is not safe for concurrent use.
type OrderDraft struct {
	ID                    uuid.UUID
	LineItem              *LineItem
	Delivery              *AddressForm
	BillingSameAsDelivery bool
	Billing               *AddressForm
	Notes                 string
	State                 SubmissionState
	Rejection             string
	OrderNumber           string
	ShippingFee           valueobject.Money
	UpdatedAt             time.Time
}

// NewOrderDraft creates an empty draft in the editing state
func NewOrderDraft(shippingFee valueobject.Money) *OrderDraft {
	return &OrderDraft{
		ID:                    uuid.New(),
		Delivery:              NewAddressForm(),
		BillingSameAsDelivery: true,
		Billing:               NewAddressForm(),
		State:                 StateEditing,
		ShippingFee:           shippingFee,
		UpdatedAt:             time.Now(),
	}
}

// edit guards every mutation and moves a rejected draft back to editing.
func (d *OrderDraft) edit() error {
	switch d.State {
	case StateSubmitted:
		return ErrAlreadySubmitted
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateRejected:
		d.State = StateEditing
	}
	d.UpdatedAt = time.Now()
	return nil
}

// Select replaces the line item with a copy of opt at quantity 1
func (d *OrderDraft) Select(opt catalog.Option) error {
	if err := d.edit(); err != nil {
		return err
	}
	item := NewLineItem(opt)
	d.LineItem = &item
	return nil
}

// SetQuantity parses raw input and clamps it
func (d *OrderDraft) SetQuantity(raw string) (int, error) {
	if d.LineItem == nil {
		return 0, ErrNoSelection
	}
	if err := d.edit(); err != nil {
		return 0, err
	}
	item := d.LineItem.WithQuantity(ParseQuantity(raw))
	d.LineItem = &item
	return item.Quantity, nil
}

// SetNotes stores the free-text notes
func (d *OrderDraft) SetNotes(notes string) error {
	if len([]rune(notes)) > MaxNotesLength {
		return ErrNotesTooLong
	}
	if err := d.edit(); err != nil {
		return err
	}
	d.Notes = strings.TrimSpace(notes)
	return nil
}

// SetBillingSameAsDelivery toggles the separate billing address
func (d *OrderDraft) SetBillingSameAsDelivery(same bool) error {
	if err := d.edit(); err != nil {
		return err
	}
	d.BillingSameAsDelivery = same
	return nil
}

// Address returns the form for kind
func (d *OrderDraft) Address(kind AddressKind) *AddressForm {
	if kind == AddressBilling {
		return d.Billing
	}
	return d.Delivery
}

// CommitField commits one address field (blur)
func (d *OrderDraft) CommitField(kind AddressKind, field Field, value string) (FieldState, error) {
	if err := d.edit(); err != nil {
		return FieldState{}, err
	}
	return d.Address(kind).CommitField(field, value), nil
}

// Subtotal is zero until a product is selected
func (d *OrderDraft) Subtotal() valueobject.Money {
	if d.LineItem == nil {
		return valueobject.Zero(d.ShippingFee.Currency())
	}
	return d.LineItem.Subtotal()
}

// Shipping is charged only when there is something to ship
func (d *OrderDraft) Shipping() valueobject.Money {
	if d.LineItem == nil {
		return valueobject.Zero(d.ShippingFee.Currency())
	}
	return d.ShippingFee
}

// Total is subtotal plus shipping
func (d *OrderDraft) Total() valueobject.Money {
	total, err := d.Subtotal().Add(d.Shipping())
	if err != nil {
		return d.Subtotal()
	}
	return total.RoundToCurrency()
}

// Validate runs the submit gate without changing the submission state
func (d *OrderDraft) Validate() ValidationResult {
	result := ValidationResult{}
	if d.LineItem == nil {
		result.Errors = append(result.Errors, FieldError{Field: FieldProduct, Reason: ReasonRequired})
	}
	for _, fe := range d.Delivery.ValidateAll().Errors {
		fe.Address = AddressDelivery
		result.Errors = append(result.Errors, fe)
	}
	if !d.BillingSameAsDelivery {
		for _, fe := range d.Billing.ValidateAll().Errors {
			fe.Address = AddressBilling
			result.Errors = append(result.Errors, fe)
		}
	}
	return result
}

// BeginSubmit runs the submit gate. When it passes the draft moves to
// submitting and the returned submission must be delivered exactly once,
// followed by CompleteSubmit or FailSubmit.
func (d *OrderDraft) BeginSubmit() (*Submission, ValidationResult, error) {
	if err := d.edit(); err != nil {
		return nil, ValidationResult{}, err
	}
	result := d.Validate()
	if !result.Valid() {
		return nil, result, nil
	}

	d.State = StateSubmitting
	d.Rejection = ""
	s := &Submission{
		DraftID: d.ID,
		LineItem: SubmissionLine{
			ProductID: d.LineItem.Option.ID,
			Quantity:  d.LineItem.Quantity,
		},
		Address: d.Delivery.Draft,
		Notes:   d.Notes,
	}
	if !d.BillingSameAsDelivery {
		billing := d.Billing.Draft
		s.BillingAddress = &billing
	}
	return s, result, nil
}

// CompleteSubmit records acceptance
func (d *OrderDraft) CompleteSubmit(receipt Receipt) error {
	if d.State != StateSubmitting {
		return shared.ErrInvalidState
	}
	d.State = StateSubmitted
	d.OrderNumber = receipt.OrderNumber
	d.UpdatedAt = time.Now()
	return nil
}

// FailSubmit records a rejection. The draft stays intact and the next edit or
// submit attempt returns it to editing.
func (d *OrderDraft) FailSubmit(cause error) error {
	if d.State != StateSubmitting {
		return shared.ErrInvalidState
	}
	d.State = StateRejected
	d.Rejection = RejectionReason(cause)
	d.UpdatedAt = time.Now()
	return nil
}
