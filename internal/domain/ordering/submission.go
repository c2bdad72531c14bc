package ordering

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
)

// SubmissionLine identifies the ordered product
type SubmissionLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Submission is the payload handed to the order recipient
type Submission struct {
	DraftID        uuid.UUID      `json:"draftId"`
	LineItem       SubmissionLine `json:"lineItem"`
	Address        AddressDraft   `json:"address"`
	BillingAddress *AddressDraft  `json:"billingAddress,omitempty"`
	Notes          string         `json:"notes,omitempty"`
}

// Receipt acknowledges an accepted order
type Receipt struct {
	OrderNumber string `json:"orderNumber"`
}

// Submitter delivers a validated draft to the external order system
type Submitter interface {
	Submit(ctx context.Context, s Submission) (Receipt, error)
}

// RejectionError carries the recipient's structured rejection reason
type RejectionError struct {
	Code   string
	Reason string
}

// Error implements error
func (e *RejectionError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("order rejected: %s", e.Reason)
	}
	return fmt.Sprintf("order rejected (%s): %s", e.Code, e.Reason)
}

// Is makes errors.Is(err, shared.ErrSubmissionRejected) hold
func (e *RejectionError) Is(target error) bool {
	return target == shared.ErrSubmissionRejected
}

// RejectionReason extracts a user-facing reason from a submit failure
func RejectionReason(err error) string {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return err.Error()
}
