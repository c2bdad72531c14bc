package ordering

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"go.uber.org/zap"
)

// DraftCleanupHandler removes the saved draft of a submitted order
type DraftCleanupHandler struct {
	drafts ordering.DraftRepository
	logger *zap.Logger
}

// NewDraftCleanupHandler creates a new DraftCleanupHandler
func NewDraftCleanupHandler(drafts ordering.DraftRepository, logger *zap.Logger) *DraftCleanupHandler {
	return &DraftCleanupHandler{drafts: drafts, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *DraftCleanupHandler) EventTypes() []string {
	return []string{ordering.EventTypeOrderSubmitted}
}

// Handle processes an OrderSubmittedEvent
func (h *DraftCleanupHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	submitted, ok := event.(*ordering.OrderSubmittedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			ordering.EventTypeOrderSubmitted, event.EventType())
	}
	if submitted.SavedDraftID == uuid.Nil {
		return nil
	}

	err := h.drafts.Delete(ctx, submitted.SavedDraftID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("delete saved draft %s: %w", submitted.SavedDraftID, err)
	}

	h.logger.Info("Saved draft removed after submission",
		zap.String("saved_draft_id", submitted.SavedDraftID.String()),
		zap.String("order_number", submitted.OrderNumber),
	)
	return nil
}
