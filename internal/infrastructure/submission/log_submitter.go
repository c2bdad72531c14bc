package submission

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
	"go.uber.org/zap"
)

// LogSubmitter accepts every submission and only logs it. It stands in for
// the order system in development when no submission URL is configured.
type LogSubmitter struct {
	logger *zap.Logger
	seq    atomic.Int64
}

// NewLogSubmitter creates a new LogSubmitter
func NewLogSubmitter(logger *zap.Logger) *LogSubmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSubmitter{logger: logger}
}

// Submit implements ordering.Submitter
func (s *LogSubmitter) Submit(ctx context.Context, sub ordering.Submission) (ordering.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ordering.Receipt{}, err
	}
	number := fmt.Sprintf("DEV-%06d", s.seq.Add(1))
	s.logger.Info("Order accepted locally",
		zap.String("order_number", number),
		zap.String("draft_id", sub.DraftID.String()),
		zap.String("product_id", sub.LineItem.ProductID),
		zap.Int("quantity", sub.LineItem.Quantity),
		zap.String("postal_code", sub.Address.PostalCode),
		zap.Bool("separate_billing", sub.BillingAddress != nil),
	)
	return ordering.Receipt{OrderNumber: number}, nil
}

var _ ordering.Submitter = (*LogSubmitter)(nil)
