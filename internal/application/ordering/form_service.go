package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/application/finder"
	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared/valueobject"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Submit outcomes reported to Metrics
const (
	OutcomeSubmitted = "submitted"
	OutcomeInvalid   = "invalid"
	OutcomeRejected  = "rejected"
)

// Metrics receives order form activity
type Metrics interface {
	finder.Metrics
	SubmitAttempt(outcome string)
	FormsActive(delta int64)
}

type nopMetrics struct{}

func (nopMetrics) FetchIssued(string)   {}
func (nopMetrics) FetchFailed()         {}
func (nopMetrics) StaleDiscarded()      {}
func (nopMetrics) OptionSelected()      {}
func (nopMetrics) SubmitAttempt(string) {}
func (nopMetrics) FormsActive(int64)    {}

// ValidationFailure is returned when the submit gate blocks a draft. It lists
// every failing field.
type ValidationFailure struct {
	Errors []ordering.FieldError
}

// Error implements error
func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("%d field(s) failed validation", len(e.Errors))
}

// Is makes errors.Is(err, shared.ErrValidationFailed) hold
func (e *ValidationFailure) Is(target error) bool {
	return target == shared.ErrValidationFailed
}

// Config configures the form service
type Config struct {
	Finder      finder.Config
	ShippingFee valueobject.Money
	SessionTTL  time.Duration
	SweepPeriod time.Duration
}

// FormService hosts order form sessions
type FormService struct {
	cfg       Config
	source    catalog.OptionSource
	submitter ordering.Submitter
	drafts    ordering.DraftRepository
	events    shared.EventPublisher
	registry  *formRegistry
	logger    *zap.Logger
	metrics   Metrics
	clock     finder.Clock
	tracer    trace.Tracer
	labels    finder.LabelFunc
}

// ServiceOption configures a FormService
type ServiceOption func(*FormService)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *FormService) { s.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) ServiceOption {
	return func(s *FormService) { s.metrics = m }
}

// WithClock sets the clock used for finder debouncing
func WithClock(c finder.Clock) ServiceOption {
	return func(s *FormService) { s.clock = c }
}

// WithProfileLabels labels finder fetches and submissions for the profiler
func WithProfileLabels(fn finder.LabelFunc) ServiceOption {
	return func(s *FormService) {
		if fn != nil {
			s.labels = fn
		}
	}
}

// WithEventPublisher sets the publisher for order events
func WithEventPublisher(p shared.EventPublisher) ServiceOption {
	return func(s *FormService) { s.events = p }
}

// NewFormService creates a new FormService
func NewFormService(
	cfg Config,
	source catalog.OptionSource,
	submitter ordering.Submitter,
	drafts ordering.DraftRepository,
	opts ...ServiceOption,
) *FormService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.SweepPeriod <= 0 {
		cfg.SweepPeriod = time.Minute
	}
	if cfg.ShippingFee.Currency() == "" {
		cfg.ShippingFee = valueobject.Zero(valueobject.DefaultCurrency)
	}
	s := &FormService{
		cfg:       cfg,
		source:    source,
		submitter: submitter,
		drafts:    drafts,
		logger:    zap.NewNop(),
		metrics:   nopMetrics{},
		clock:     finder.SystemClock{},
		tracer:    otel.Tracer("productmanager/ordering"),
		labels:    finder.Unlabeled,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = newFormRegistry(cfg.SessionTTL, s.logger, s.metrics)
	return s
}

// Start runs the idle form sweeper until Stop is called
func (s *FormService) Start() {
	go s.registry.run(s.cfg.SweepPeriod)
}

// Stop unmounts every form
func (s *FormService) Stop() {
	s.registry.close()
}

// Create mounts a new order form. With a saved draft ID the draft is
// restored; otherwise the form starts empty. The finder opens on the default
// listing either way.
func (s *FormService) Create(ctx context.Context, ownerID string, savedDraftID *uuid.UUID) (*FormResponse, error) {
	draft := ordering.NewOrderDraft(s.cfg.ShippingFee)

	f := &form{
		id:      draft.ID,
		ownerID: ownerID,
		draft:   draft,
	}

	if savedDraftID != nil {
		if s.drafts == nil {
			return nil, shared.ErrNotFound
		}
		saved, err := s.drafts.FindByID(ctx, *savedDraftID)
		if err != nil {
			return nil, err
		}
		if saved.OwnerID != ownerID {
			return nil, shared.ErrNotFound
		}
		saved.Restore(draft)
		f.savedDraftID = saved.ID
	}

	f.finder = finder.New(s.source, s.cfg.Finder,
		finder.WithClock(s.clock),
		finder.WithLogger(s.logger.With(zap.String("form_id", f.id.String()))),
		finder.WithMetrics(s.metrics),
		finder.WithProfileLabels(s.labels),
	)
	f.touch(time.Now())
	f.finder.Open()

	s.registry.put(f)
	s.logger.Info("Order form mounted",
		zap.String("form_id", f.id.String()),
		zap.Bool("restored", savedDraftID != nil),
	)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(), nil
}

// lookup returns the caller's form. Forms owned by someone else are reported
// as not found.
func (s *FormService) lookup(ownerID string, id uuid.UUID) (*form, error) {
	f, ok := s.registry.get(id)
	if !ok || f.ownerID != ownerID {
		return nil, shared.ErrNotFound
	}
	return f, nil
}

// with runs fn under the form lock and returns the resulting snapshot
func (s *FormService) with(ownerID string, id uuid.UUID, fn func(f *form) error) (*FormResponse, error) {
	f, err := s.lookup(ownerID, id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch(time.Now())
	if err := fn(f); err != nil {
		return nil, err
	}
	return f.snapshot(), nil
}

// Get returns the current snapshot. With wait set it first blocks until the
// finder has nothing pending or ctx ends.
func (s *FormService) Get(ctx context.Context, ownerID string, id uuid.UUID, wait bool) (*FormResponse, error) {
	if wait {
		f, err := s.lookup(ownerID, id)
		if err != nil {
			return nil, err
		}
		if _, err := f.finder.Wait(ctx, finder.Settled); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}
	return s.with(ownerID, id, func(*form) error { return nil })
}

// Type records a keystroke in the product finder
func (s *FormService) Type(ctx context.Context, ownerID string, id uuid.UUID, query string) (*FormResponse, error) {
	return s.with(ownerID, id, func(f *form) error {
		f.finder.Type(query)
		return nil
	})
}

// LoadMore requests the next result page
func (s *FormService) LoadMore(ctx context.Context, ownerID string, id uuid.UUID) (*FormResponse, error) {
	return s.with(ownerID, id, func(f *form) error {
		f.finder.LoadMore()
		return nil
	})
}

// Retry repeats a failed catalog request
func (s *FormService) Retry(ctx context.Context, ownerID string, id uuid.UUID) (*FormResponse, error) {
	return s.with(ownerID, id, func(f *form) error {
		f.finder.Retry()
		return nil
	})
}

// Select moves an option from the finder into the line item
func (s *FormService) Select(ctx context.Context, ownerID string, id uuid.UUID, optionID string) (*FormResponse, error) {
	return s.with(ownerID, id, func(f *form) error {
		// Check first so a refused selection keeps the finder session.
		if f.draft.State == ordering.StateSubmitted {
			return ordering.ErrAlreadySubmitted
		}
		if f.draft.State == ordering.StateSubmitting {
			return ordering.ErrSubmitInFlight
		}
		opt, err := f.finder.Select(optionID)
		if err != nil {
			return err
		}
		return f.draft.Select(opt)
	})
}

// SetQuantity applies raw quantity input
func (s *FormService) SetQuantity(ctx context.Context, ownerID string, id uuid.UUID, raw string) (*FormResponse, error) {
	return s.with(ownerID, id, func(f *form) error {
		_, err := f.draft.SetQuantity(raw)
		return err
	})
}

// CommitField validates one address field after it lost focus
func (s *FormService) CommitField(ctx context.Context, ownerID string, id uuid.UUID, kind ordering.AddressKind, field ordering.Field, value string) (*FieldCommitResponse, error) {
	var (
		state   ordering.FieldState
		country ordering.Country
	)
	snap, err := s.with(ownerID, id, func(f *form) error {
		var err error
		state, err = f.draft.CommitField(kind, field, value)
		country = f.draft.Address(kind).Draft.Country
		return err
	})
	if err != nil {
		return nil, err
	}
	return &FieldCommitResponse{Field: field, State: state, Country: country, Form: snap}, nil
}

// SetBillingSameAsDelivery toggles the separate billing address
func (s *FormService) SetBillingSameAsDelivery(ctx context.Context, ownerID string, id uuid.UUID, same bool) (*FormResponse, error) {
	return s.with(ownerID, id, func(f *form) error {
		return f.draft.SetBillingSameAsDelivery(same)
	})
}

// SetNotes stores the order notes
func (s *FormService) SetNotes(ctx context.Context, ownerID string, id uuid.UUID, notes string) (*FormResponse, error) {
	return s.with(ownerID, id, func(f *form) error {
		return f.draft.SetNotes(notes)
	})
}

// Submit runs the submit gate and, when it passes, hands the draft to the
// submitter exactly once. The form lock is released while the submitter
// runs; other edits are refused until it returns.
func (s *FormService) Submit(ctx context.Context, ownerID string, id uuid.UUID) (*FormResponse, error) {
	f, err := s.lookup(ownerID, id)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.touch(time.Now())
	submission, result, err := f.draft.BeginSubmit()
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.validation = result.Errors
	if !result.Valid() {
		snap := f.snapshot()
		f.mu.Unlock()
		s.metrics.SubmitAttempt(OutcomeInvalid)
		return snap, &ValidationFailure{Errors: result.Errors}
	}
	f.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "ordering.submit", trace.WithAttributes(
		attribute.String("order.draft_id", submission.DraftID.String()),
		attribute.String("order.product_id", submission.LineItem.ProductID),
		attribute.Int("order.quantity", submission.LineItem.Quantity),
	))
	var (
		receipt   ordering.Receipt
		submitErr error
	)
	s.labels(ctx, map[string]string{"operation": "ordering.submit"}, func(ctx context.Context) {
		receipt, submitErr = s.submitter.Submit(ctx, *submission)
	})
	if submitErr != nil {
		span.RecordError(submitErr)
		span.SetStatus(codes.Error, submitErr.Error())
	}
	span.End()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch(time.Now())

	if submitErr != nil {
		if err := f.draft.FailSubmit(submitErr); err != nil {
			return nil, err
		}
		s.metrics.SubmitAttempt(OutcomeRejected)
		s.logger.Warn("Order submission rejected",
			zap.String("form_id", f.id.String()),
			zap.Error(submitErr),
		)
		s.publish(ctx, ordering.NewOrderRejectedEvent(f.draft))
		return f.snapshot(), fmt.Errorf("%w: %s", shared.ErrSubmissionRejected, f.draft.Rejection)
	}

	if err := f.draft.CompleteSubmit(receipt); err != nil {
		return nil, err
	}
	s.metrics.SubmitAttempt(OutcomeSubmitted)
	s.logger.Info("Order submitted",
		zap.String("form_id", f.id.String()),
		zap.String("order_number", receipt.OrderNumber),
	)
	s.publish(ctx, ordering.NewOrderSubmittedEvent(f.draft, f.savedDraftID))
	return f.snapshot(), nil
}

// SaveDraft persists the form so it can be restored later. Repeated saves of
// the same form overwrite one saved draft.
func (s *FormService) SaveDraft(ctx context.Context, ownerID string, id uuid.UUID) (*SavedDraftResponse, error) {
	if s.drafts == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Draft storage is not configured")
	}
	f, err := s.lookup(ownerID, id)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.draft.State == ordering.StateSubmitted {
		f.mu.Unlock()
		return nil, ordering.ErrAlreadySubmitted
	}
	if f.savedDraftID == uuid.Nil {
		f.savedDraftID = uuid.New()
	}
	snap := ordering.Snapshot(f.savedDraftID, f.ownerID, f.draft)
	f.touch(time.Now())
	f.mu.Unlock()

	if err := s.drafts.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return &SavedDraftResponse{DraftID: snap.ID.String()}, nil
}

// Cancel unmounts the form; outstanding finder work is discarded
func (s *FormService) Cancel(ctx context.Context, ownerID string, id uuid.UUID) error {
	if _, err := s.lookup(ownerID, id); err != nil {
		return err
	}
	f, ok := s.registry.remove(id)
	if !ok {
		return shared.ErrNotFound
	}
	f.finder.Shutdown()
	s.logger.Info("Order form cancelled", zap.String("form_id", id.String()))
	return nil
}

func (s *FormService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
