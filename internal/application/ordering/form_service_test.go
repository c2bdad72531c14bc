package ordering

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/application/finder"
	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const owner = "user-1"

var catalogFixture = []catalog.Option{
	{ID: "ferramol", Title: "Ferramol Schneckenkorn", SKU: "ND-4100", EAN: "400524000410", UnitPrice: decimal.RequireFromString("12.99")},
	{ID: "rasen", Title: "Rasendünger Langzeit", SKU: "ND-2200", EAN: "400524000220", UnitPrice: decimal.RequireFromString("24.50")},
	{ID: "kupfer", Title: "Kupferband gegen Schnecken", SKU: "ND-4120", EAN: "400524000412", UnitPrice: decimal.RequireFromString("7.95")},
}

// memorySource answers immediately from a fixed list and counts searches
type memorySource struct {
	mu       sync.Mutex
	options  []catalog.Option
	searches []string
}

func (s *memorySource) ListDefault(ctx context.Context, limit int) ([]catalog.Option, error) {
	if limit > len(s.options) {
		limit = len(s.options)
	}
	return append([]catalog.Option(nil), s.options[:limit]...), nil
}

func (s *memorySource) Search(ctx context.Context, query, cursor string, limit int) (catalog.Page, error) {
	s.mu.Lock()
	s.searches = append(s.searches, query)
	s.mu.Unlock()

	var out []catalog.Option
	q := strings.ToLower(query)
	for _, o := range s.options {
		if strings.Contains(strings.ToLower(o.Title), q) || o.SKU == query || o.EAN == query {
			out = append(out, o)
		}
	}
	return catalog.Page{Options: out}, nil
}

func (s *memorySource) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, s ordering.Submission) (ordering.Receipt, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(ordering.Receipt), args.Error(1)
}

type mockDraftRepository struct {
	mock.Mock
}

func (m *mockDraftRepository) Save(ctx context.Context, d *ordering.SavedDraft) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDraftRepository) FindByID(ctx context.Context, id uuid.UUID) (*ordering.SavedDraft, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordering.SavedDraft), args.Error(1)
}

func (m *mockDraftRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

type serviceHarness struct {
	svc       *FormService
	source    *memorySource
	submitter *mockSubmitter
	drafts    *mockDraftRepository
	events    *capturingPublisher
	clock     *finder.ManualClock
}

func newServiceHarness(t *testing.T, opts ...ServiceOption) *serviceHarness {
	h := &serviceHarness{
		source:    &memorySource{options: catalogFixture},
		submitter: &mockSubmitter{},
		drafts:    &mockDraftRepository{},
		events:    &capturingPublisher{},
		clock:     finder.NewManualClock(),
	}
	cfg := Config{
		Finder:      finder.DefaultConfig(),
		ShippingFee: valueobject.NewMoneyEUR(decimal.RequireFromString("2.50")),
	}
	opts = append([]ServiceOption{
		WithClock(h.clock),
		WithLogger(zaptest.NewLogger(t)),
		WithEventPublisher(h.events),
	}, opts...)
	h.svc = NewFormService(cfg, h.source, h.submitter, h.drafts, opts...)
	t.Cleanup(h.svc.Stop)
	return h
}

func (h *serviceHarness) settled(t *testing.T, id uuid.UUID) *FormResponse {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := h.svc.Get(ctx, owner, id, true)
	require.NoError(t, err)
	return resp
}

func (h *serviceHarness) mount(t *testing.T) uuid.UUID {
	t.Helper()
	resp, err := h.svc.Create(context.Background(), owner, nil)
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

func (h *serviceHarness) fillAddress(t *testing.T, id uuid.UUID, kind ordering.AddressKind) {
	t.Helper()
	values := []struct {
		field ordering.Field
		value string
	}{
		{ordering.FieldSalutation, ordering.SalutationMs},
		{ordering.FieldFirstName, "Erika"},
		{ordering.FieldLastName, "Musterfrau"},
		{ordering.FieldStreet, "An der Mühle"},
		{ordering.FieldHouseNumber, "3a"},
		{ordering.FieldPostalCode, "12345"},
		{ordering.FieldCity, "Emmerthal"},
		{ordering.FieldEmail, "erika@example.de"},
	}
	for _, v := range values {
		_, err := h.svc.CommitField(context.Background(), owner, id, kind, v.field, v.value)
		require.NoError(t, err)
	}
}

func (h *serviceHarness) selectFerramol(t *testing.T, id uuid.UUID) *FormResponse {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.Type(ctx, owner, id, "ferra")
	require.NoError(t, err)
	h.clock.Advance(250 * time.Millisecond)
	h.settled(t, id)

	resp, err := h.svc.Select(ctx, owner, id, "ferramol")
	require.NoError(t, err)
	return resp
}

func TestFormService_OrderScenario(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	id := h.mount(t)

	resp := h.settled(t, id)
	assert.True(t, resp.Finder.Seeded)
	assert.Len(t, resp.Finder.Options, len(catalogFixture))

	for _, q := range []string{"f", "fe", "fer", "ferr", "ferra"} {
		_, err := h.svc.Type(ctx, owner, id, q)
		require.NoError(t, err)
		h.clock.Advance(50 * time.Millisecond)
	}
	h.clock.Advance(250 * time.Millisecond)
	resp = h.settled(t, id)
	assert.Equal(t, 1, h.source.searchCount())
	require.Len(t, resp.Finder.Options, 1)
	assert.Equal(t, "ferramol", resp.Finder.Options[0].ID)

	resp, err := h.svc.Select(ctx, owner, id, "ferramol")
	require.NoError(t, err)
	require.NotNil(t, resp.LineItem)
	assert.Equal(t, "12.99", resp.LineItem.Subtotal.Amount)
	assert.Equal(t, "12,99 €", resp.LineItem.Subtotal.Display)
	assert.Equal(t, "15.49", resp.Totals.Total.Amount)
	assert.Empty(t, resp.Finder.Query)
	assert.Empty(t, resp.Finder.Options)

	commit, err := h.svc.CommitField(ctx, owner, id, ordering.AddressDelivery, ordering.FieldPostalCode, "12345")
	require.NoError(t, err)
	assert.Equal(t, ordering.CountryDomestic, commit.Country)
	assert.Equal(t, ordering.FieldValid, commit.State.Status)

	h.fillAddress(t, id, ordering.AddressDelivery)

	h.submitter.On("Submit", mock.Anything, mock.MatchedBy(func(s ordering.Submission) bool {
		return s.LineItem.ProductID == "ferramol" && s.LineItem.Quantity == 1 &&
			s.Address.Country == ordering.CountryDomestic && s.BillingAddress == nil
	})).Return(ordering.Receipt{OrderNumber: "B-1001"}, nil).Once()

	resp, err = h.svc.Submit(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, string(ordering.StateSubmitted), resp.State)
	assert.Equal(t, "B-1001", resp.OrderNumber)

	_, err = h.svc.Submit(ctx, owner, id)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	h.submitter.AssertNumberOfCalls(t, "Submit", 1)
	require.Len(t, h.events.events, 1)
	assert.Equal(t, ordering.EventTypeOrderSubmitted, h.events.events[0].EventType())
}

func TestFormService_SubmitGate(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	id := h.mount(t)
	h.settled(t, id)

	resp, err := h.svc.Submit(ctx, owner, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidationFailed)

	var vf *ValidationFailure
	require.True(t, errors.As(err, &vf))
	fields := make(map[ordering.Field]bool)
	for _, fe := range vf.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields[ordering.FieldProduct])
	assert.True(t, fields[ordering.FieldStreet])
	assert.True(t, fields[ordering.FieldEmail])
	assert.Equal(t, string(ordering.StateEditing), resp.State)
	assert.NotEmpty(t, resp.Validation)

	h.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestFormService_SubmitRejected(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	id := h.mount(t)
	h.settled(t, id)
	h.selectFerramol(t, id)
	h.fillAddress(t, id, ordering.AddressDelivery)

	h.submitter.On("Submit", mock.Anything, mock.Anything).
		Return(ordering.Receipt{}, &ordering.RejectionError{Code: "OUT_OF_STOCK", Reason: "Artikel nicht lieferbar"}).Once()

	resp, err := h.svc.Submit(ctx, owner, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSubmissionRejected)
	assert.Equal(t, string(ordering.StateRejected), resp.State)
	assert.Equal(t, "Artikel nicht lieferbar", resp.Rejection)
	require.NotNil(t, resp.LineItem)
	assert.Equal(t, "Emmerthal", resp.Delivery.Values.City)

	resp, err = h.svc.SetQuantity(ctx, owner, id, "2")
	require.NoError(t, err)
	assert.Equal(t, string(ordering.StateEditing), resp.State)
	assert.Equal(t, "25.98", resp.LineItem.Subtotal.Amount)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, ordering.EventTypeOrderRejected, h.events.events[0].EventType())
}

func TestFormService_ProfileLabels(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	labels := func(ctx context.Context, l map[string]string, fn func(context.Context)) {
		mu.Lock()
		seen[l["operation"]]++
		mu.Unlock()
		fn(ctx)
	}
	h := newServiceHarness(t, WithProfileLabels(labels))
	ctx := context.Background()
	id := h.mount(t)
	h.settled(t, id)
	h.selectFerramol(t, id)
	h.fillAddress(t, id, ordering.AddressDelivery)

	h.submitter.On("Submit", mock.Anything, mock.Anything).
		Return(ordering.Receipt{OrderNumber: "B-2002"}, nil).Once()
	_, err := h.svc.Submit(ctx, owner, id)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen["finder.default"])
	assert.GreaterOrEqual(t, seen["finder.search"], 1)
	assert.Equal(t, 1, seen["ordering.submit"])
}

func TestFormService_SeparateBillingAddress(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	id := h.mount(t)
	h.settled(t, id)
	h.selectFerramol(t, id)
	h.fillAddress(t, id, ordering.AddressDelivery)

	resp, err := h.svc.SetBillingSameAsDelivery(ctx, owner, id, false)
	require.NoError(t, err)
	require.NotNil(t, resp.Billing)

	_, err = h.svc.Submit(ctx, owner, id)
	require.ErrorIs(t, err, shared.ErrValidationFailed)
	var vf *ValidationFailure
	require.True(t, errors.As(err, &vf))
	for _, fe := range vf.Errors {
		assert.Equal(t, ordering.AddressBilling, fe.Address)
	}

	commit, err := h.svc.CommitField(ctx, owner, id, ordering.AddressBilling, ordering.FieldPostalCode, "6020")
	require.NoError(t, err)
	assert.Equal(t, ordering.CountryNeighboring, commit.Country)
	assert.Equal(t, ordering.CountryDomestic, commit.Form.Delivery.Values.Country)
}

func TestFormService_Quantity(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	id := h.mount(t)
	h.settled(t, id)

	_, err := h.svc.SetQuantity(ctx, owner, id, "3")
	assert.ErrorIs(t, err, ordering.ErrNoSelection)

	h.selectFerramol(t, id)
	for raw, want := range map[string]int{"3": 3, "0": 1, "-4": 1, "": 1, "2.5": 1} {
		resp, err := h.svc.SetQuantity(ctx, owner, id, raw)
		require.NoError(t, err)
		assert.Equal(t, want, resp.LineItem.Quantity, "raw %q", raw)
	}
}

func TestFormService_Ownership(t *testing.T) {
	h := newServiceHarness(t)
	id := h.mount(t)

	_, err := h.svc.Get(context.Background(), "someone-else", id, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.svc.Type(context.Background(), owner, uuid.New(), "x")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFormService_Cancel(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	id := h.mount(t)

	require.NoError(t, h.svc.Cancel(ctx, owner, id))
	_, err := h.svc.Get(ctx, owner, id, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, h.svc.Cancel(ctx, owner, id), shared.ErrNotFound)
}

func TestFormService_SaveAndRestoreDraft(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	id := h.mount(t)
	h.settled(t, id)
	h.selectFerramol(t, id)
	_, err := h.svc.CommitField(ctx, owner, id, ordering.AddressDelivery, ordering.FieldCity, "Emmerthal")
	require.NoError(t, err)
	_, err = h.svc.SetNotes(ctx, owner, id, "  Bitte klingeln  ")
	require.NoError(t, err)

	var saved *ordering.SavedDraft
	h.drafts.On("Save", mock.Anything, mock.AnythingOfType("*ordering.SavedDraft")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*ordering.SavedDraft) }).
		Return(nil).Twice()

	first, err := h.svc.SaveDraft(ctx, owner, id)
	require.NoError(t, err)
	second, err := h.svc.SaveDraft(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, first.DraftID, second.DraftID)

	require.NotNil(t, saved)
	assert.Equal(t, "ferramol", saved.ProductID)
	assert.Equal(t, "Bitte klingeln", saved.Notes)

	h.drafts.On("FindByID", mock.Anything, saved.ID).Return(saved, nil)
	restored, err := h.svc.Create(ctx, owner, &saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID.String(), restored.SavedDraftID)
	require.NotNil(t, restored.LineItem)
	assert.Equal(t, "ferramol", restored.LineItem.Product.ID)
	assert.Equal(t, "Emmerthal", restored.Delivery.Values.City)
	assert.Equal(t, ordering.FieldUntouched, restored.Delivery.Fields[ordering.FieldCity].Status)

	_, err = h.svc.Create(ctx, "someone-else", &saved.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFormService_SweepUnmountsIdleForms(t *testing.T) {
	h := newServiceHarness(t)
	id := h.mount(t)
	h.settled(t, id)

	h.svc.registry.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, h.svc.registry.sweep())
	assert.Equal(t, 0, h.svc.registry.len())

	_, err := h.svc.Get(context.Background(), owner, id, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

type gaugeMetrics struct {
	nopMetrics
	mu     sync.Mutex
	active int64
}

func (m *gaugeMetrics) FormsActive(delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active += delta
}

func (m *gaugeMetrics) value() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func TestFormService_ActiveFormsGauge(t *testing.T) {
	metrics := &gaugeMetrics{}
	svc := NewFormService(Config{Finder: finder.DefaultConfig()},
		&memorySource{options: catalogFixture}, &mockSubmitter{}, nil,
		WithClock(finder.NewManualClock()),
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(metrics),
	)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		resp, err := svc.Create(ctx, owner, nil)
		require.NoError(t, err)
		ids = append(ids, uuid.MustParse(resp.ID))
	}
	assert.Equal(t, int64(4), metrics.value())

	require.NoError(t, svc.Cancel(ctx, owner, ids[0]))
	assert.Equal(t, int64(3), metrics.value())

	idle, ok := svc.registry.get(ids[1])
	require.True(t, ok)
	idle.mu.Lock()
	idle.touch(time.Now().Add(-2 * time.Hour))
	idle.mu.Unlock()
	assert.Equal(t, 1, svc.registry.sweep())
	assert.Equal(t, int64(2), metrics.value())

	svc.Stop()
	assert.Equal(t, int64(0), metrics.value())
	svc.Stop()
	assert.Equal(t, int64(0), metrics.value())
}

func TestDraftCleanupHandler(t *testing.T) {
	drafts := &mockDraftRepository{}
	handler := NewDraftCleanupHandler(drafts, zaptest.NewLogger(t))
	assert.Equal(t, []string{ordering.EventTypeOrderSubmitted}, handler.EventTypes())

	d := ordering.NewOrderDraft(valueobject.Zero(valueobject.DefaultCurrency))
	savedID := uuid.New()

	t.Run("deletes the saved draft", func(t *testing.T) {
		drafts.On("Delete", mock.Anything, savedID).Return(nil).Once()
		require.NoError(t, handler.Handle(context.Background(), ordering.NewOrderSubmittedEvent(d, savedID)))
		drafts.AssertExpectations(t)
	})

	t.Run("ignores orders without saved draft", func(t *testing.T) {
		require.NoError(t, handler.Handle(context.Background(), ordering.NewOrderSubmittedEvent(d, uuid.Nil)))
	})

	t.Run("tolerates an already deleted draft", func(t *testing.T) {
		drafts.On("Delete", mock.Anything, savedID).Return(shared.ErrNotFound).Once()
		require.NoError(t, handler.Handle(context.Background(), ordering.NewOrderSubmittedEvent(d, savedID)))
	})

	t.Run("rejects other events", func(t *testing.T) {
		err := handler.Handle(context.Background(), ordering.NewOrderRejectedEvent(d))
		assert.Error(t, err)
	})
}
