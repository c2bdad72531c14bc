package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New())}
}

type testHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panics     bool
}

func (h *testHandler) Handle(ctx context.Context, e shared.DomainEvent) error {
	h.mu.Lock()
	h.handled = append(h.handled, e)
	h.mu.Unlock()
	if h.panics {
		panic("boom")
	}
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func stopBus(t *testing.T, b *AsyncEventBus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Stop(ctx))
}

func TestAsyncEventBus_DeliversByType(t *testing.T) {
	bus := NewAsyncEventBus(8, zaptest.NewLogger(t))
	submitted := &testHandler{eventTypes: []string{"OrderSubmitted"}}
	everything := &testHandler{}
	bus.Subscribe(submitted)
	bus.Subscribe(everything)
	require.NoError(t, bus.Start(context.Background()))

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("OrderSubmitted"),
		newTestEvent("OrderRejected"),
	))
	stopBus(t, bus)

	assert.Equal(t, 1, submitted.count())
	assert.Equal(t, 2, everything.count())
}

func TestAsyncEventBus_HandlerFailuresDoNotStopDelivery(t *testing.T) {
	bus := NewAsyncEventBus(8, zaptest.NewLogger(t))
	failing := &testHandler{eventTypes: []string{"X"}, err: errors.New("db down")}
	panicking := &testHandler{eventTypes: []string{"X"}, panics: true}
	healthy := &testHandler{eventTypes: []string{"X"}}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)
	require.NoError(t, bus.Start(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("X"), newTestEvent("X")))
	stopBus(t, bus)

	assert.Equal(t, 2, failing.count())
	assert.Equal(t, 2, panicking.count())
	assert.Equal(t, 2, healthy.count())
}

func TestAsyncEventBus_HandlersOutliveRequestContext(t *testing.T) {
	bus := NewAsyncEventBus(8, zaptest.NewLogger(t))
	var seen error
	done := make(chan struct{})
	bus.Subscribe(handlerFunc(func(ctx context.Context, e shared.DomainEvent) error {
		seen = ctx.Err()
		close(done)
		return nil
	}), "X")

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, newTestEvent("X")))
	cancel()
	require.NoError(t, bus.Start(context.Background()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
	assert.NoError(t, seen)
	stopBus(t, bus)
}

func TestAsyncEventBus_PublishAfterStop(t *testing.T) {
	bus := NewAsyncEventBus(1, zaptest.NewLogger(t))
	require.NoError(t, bus.Start(context.Background()))
	stopBus(t, bus)
	stopBus(t, bus)

	err := bus.Publish(context.Background(), newTestEvent("X"))
	assert.ErrorIs(t, err, ErrBusStopped)
}

type handlerFunc func(ctx context.Context, e shared.DomainEvent) error

func (f handlerFunc) Handle(ctx context.Context, e shared.DomainEvent) error { return f(ctx, e) }
func (f handlerFunc) EventTypes() []string                                   { return nil }
