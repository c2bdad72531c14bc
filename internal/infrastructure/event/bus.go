// Package event provides the in-process domain event bus.
package event

import (
	"context"
	"errors"
	"sync"

	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish after Stop
var ErrBusStopped = errors.New("event bus stopped")

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// AsyncEventBus queues published events and hands them to subscribed
// handlers on a background worker, so publishers never wait on handlers.
// Handler errors and panics are logged and do not stop delivery.
type AsyncEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	wildcard []shared.EventHandler

	queue   chan envelope
	logger  *zap.Logger
	wg      sync.WaitGroup
	state   sync.RWMutex
	running bool
	stopped bool
}

// NewAsyncEventBus creates a bus with room for buffer pending events
func NewAsyncEventBus(buffer int, logger *zap.Logger) *AsyncEventBus {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncEventBus{
		handlers: make(map[string][]shared.EventHandler),
		queue:    make(chan envelope, buffer),
		logger:   logger,
	}
}

// Subscribe registers handler for eventTypes, or for the handler's own
// EventTypes when none are given. A handler with no types receives every event.
func (b *AsyncEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
		return
	}
	for _, t := range eventTypes {
		b.handlers[t] = append(b.handlers[t], handler)
	}
	b.logger.Debug("Handler subscribed", zap.Strings("event_types", eventTypes))
}

func (b *AsyncEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]shared.EventHandler, 0, len(b.handlers[eventType])+len(b.wildcard))
	out = append(out, b.handlers[eventType]...)
	return append(out, b.wildcard...)
}

// Publish enqueues events. It blocks only while the queue is full.
func (b *AsyncEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	// The read lock keeps Stop from closing the queue mid-send.
	b.state.RLock()
	defer b.state.RUnlock()
	if b.stopped {
		return ErrBusStopped
	}

	// Handlers outlive the request that published the event.
	detached := context.WithoutCancel(ctx)
	for _, e := range events {
		select {
		case b.queue <- envelope{ctx: detached, event: e}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Start launches the delivery worker
func (b *AsyncEventBus) Start(ctx context.Context) error {
	b.state.Lock()
	defer b.state.Unlock()
	if b.running || b.stopped {
		return nil
	}
	b.running = true

	b.wg.Add(1)
	go b.run()
	b.logger.Info("Event bus started")
	return nil
}

// Stop refuses new events and waits until queued ones are delivered or ctx ends
func (b *AsyncEventBus) Stop(ctx context.Context) error {
	b.state.Lock()
	if b.stopped {
		b.state.Unlock()
		return nil
	}
	b.stopped = true
	running := b.running
	close(b.queue)
	b.state.Unlock()

	if !running {
		return nil
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("Event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *AsyncEventBus) run() {
	defer b.wg.Done()
	for env := range b.queue {
		for _, h := range b.handlersFor(env.event.EventType()) {
			b.dispatch(env.ctx, h, env.event)
		}
	}
}

func (b *AsyncEventBus) dispatch(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("event_type", e.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := h.Handle(ctx, e); err != nil {
		b.logger.Error("Event handler failed",
			zap.String("event_type", e.EventType()),
			zap.String("event_id", e.EventID().String()),
			zap.Error(err),
		)
	}
}

var _ shared.EventBus = (*AsyncEventBus)(nil)
