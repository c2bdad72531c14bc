package finder

import (
	"context"
	"errors"
	"sync"

	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrOptionNotFound is returned when a selection names an option that is not
// in the current result list
var ErrOptionNotFound = shared.NewDomainError("NOT_FOUND", "Option is not in the current result list")

// Finder drives the reducer: it serializes events, arms the debounce timer
// and runs catalog requests in the background. Timer expiry and network
// completion re-enter through the same serialized dispatch.
type Finder struct {
	mu      sync.Mutex
	reducer Reducer
	state   State
	changed chan struct{}

	source  catalog.OptionSource
	clock   Clock
	logger  *zap.Logger
	metrics Metrics
	tracer  trace.Tracer
	labels  LabelFunc

	timer       Timer
	cancelFetch context.CancelFunc
	baseCtx     context.Context
	stop        context.CancelFunc
	wg          sync.WaitGroup
}

// Option configures a Finder
type Option func(*Finder)

// WithClock replaces the system clock
func WithClock(c Clock) Option {
	return func(f *Finder) { f.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(f *Finder) { f.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(f *Finder) { f.metrics = m }
}

// LabelFunc runs fn with profiler labels attached to its goroutine
type LabelFunc func(ctx context.Context, labels map[string]string, fn func(context.Context))

// Unlabeled runs fn without labels
func Unlabeled(ctx context.Context, _ map[string]string, fn func(context.Context)) {
	fn(ctx)
}

// WithProfileLabels labels catalog fetches for the continuous profiler
func WithProfileLabels(fn LabelFunc) Option {
	return func(f *Finder) {
		if fn != nil {
			f.labels = fn
		}
	}
}

// New creates an idle finder over source
func New(source catalog.OptionSource, cfg Config, opts ...Option) *Finder {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Finder{
		reducer: NewReducer(cfg),
		state:   State{Status: StatusIdle},
		changed: make(chan struct{}),
		source:  source,
		clock:   SystemClock{},
		logger:  zap.NewNop(),
		metrics: nopMetrics{},
		tracer:  otel.Tracer("productmanager/finder"),
		labels:  Unlabeled,
		baseCtx: ctx,
		stop:    cancel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open mounts the finder and loads the default listing
func (f *Finder) Open() State {
	s, _ := f.dispatch(Opened{})
	return s
}

// Type records a keystroke producing query
func (f *Finder) Type(query string) State {
	s, _ := f.dispatch(QueryChanged{Query: query})
	return s
}

// LoadMore requests the next page when the list is scrolled near its end
func (f *Finder) LoadMore() State {
	s, _ := f.dispatch(ScrolledNearEnd{})
	return s
}

// Retry repeats the failed request
func (f *Finder) Retry() State {
	s, _ := f.dispatch(Retry{})
	return s
}

// Select tears down the session and returns a copy of the chosen option
func (f *Finder) Select(optionID string) (catalog.Option, error) {
	_, cmds := f.dispatch(Selected{OptionID: optionID})
	for _, c := range cmds {
		if d, ok := c.(Deliver); ok {
			return d.Option, nil
		}
	}
	return catalog.Option{}, ErrOptionNotFound
}

// Close unmounts the finder; outstanding work becomes stale
func (f *Finder) Close() State {
	s, _ := f.dispatch(Closed{})
	return s
}

// Shutdown closes the finder and waits for background requests to return
func (f *Finder) Shutdown() {
	f.Close()
	f.stop()
	f.wg.Wait()
}

// State returns the current snapshot
func (f *Finder) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Settled reports whether nothing is pending
func Settled(s State) bool {
	switch s.Status {
	case StatusIdle, StatusSettled, StatusError:
		return true
	}
	return false
}

// Wait blocks until cond holds for the current state or ctx ends
func (f *Finder) Wait(ctx context.Context, cond func(State) bool) (State, error) {
	for {
		f.mu.Lock()
		s, ch := f.state, f.changed
		f.mu.Unlock()

		if cond(s) {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ch:
		}
	}
}

func (f *Finder) dispatch(e Event) (State, []Command) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, cmds := f.reducer.Reduce(f.state, e)
	f.state = next
	for _, c := range cmds {
		f.execute(c)
	}
	close(f.changed)
	f.changed = make(chan struct{})
	return next, cmds
}

// execute runs with f.mu held and must not block.
func (f *Finder) execute(c Command) {
	switch cmd := c.(type) {
	case StartTimer:
		f.stopTimer()
		token := cmd.Token
		f.timer = f.clock.AfterFunc(cmd.Delay, func() {
			f.dispatch(DebounceElapsed{Token: token})
		})
	case CancelTimer:
		f.stopTimer()
	case CancelFetch:
		if f.cancelFetch != nil {
			f.cancelFetch()
			f.cancelFetch = nil
		}
	case Fetch:
		kind := KindSearch
		if cmd.Cursor != "" {
			kind = KindAppend
		}
		f.launch(kind, cmd.Token, cmd.Seq, func(ctx context.Context) (catalog.Page, error) {
			return f.source.Search(ctx, cmd.Query, cmd.Cursor, cmd.Limit)
		}, attribute.String("finder.query", cmd.Query), attribute.Bool("finder.append", cmd.Cursor != ""))
	case LoadDefault:
		f.launch(KindDefault, cmd.Token, cmd.Seq, func(ctx context.Context) (catalog.Page, error) {
			opts, err := f.source.ListDefault(ctx, cmd.Limit)
			return catalog.Page{Options: opts}, err
		})
	case Discarded:
		f.metrics.StaleDiscarded()
		f.logger.Debug("Discarded stale catalog response",
			zap.Uint64("token", cmd.Token),
			zap.Uint64("seq", cmd.Seq),
			zap.Uint64("live_token", f.state.Token),
		)
	case Failed:
		f.metrics.FetchFailed()
		f.logger.Warn("Catalog request failed",
			zap.Uint64("token", f.state.Token),
			zap.String("query", f.state.Query),
			zap.Bool("source_unavailable", errors.Is(cmd.Err, shared.ErrSourceUnavailable)),
			zap.Error(cmd.Err),
		)
	case Deliver:
		f.metrics.OptionSelected()
	}
}

func (f *Finder) stopTimer() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Finder) launch(kind string, token, seq uint64, call func(context.Context) (catalog.Page, error), attrs ...attribute.KeyValue) {
	ctx, cancel := context.WithCancel(f.baseCtx)
	f.cancelFetch = cancel
	f.metrics.FetchIssued(kind)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer cancel()

		ctx, span := f.tracer.Start(ctx, "finder."+kind, trace.WithAttributes(
			append(attrs, attribute.Int64("finder.token", int64(token)))...,
		))
		var (
			page catalog.Page
			err  error
		)
		f.labels(ctx, map[string]string{"operation": "finder." + kind}, func(ctx context.Context) {
			page, err = call(ctx)
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err != nil {
			f.dispatch(PageFailed{Token: token, Seq: seq, Err: err})
			return
		}
		f.dispatch(PageLoaded{Token: token, Seq: seq, Page: page})
	}()
}
