// Package salesexport runs the weekly order report: fetch, filter, write.
package salesexport

import (
	"context"
	"fmt"
	"time"

	"github.com/sazar-neudorff/productmanager/internal/domain/salesexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RowWriter persists report rows and returns where they went. An empty
// path selects the writer's default location for the window.
type RowWriter interface {
	Write(ctx context.Context, w salesexport.Window, rows []salesexport.Row, path string) (string, error)
}

// Request selects the reporting window and output. Nil bounds are filled
// in by salesexport.ResolveWindow.
type Request struct {
	Start      *time.Time
	End        *time.Time
	OutputPath string
}

// Result describes a finished export
type Result struct {
	Window      salesexport.Window
	OutputPath  string
	RowsWritten int
}

// Exporter builds the weekly order report
type Exporter struct {
	source      salesexport.OrderSource
	writer      RowWriter
	rules       salesexport.Rules
	offsetWeeks int
	now         func() time.Time
	logger      *zap.Logger
	tracer      trace.Tracer
}

// Option configures an Exporter
type Option func(*Exporter)

// WithRules replaces salesexport.DefaultRules
func WithRules(r salesexport.Rules) Option {
	return func(e *Exporter) { e.rules = r }
}

// WithOffsetWeeks sets how many weeks back the default window lies
func WithOffsetWeeks(n int) Option {
	return func(e *Exporter) {
		if n >= 0 {
			e.offsetWeeks = n
		}
	}
}

// WithNow replaces the clock used for the default window
func WithNow(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// NewExporter creates an exporter reading from source and writing to writer
func NewExporter(source salesexport.OrderSource, writer RowWriter, opts ...Option) *Exporter {
	e := &Exporter{
		source:      source,
		writer:      writer,
		rules:       salesexport.DefaultRules(),
		offsetWeeks: salesexport.DefaultOffsetWeeks,
		now:         time.Now,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("productmanager/salesexport"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export fetches orders and completed positions for the window, joins
// them and writes the report. Nothing is written when fetching fails.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	window, err := salesexport.ResolveWindow(req.Start, req.End, e.now(), e.offsetWeeks)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "salesexport.export", trace.WithAttributes(
		attribute.String("export.window", window.String()),
	))
	defer span.End()

	result, err := e.run(ctx, window, req.OutputPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("export.rows", result.RowsWritten))
	return result, nil
}

func (e *Exporter) run(ctx context.Context, window salesexport.Window, path string) (*Result, error) {
	orders, err := e.source.FetchOrders(ctx, window, e.rules.Channels)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	positions, err := e.source.FetchPositions(ctx, window, e.rules.Channels, e.rules.PositionStatus)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	rows := salesexport.BuildRows(orders, positions, window, e.rules)
	out, err := e.writer.Write(ctx, window, rows, path)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	e.logger.Info("Order export written",
		zap.String("window", window.String()),
		zap.Int("orders_fetched", len(orders)),
		zap.Int("positions_fetched", len(positions)),
		zap.Int("rows", len(rows)),
		zap.String("path", out),
	)
	return &Result{Window: window, OutputPath: out, RowsWritten: len(rows)}, nil
}
