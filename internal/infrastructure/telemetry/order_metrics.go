package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderMetrics records finder and order form activity
type OrderMetrics struct {
	fetches     metric.Int64Counter
	failures    metric.Int64Counter
	stale       metric.Int64Counter
	selections  metric.Int64Counter
	submits     metric.Int64Counter
	activeForms metric.Int64UpDownCounter
}

// NewOrderMetrics creates the instruments on meter
func NewOrderMetrics(meter metric.Meter) (*OrderMetrics, error) {
	m := &OrderMetrics{}
	var err error

	if m.fetches, err = meter.Int64Counter("finder.fetches",
		metric.WithDescription("Catalog requests issued by the product finder"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create counter finder.fetches: %w", err)
	}
	if m.failures, err = meter.Int64Counter("finder.fetch_failures",
		metric.WithDescription("Catalog requests that ended in source unavailable"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create counter finder.fetch_failures: %w", err)
	}
	if m.stale, err = meter.Int64Counter("finder.stale_discards",
		metric.WithDescription("Responses dropped because their session or query was superseded"),
		metric.WithUnit("{response}")); err != nil {
		return nil, fmt.Errorf("failed to create counter finder.stale_discards: %w", err)
	}
	if m.selections, err = meter.Int64Counter("finder.selections",
		metric.WithDescription("Options moved into a line item"),
		metric.WithUnit("{selection}")); err != nil {
		return nil, fmt.Errorf("failed to create counter finder.selections: %w", err)
	}
	if m.submits, err = meter.Int64Counter("order.submit_attempts",
		metric.WithDescription("Submit attempts by outcome"),
		metric.WithUnit("{attempt}")); err != nil {
		return nil, fmt.Errorf("failed to create counter order.submit_attempts: %w", err)
	}
	if m.activeForms, err = meter.Int64UpDownCounter("order.active_forms",
		metric.WithDescription("Mounted order form sessions"),
		metric.WithUnit("{form}")); err != nil {
		return nil, fmt.Errorf("failed to create counter order.active_forms: %w", err)
	}
	return m, nil
}

func (m *OrderMetrics) FetchIssued(kind string) {
	m.fetches.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *OrderMetrics) FetchFailed() {
	m.failures.Add(context.Background(), 1)
}

func (m *OrderMetrics) StaleDiscarded() {
	m.stale.Add(context.Background(), 1)
}

func (m *OrderMetrics) OptionSelected() {
	m.selections.Add(context.Background(), 1)
}

func (m *OrderMetrics) SubmitAttempt(outcome string) {
	m.submits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *OrderMetrics) FormsActive(delta int64) {
	m.activeForms.Add(context.Background(), delta)
}
