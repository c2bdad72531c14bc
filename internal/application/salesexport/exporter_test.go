package salesexport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sazar-neudorff/productmanager/internal/domain/salesexport"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchOrders(ctx context.Context, w salesexport.Window, channels []string) ([]salesexport.Order, error) {
	args := m.Called(ctx, w, channels)
	orders, _ := args.Get(0).([]salesexport.Order)
	return orders, args.Error(1)
}

func (m *mockSource) FetchPositions(ctx context.Context, w salesexport.Window, channels []string, status string) ([]salesexport.Position, error) {
	args := m.Called(ctx, w, channels, status)
	positions, _ := args.Get(0).([]salesexport.Position)
	return positions, args.Error(1)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Write(ctx context.Context, w salesexport.Window, rows []salesexport.Row, path string) (string, error) {
	args := m.Called(ctx, w, rows, path)
	return args.String(0), args.Error(1)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExporter_DefaultWindow(t *testing.T) {
	source := &mockSource{}
	writer := &mockWriter{}
	want := salesexport.Window{Start: day(2025, 1, 6), End: day(2025, 1, 12)}
	channels := salesexport.DefaultChannels

	source.On("FetchOrders", mock.Anything, want, channels).Return([]salesexport.Order{
		{Number: "A-100", Date: day(2025, 1, 7), Channel: channels[0], Country: "DE"},
		{Number: "A-200", Date: day(2025, 1, 8), Channel: channels[0]},
	}, nil).Once()
	source.On("FetchPositions", mock.Anything, want, channels, salesexport.StatusCompleted).Return([]salesexport.Position{
		{OrderNumber: "A-100", Date: day(2025, 1, 7), Channel: channels[0], Status: "abgeschlossen",
			ArticleNumber: "ND-4100", ArticleName: "Ferramol", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("12.99")},
	}, nil).Once()
	writer.On("Write", mock.Anything, want, mock.MatchedBy(func(rows []salesexport.Row) bool {
		return len(rows) == 1 && rows[0].OrderNumber == "A-100" && rows[0].NetTotal.StringFixed(2) == "25.98"
	}), "").Return("exports/weclapp_orders_20250106_20250112.csv", nil).Once()

	exporter := NewExporter(source, writer,
		WithNow(func() time.Time { return time.Date(2025, 1, 20, 6, 0, 0, 0, time.UTC) }),
		WithLogger(zaptest.NewLogger(t)),
	)
	result, err := exporter.Export(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, want, result.Window)
	assert.Equal(t, 1, result.RowsWritten)
	assert.Equal(t, "exports/weclapp_orders_20250106_20250112.csv", result.OutputPath)

	source.AssertExpectations(t)
	writer.AssertExpectations(t)
}

func TestExporter_ExplicitStartAndOutput(t *testing.T) {
	source := &mockSource{}
	writer := &mockWriter{}
	start := day(2025, 2, 3)
	want := salesexport.Window{Start: start, End: day(2025, 2, 9)}

	source.On("FetchOrders", mock.Anything, want, mock.Anything).Return(nil, nil)
	source.On("FetchPositions", mock.Anything, want, mock.Anything, mock.Anything).Return(nil, nil)
	writer.On("Write", mock.Anything, want, mock.Anything, "/tmp/report.csv").Return("/tmp/report.csv", nil)

	rules := salesexport.DefaultRules()
	rules.PositionStatus = ""
	result, err := NewExporter(source, writer, WithRules(rules)).Export(context.Background(), Request{Start: &start, OutputPath: "/tmp/report.csv"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RowsWritten)
	source.AssertCalled(t, "FetchPositions", mock.Anything, want, mock.Anything, "")
}

func TestExporter_FetchFailureWritesNothing(t *testing.T) {
	source := &mockSource{}
	writer := &mockWriter{}
	source.On("FetchOrders", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("HTTP 503"))

	_, err := NewExporter(source, writer).Export(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch orders")
	writer.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	source.AssertNotCalled(t, "FetchPositions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExporter_InvertedWindow(t *testing.T) {
	start, end := day(2025, 2, 9), day(2025, 2, 3)
	_, err := NewExporter(&mockSource{}, &mockWriter{}).Export(context.Background(), Request{Start: &start, End: &end})
	assert.Error(t, err)
}
