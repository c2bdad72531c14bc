package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestOrderMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewOrderMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.FetchIssued("search")
	m.FetchIssued("search")
	m.FetchIssued("default")
	m.FetchFailed()
	m.StaleDiscarded()
	m.StaleDiscarded()
	m.OptionSelected()
	m.SubmitAttempt("submitted")
	m.SubmitAttempt("invalid")
	m.FormsActive(1)
	m.FormsActive(1)
	m.FormsActive(-1)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["finder.fetches"], attribute.String("kind", "search")))
	assert.Equal(t, int64(1), sumOf(t, data["finder.fetches"], attribute.String("kind", "default")))
	assert.Equal(t, int64(1), sumOf(t, data["finder.fetch_failures"]))
	assert.Equal(t, int64(2), sumOf(t, data["finder.stale_discards"]))
	assert.Equal(t, int64(1), sumOf(t, data["finder.selections"]))
	assert.Equal(t, int64(1), sumOf(t, data["order.submit_attempts"], attribute.String("outcome", "invalid")))
	assert.Equal(t, int64(1), sumOf(t, data["order.active_forms"]))
}

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Meter("test"))
	assert.False(t, p.ZapCore(zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestLevelFilterCore(t *testing.T) {
	inner := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&discard{}), zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))
	assert.False(t, core.With(nil).Enabled(zapcore.DebugLevel))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type draftRow struct {
	ID   string `gorm:"primaryKey"`
	Note string
}

func TestInstrumentGorm_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&draftRow{}))

	require.NoError(t, InstrumentGorm(db, DBTracingConfig{DBSystem: "sqlite", TracerProvider: tp}, zap.NewNop()))

	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, db.WithContext(ctx).Create(&draftRow{ID: "a", Note: "x"}).Error)
	var got draftRow
	require.NoError(t, db.WithContext(ctx).First(&got, "id = ?", "a").Error)
	span.End()

	assert.Equal(t, "x", got.Note)
	assert.GreaterOrEqual(t, len(recorder.Ended()), 2)
}
