package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const startedAtKey = "telemetry:started_at"

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	DBSystem        string
	WithVariables   bool // include bind values in statements; development only
	SlowQueryThresh time.Duration
	TracerProvider  trace.TracerProvider // global provider when nil
}

// InstrumentGorm registers otelgorm on db and marks slow statements on
// their spans
func InstrumentGorm(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.WithVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		tx.InstanceSet(startedAtKey, time.Now())
	}
	after := func(tx *gorm.DB) {
		markSlowQuery(tx, cfg.SlowQueryThresh)
	}

	cb := db.Callback()
	regs := []error{
		cb.Create().Before("gorm:create").Register("slow_query:before_create", before),
		cb.Create().After("gorm:create").Register("slow_query:after_create", after),
		cb.Query().Before("gorm:query").Register("slow_query:before_query", before),
		cb.Query().After("gorm:query").Register("slow_query:after_query", after),
		cb.Update().Before("gorm:update").Register("slow_query:before_update", before),
		cb.Update().After("gorm:update").Register("slow_query:after_update", after),
		cb.Delete().Before("gorm:delete").Register("slow_query:before_delete", before),
		cb.Delete().After("gorm:delete").Register("slow_query:after_delete", after),
	}
	if err := errors.Join(regs...); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func markSlowQuery(tx *gorm.DB, threshold time.Duration) {
	if tx.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(tx.Statement.Context)
	if !span.IsRecording() {
		return
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
	}
	v, ok := tx.InstanceGet(startedAtKey)
	if !ok {
		return
	}
	if elapsed := time.Since(v.(time.Time)); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
