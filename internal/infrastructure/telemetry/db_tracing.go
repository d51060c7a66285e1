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

const dbTraceStartKey = "ledger:db_trace_start"

// DBTracingConfig holds configuration for database span instrumentation.
type DBTracingConfig struct {
	Enabled bool
	// RecordSQLVariables includes bound query parameters in span
	// attributes. Ledger rows carry party and amount data, so this
	// stays off outside development.
	RecordSQLVariables bool
	SlowQueryThreshold time.Duration
}

// DefaultDBTracingConfig returns the production defaults.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:            true,
		RecordSQLVariables: false,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

// DBTracingPlugin is a gorm plugin that layers slow-query detection and
// error marking on top of the otelgorm span instrumentation.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates the plugin. Register it with db.Use.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// Name implements gorm.Plugin.
func (p *DBTracingPlugin) Name() string {
	return "ledger:db_tracing"
}

// Initialize implements gorm.Plugin. It registers otelgorm plus the
// timing callbacks around every statement kind.
func (p *DBTracingPlugin) Initialize(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	var opts []otelgorm.Option
	if !p.config.RecordSQLVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := otelgorm.NewPlugin(opts...).Initialize(db); err != nil {
		return err
	}

	registrations := []func() error{
		func() error {
			return db.Callback().Create().Before("gorm:create").Register("ledger_trace:start_create", p.markStart)
		},
		func() error {
			return db.Callback().Query().Before("gorm:query").Register("ledger_trace:start_query", p.markStart)
		},
		func() error {
			return db.Callback().Update().Before("gorm:update").Register("ledger_trace:start_update", p.markStart)
		},
		func() error {
			return db.Callback().Delete().Before("gorm:delete").Register("ledger_trace:start_delete", p.markStart)
		},
		func() error {
			return db.Callback().Row().Before("gorm:row").Register("ledger_trace:start_row", p.markStart)
		},
		func() error {
			return db.Callback().Raw().Before("gorm:raw").Register("ledger_trace:start_raw", p.markStart)
		},
		func() error {
			return db.Callback().Create().After("gorm:create").Register("ledger_trace:finish_create", p.annotateSpan)
		},
		func() error {
			return db.Callback().Query().After("gorm:query").Register("ledger_trace:finish_query", p.annotateSpan)
		},
		func() error {
			return db.Callback().Update().After("gorm:update").Register("ledger_trace:finish_update", p.annotateSpan)
		},
		func() error {
			return db.Callback().Delete().After("gorm:delete").Register("ledger_trace:finish_delete", p.annotateSpan)
		},
		func() error {
			return db.Callback().Row().After("gorm:row").Register("ledger_trace:finish_row", p.annotateSpan)
		},
		func() error {
			return db.Callback().Raw().After("gorm:raw").Register("ledger_trace:finish_raw", p.annotateSpan)
		},
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("record_sql_variables", p.config.RecordSQLVariables),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThreshold),
	)

	return nil
}

// markStart records the statement start time for slow-query detection.
func (p *DBTracingPlugin) markStart(db *gorm.DB) {
	db.InstanceSet(dbTraceStartKey, time.Now())
}

// annotateSpan enriches the otelgorm span with row counts, the table
// name, error status and a slow-query event when the statement exceeded
// the threshold.
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if v, ok := db.InstanceGet(dbTraceStartKey); ok {
		if startTime, ok := v.(time.Time); ok {
			elapsed := time.Since(startTime)
			if elapsed > p.config.SlowQueryThreshold {
				span.SetAttributes(
					attribute.Bool("db.slow_query", true),
					attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
				)
				span.AddEvent("slow_query", trace.WithAttributes(
					attribute.Int64("duration_ms", elapsed.Milliseconds()),
					attribute.Int64("threshold_ms", p.config.SlowQueryThreshold.Milliseconds()),
				))
			}
		}
	}
}
