package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type journalRow struct {
	ID          uint   `gorm:"primaryKey"`
	EntryNumber string `gorm:"size:32"`
	CreatedAt   time.Time
}

func (journalRow) TableName() string { return "journal_rows" }

func newTracingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&journalRow{}))
	return db
}

func newSpanRecorder() (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return tp, recorder
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.RecordSQLVariables, "bound parameters stay out of spans by default")
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
}

func TestDBTracingPlugin_Name(t *testing.T) {
	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	assert.Equal(t, "ledger:db_tracing", p.Name())
}

func TestDBTracingPlugin_Initialize_Disabled(t *testing.T) {
	db := newTracingTestDB(t)
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: false}, zap.NewNop())

	require.NoError(t, db.Use(p))

	// No callbacks were registered, queries still work.
	var row journalRow
	err := db.First(&row).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDBTracingPlugin_Initialize_Enabled(t *testing.T) {
	db := newTracingTestDB(t)
	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	require.NoError(t, db.Use(p))

	require.NoError(t, db.Create(&journalRow{EntryNumber: "JE-00000001"}).Error)

	var row journalRow
	require.NoError(t, db.First(&row, "entry_number = ?", "JE-00000001").Error)
	assert.Equal(t, "JE-00000001", row.EntryNumber)
}

func TestDBTracingPlugin_Initialize_DoubleRegistrationFails(t *testing.T) {
	db := newTracingTestDB(t)
	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	require.NoError(t, p.Initialize(db))
	assert.Error(t, p.Initialize(db), "callback names collide on the second registration")
}

func TestDBTracingPlugin_AnnotateSpan_RowsAndTable(t *testing.T) {
	db := newTracingTestDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "post-invoice")

	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	rows := []journalRow{{EntryNumber: "JE-1"}, {EntryNumber: "JE-2"}, {EntryNumber: "JE-3"}}
	result := db.WithContext(ctx).Create(&rows)
	require.NoError(t, result.Error)

	p.annotateSpan(result)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, attribute.Int64("db.rows_affected", 3))
	assert.Contains(t, attrs, attribute.String("db.sql.table", "journal_rows"))
}

func TestDBTracingPlugin_AnnotateSpan_SlowQuery(t *testing.T) {
	db := newTracingTestDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "slow-query")

	cfg := DefaultDBTracingConfig()
	cfg.SlowQueryThreshold = time.Millisecond
	p := NewDBTracingPlugin(cfg, zap.NewNop())

	tx := db.WithContext(ctx).Session(&gorm.Session{})
	tx.Statement.Table = "journal_rows"
	tx.InstanceSet(dbTraceStartKey, time.Now().Add(-time.Second))

	p.annotateSpan(tx)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, attribute.Bool("db.slow_query", true))

	foundDuration := false
	for _, attr := range attrs {
		if attr.Key == "db.query_duration_ms" {
			foundDuration = true
			assert.GreaterOrEqual(t, attr.Value.AsInt64(), int64(1000))
		}
	}
	assert.True(t, foundDuration)

	require.Len(t, spans[0].Events(), 1)
	event := spans[0].Events()[0]
	assert.Equal(t, "slow_query", event.Name)
	assert.Contains(t, event.Attributes, attribute.Int64("threshold_ms", 1))
}

func TestDBTracingPlugin_AnnotateSpan_FastQueryHasNoSlowMarkers(t *testing.T) {
	db := newTracingTestDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "fast-query")

	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	tx := db.WithContext(ctx).Session(&gorm.Session{})
	tx.InstanceSet(dbTraceStartKey, time.Now())
	p.annotateSpan(tx)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	for _, attr := range spans[0].Attributes() {
		assert.NotEqual(t, attribute.Key("db.slow_query"), attr.Key)
	}
	assert.Empty(t, spans[0].Events())
}

func TestDBTracingPlugin_AnnotateSpan_ErrorStatus(t *testing.T) {
	db := newTracingTestDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "failing-query")

	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	tx := db.WithContext(ctx).Session(&gorm.Session{})
	_ = tx.AddError(assert.AnError)
	p.annotateSpan(tx)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestDBTracingPlugin_AnnotateSpan_RecordNotFoundIsNotAnError(t *testing.T) {
	db := newTracingTestDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "missing-row")

	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	var row journalRow
	result := db.WithContext(ctx).First(&row, 99999)
	require.ErrorIs(t, result.Error, gorm.ErrRecordNotFound)

	p.annotateSpan(result)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestDBTracingPlugin_AnnotateSpan_NoRecordingSpan(t *testing.T) {
	db := newTracingTestDB(t)
	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	tx := db.WithContext(context.Background()).Session(&gorm.Session{})
	assert.NotPanics(t, func() { p.annotateSpan(tx) })
}
