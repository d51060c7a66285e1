package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observedGormLogger(t *testing.T, level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func selectEntries(rows int64) func() (string, int64) {
	return func() (string, int64) {
		return "SELECT * FROM journal_entries", rows
	}
}

func TestNewGormLogger_Defaults(t *testing.T) {
	gormLog, _ := observedGormLogger(t, gormlogger.Info)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	assert.True(t, gormLog.ignoreRecordNotFoundError)
}

func TestNewGormLogger_Options(t *testing.T) {
	gormLog, _ := observedGormLogger(t, gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, 500*time.Millisecond, gormLog.slowThreshold)
	assert.False(t, gormLog.ignoreRecordNotFoundError)
}

func TestGormLogger_LogModeReturnsClone(t *testing.T) {
	gormLog, _ := observedGormLogger(t, gormlogger.Info)

	clone := gormLog.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	warnLog, ok := clone.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, warnLog.logLevel)
}

func TestGormLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    gormlogger.LogLevel
		log      func(g *GormLogger)
		expected string
		zapLevel zapcore.Level
	}{
		{
			name:     "info",
			level:    gormlogger.Info,
			log:      func(g *GormLogger) { g.Info(context.Background(), "resolved %d rates", 3) },
			expected: "resolved 3 rates",
			zapLevel: zapcore.InfoLevel,
		},
		{
			name:     "warn",
			level:    gormlogger.Warn,
			log:      func(g *GormLogger) { g.Warn(context.Background(), "stale rate for %s", "GBP") },
			expected: "stale rate for GBP",
			zapLevel: zapcore.WarnLevel,
		},
		{
			name:     "error",
			level:    gormlogger.Error,
			log:      func(g *GormLogger) { g.Error(context.Background(), "constraint violated") },
			expected: "constraint violated",
			zapLevel: zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormLog, recorded := observedGormLogger(t, tt.level)
			tt.log(gormLog)

			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Contains(t, logs[0].Message, tt.expected)
			assert.Equal(t, tt.zapLevel, logs[0].Level)
		})
	}
}

func TestGormLogger_SilentSuppressesEverything(t *testing.T) {
	gormLog, recorded := observedGormLogger(t, gormlogger.Silent)

	gormLog.Info(context.Background(), "suppressed")
	gormLog.Trace(context.Background(), time.Now(), selectEntries(5), nil)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_Trace_Error(t *testing.T) {
	gormLog, recorded := observedGormLogger(t, gormlogger.Error)

	gormLog.Trace(context.Background(), time.Now(), selectEntries(0), errors.New("connection reset"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SQL Error")
}

func TestGormLogger_Trace_RecordNotFoundIgnored(t *testing.T) {
	gormLog, recorded := observedGormLogger(t, gormlogger.Error,
		WithIgnoreRecordNotFoundError(true))

	gormLog.Trace(context.Background(), time.Now(), selectEntries(0), gormlogger.ErrRecordNotFound)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_Trace_SlowQuery(t *testing.T) {
	gormLog, recorded := observedGormLogger(t, gormlogger.Warn,
		WithSlowThreshold(time.Nanosecond))

	begin := time.Now().Add(-time.Second)
	gormLog.Trace(context.Background(), begin, selectEntries(10), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SLOW SQL")
}

func TestGormLogger_Trace_NormalQuery(t *testing.T) {
	gormLog, recorded := observedGormLogger(t, gormlogger.Info)

	gormLog.Trace(context.Background(), time.Now(), selectEntries(5), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SQL Query")
}

func TestGormLogger_Trace_CarriesRequestID(t *testing.T) {
	gormLog, recorded := observedGormLogger(t, gormlogger.Info)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-7c1d")
	gormLog.Trace(ctx, time.Now(), selectEntries(5), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)

	found := false
	for _, field := range logs[0].Context {
		if field.Key == "request_id" {
			found = true
			assert.Equal(t, "req-7c1d", field.String)
		}
	}
	assert.True(t, found, "request_id should be in log fields")
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}

func TestGormLoggerImplementsInterface(t *testing.T) {
	gormLog, _ := observedGormLogger(t, gormlogger.Info)
	var _ gormlogger.Interface = gormLog
}
