package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func newMockGormDB(t *testing.T) *gorm.DB {
	t.Helper()
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestDefaultDBMetricsConfig(t *testing.T) {
	cfg := DefaultDBMetricsConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, cfg.PoolStatsInterval)
}

func TestNewDBMetrics_AppliesDefaults(t *testing.T) {
	_, provider := newManualMeter(t)

	m, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, m.config.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, m.config.PoolStatsInterval)
	assert.NotNil(t, m.logger)
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	reader, provider := newManualMeter(t)
	ctx := context.Background()

	m, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 100 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	m.RecordQuery(ctx, "select", "invoices", 10*time.Millisecond)
	m.RecordQuery(ctx, "INSERT", "journal_entries", 250*time.Millisecond)
	m.RecordQuery(ctx, "", "payments", 5*time.Millisecond)

	total, found := collectMetric(t, reader, "db_query_total")
	require.True(t, found)
	sum := total.Data.(metricdata.Sum[int64])
	assert.Len(t, sum.DataPoints, 3, "select, INSERT and empty normalize to distinct operations")

	operations := map[string]int64{}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(AttrDBOperation); ok {
			operations[v.AsString()] = dp.Value
		}
	}
	assert.Equal(t, int64(1), operations["SELECT"])
	assert.Equal(t, int64(1), operations["INSERT"])
	assert.Equal(t, int64(1), operations["UNKNOWN"])

	_, found = collectMetric(t, reader, "db_query_duration_seconds")
	assert.True(t, found)

	slow, found := collectMetric(t, reader, "db_slow_query_total")
	require.True(t, found)
	slowSum := slow.Data.(metricdata.Sum[int64])
	require.Len(t, slowSum.DataPoints, 1, "only the 250ms INSERT crossed the threshold")
	table, ok := slowSum.DataPoints[0].Attributes.Value(AttrDBTable)
	require.True(t, ok)
	assert.Equal(t, "journal_entries", table.AsString())
}

func TestDBMetrics_RecordQuery_EmptyTableOnSlowQuery(t *testing.T) {
	reader, provider := newManualMeter(t)

	m, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 50 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	m.RecordQuery(context.Background(), "SELECT", "", 100*time.Millisecond)

	slow, found := collectMetric(t, reader, "db_slow_query_total")
	require.True(t, found)
	slowSum := slow.Data.(metricdata.Sum[int64])
	require.Len(t, slowSum.DataPoints, 1)
	table, ok := slowSum.DataPoints[0].Attributes.Value(AttrDBTable)
	require.True(t, ok)
	assert.Equal(t, "unknown", table.AsString())
}

func TestDBMetrics_PoolStatsCollection(t *testing.T) {
	reader, provider := newManualMeter(t)

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	m, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{
		Enabled:           true,
		PoolStatsInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	m.SetSQLDB(mockDB)
	m.StartPoolStatsCollection(context.Background())
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	_, found := collectMetric(t, reader, "db_pool_connections_max")
	assert.True(t, found)
	pool, found := collectMetric(t, reader, "db_pool_connections")
	require.True(t, found)

	gauge := pool.Data.(metricdata.Gauge[int64])
	states := map[string]bool{}
	for _, dp := range gauge.DataPoints {
		if v, ok := dp.Attributes.Value(AttrDBState); ok {
			states[v.AsString()] = true
		}
	}
	assert.True(t, states["idle"])
	assert.True(t, states["in_use"])
	assert.True(t, states["open"])
}

func TestDBMetrics_StartPoolStatsCollection_NoSQLDB(t *testing.T) {
	_, provider := newManualMeter(t)

	m, err := NewDBMetrics(provider.Meter("test"), DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.StartPoolStatsCollection(context.Background())
		m.Stop()
	})
}

func TestDBMetrics_StopIdempotent(t *testing.T) {
	_, provider := newManualMeter(t)

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	m, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{
		Enabled:           true,
		PoolStatsInterval: 100 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	m.SetSQLDB(mockDB)
	m.StartPoolStatsCollection(context.Background())

	m.Stop()
	assert.NotPanics(t, func() { m.Stop() })
}

func TestDBMetricsPlugin_Name(t *testing.T) {
	_, provider := newManualMeter(t)
	m, err := NewDBMetrics(provider.Meter("test"), DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "ledger:db_metrics", NewDBMetricsPlugin(m).Name())
}

func TestDBMetricsPlugin_Initialize(t *testing.T) {
	_, provider := newManualMeter(t)
	m, err := NewDBMetrics(provider.Meter("test"), DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	db := newMockGormDB(t)
	require.NoError(t, db.Use(NewDBMetricsPlugin(m)))
}

func TestDetectOperationType(t *testing.T) {
	tests := []struct {
		sql      string
		expected string
	}{
		{"SELECT * FROM invoices", "SELECT"},
		{"  select id from invoices", "SELECT"},
		{"INSERT INTO journal_entries (id) VALUES (1)", "INSERT"},
		{"UPDATE invoices SET status = 'posted'", "UPDATE"},
		{"delete from payments where id = 1", "DELETE"},
		{"TRUNCATE TABLE fx_rates", "OTHER"},
		{"", "OTHER"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.expected, detectOperationType(tt.sql))
		})
	}
}

func TestRegisterDBMetrics(t *testing.T) {
	logger := zap.NewNop()

	t.Run("disabled config returns nil", func(t *testing.T) {
		m, err := RegisterDBMetrics(newMockGormDB(t), nil, DBMetricsConfig{Enabled: false}, logger)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("nil meter provider returns nil", func(t *testing.T) {
		m, err := RegisterDBMetrics(newMockGormDB(t), nil, DBMetricsConfig{Enabled: true}, logger)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("enabled registers plugin and metrics", func(t *testing.T) {
		_, provider := newManualMeter(t)
		mp := &MeterProvider{
			provider: provider,
			logger:   logger,
			config:   MetricsConfig{Enabled: true},
		}

		m, err := RegisterDBMetrics(newMockGormDB(t), mp, DefaultDBMetricsConfig(), logger)
		require.NoError(t, err)
		require.NotNil(t, m)
		m.Stop()
	})
}

func TestDBMetrics_ConcurrentRecordQuery(t *testing.T) {
	reader, provider := newManualMeter(t)
	ctx := context.Background()

	m, err := NewDBMetrics(provider.Meter("test"), DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	operations := []string{"SELECT", "INSERT", "UPDATE", "DELETE"}
	tables := []string{"invoices", "payments", "journal_entries", "fx_rates"}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordQuery(ctx, operations[i%4], tables[i%4], time.Duration(i)*time.Millisecond)
		}(i)
	}
	wg.Wait()

	total, found := collectMetric(t, reader, "db_query_total")
	require.True(t, found)

	var count int64
	for _, dp := range total.Data.(metricdata.Sum[int64]).DataPoints {
		count += dp.Value
	}
	assert.Equal(t, int64(100), count)
}
