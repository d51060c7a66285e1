// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics provides business metrics for the posting engine.
// It tracks invoice postings, payment allocations and FX activity.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	invoicePostedTotal    *Counter
	postedBaseAmountTotal *Counter
	allocationTotal       *Counter
	realizedFXTotal       *Counter
	revaluationRunTotal   *Counter

	// Gauge metrics (point-in-time values)
	openForeignInvoices *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	exposureProvider FXExposureProvider
}

// CurrencyExposure is one open foreign-currency invoice bucket.
type CurrencyExposure struct {
	Currency  string
	Kind      string
	OpenCount int64
}

// FXExposureProvider provides open foreign-currency invoice data for
// periodic metrics collection. This interface lets the telemetry layer
// observe revaluation exposure without depending on the invoicing domain.
type FXExposureProvider interface {
	GetOpenForeignInvoices(ctx context.Context) ([]CurrencyExposure, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter            metric.Meter
	Logger           *zap.Logger
	CollectInterval  time.Duration // Default: 5 minutes
	ExposureProvider FXExposureProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:            cfg.Meter,
		logger:           logger,
		stopChan:         make(chan struct{}),
		exposureProvider: cfg.ExposureProvider,
	}

	var err error

	lm.invoicePostedTotal, err = NewCounter(
		cfg.Meter,
		"ledger_invoice_posted_total",
		"Total number of invoices posted to the general ledger",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	lm.postedBaseAmountTotal, err = NewCounter(
		cfg.Meter,
		"ledger_posted_base_amount_total",
		"Total posted invoice amount in base-currency cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	lm.allocationTotal, err = NewCounter(
		cfg.Meter,
		"ledger_allocation_total",
		"Total number of payment allocations",
		"{allocations}",
	)
	if err != nil {
		return nil, err
	}

	lm.realizedFXTotal, err = NewCounter(
		cfg.Meter,
		"ledger_realized_fx_total",
		"Total number of realized FX gain/loss entries",
		"{entries}",
	)
	if err != nil {
		return nil, err
	}

	lm.revaluationRunTotal, err = NewCounter(
		cfg.Meter,
		"ledger_revaluation_run_total",
		"Total number of FX revaluation runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	lm.openForeignInvoices, err = NewGauge(
		cfg.Meter,
		"ledger_open_foreign_invoices",
		"Open posted invoices denominated in a foreign currency",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordInvoicePosted records an invoice posting.
// Base amount is converted to cents for the counter.
func (lm *LedgerMetrics) RecordInvoicePosted(ctx context.Context, kind, currency string, baseAmount decimal.Decimal) {
	lm.invoicePostedTotal.Inc(ctx,
		AttrInvoiceKind.String(kind),
		AttrCurrency.String(currency),
	)

	cents := baseAmount.Mul(decimal.NewFromInt(100)).IntPart()
	lm.postedBaseAmountTotal.Add(ctx, cents,
		AttrInvoiceKind.String(kind),
	)
}

// RecordAllocation records a payment allocation.
func (lm *LedgerMetrics) RecordAllocation(ctx context.Context, kind string) {
	lm.allocationTotal.Inc(ctx, AttrInvoiceKind.String(kind))
}

// FXDirection labels realized FX entries for metrics.
type FXDirection string

const (
	FXDirectionGain FXDirection = "gain"
	FXDirectionLoss FXDirection = "loss"
)

// RecordRealizedFX records a realized FX gain/loss entry.
func (lm *LedgerMetrics) RecordRealizedFX(ctx context.Context, direction FXDirection) {
	lm.realizedFXTotal.Inc(ctx, AttrFXDirection.String(string(direction)))
}

// RecordRevaluationRun records an unrealized FX revaluation run.
func (lm *LedgerMetrics) RecordRevaluationRun(ctx context.Context) {
	lm.revaluationRunTotal.Inc(ctx)
}

// RecordOpenForeignInvoices records the open foreign-currency invoice count
// for one currency/kind bucket. This is a gauge updated periodically.
func (lm *LedgerMetrics) RecordOpenForeignInvoices(ctx context.Context, exposure CurrencyExposure) {
	lm.openForeignInvoices.Record(ctx, exposure.OpenCount,
		AttrCurrency.String(exposure.Currency),
		AttrInvoiceKind.String(exposure.Kind),
	)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go lm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	lm.collectExposureMetrics(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collectExposureMetrics(ctx)
		}
	}
}

// collectExposureMetrics collects open foreign-currency invoice gauges.
func (lm *LedgerMetrics) collectExposureMetrics(ctx context.Context) {
	if lm.exposureProvider == nil {
		lm.logger.Debug("No exposure provider configured, skipping exposure metrics collection")
		return
	}

	exposures, err := lm.exposureProvider.GetOpenForeignInvoices(ctx)
	if err != nil {
		lm.logger.Error("Failed to collect FX exposure metrics", zap.Error(err))
		return
	}

	for _, exposure := range exposures {
		lm.RecordOpenForeignInvoices(ctx, exposure)
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
