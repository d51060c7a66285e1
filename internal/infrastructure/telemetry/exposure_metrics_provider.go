// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormFXExposureProvider implements FXExposureProvider using GORM.
// It queries the invoices table directly for aggregated exposure data.
type GormFXExposureProvider struct {
	db           *gorm.DB
	baseCurrency string
}

// NewGormFXExposureProvider creates a new GormFXExposureProvider.
func NewGormFXExposureProvider(db *gorm.DB, baseCurrency string) *GormFXExposureProvider {
	return &GormFXExposureProvider{db: db, baseCurrency: baseCurrency}
}

// GetOpenForeignInvoices returns open posted invoice counts per foreign
// currency and invoice kind. Fully paid and cancelled invoices carry no
// revaluation exposure and are excluded.
func (p *GormFXExposureProvider) GetOpenForeignInvoices(ctx context.Context) ([]CurrencyExposure, error) {
	type result struct {
		Currency  string `gorm:"column:currency"`
		Kind      string `gorm:"column:kind"`
		OpenCount int64  `gorm:"column:open_count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("invoices").
		Select("currency, kind, COUNT(*) as open_count").
		Where("posting_status = ? AND payment_status <> ? AND cancelled = ?", "POSTED", "PAID", false).
		Where("currency <> ?", p.baseCurrency).
		Group("currency, kind").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	exposures := make([]CurrencyExposure, 0, len(results))
	for _, r := range results {
		exposures = append(exposures, CurrencyExposure{
			Currency:  r.Currency,
			Kind:      r.Kind,
			OpenCount: r.OpenCount,
		})
	}

	return exposures, nil
}
