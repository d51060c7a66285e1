package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFilingRepository implements FilingRepository using GORM
type GormFilingRepository struct {
	db *gorm.DB
}

// NewGormFilingRepository creates a new GormFilingRepository
func NewGormFilingRepository(db *gorm.DB) *GormFilingRepository {
	return &GormFilingRepository{db: db}
}

// FindByID finds a corporate tax filing by ID
func (r *GormFilingRepository) FindByID(ctx context.Context, id uuid.UUID) (*tax.CorporateTaxFiling, error) {
	var filing tax.CorporateTaxFiling
	if err := dbFrom(ctx, r.db).First(&filing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &filing, nil
}

// FindByPeriod finds the filing for an exact accounting period
func (r *GormFilingRepository) FindByPeriod(ctx context.Context, periodStart, periodEnd time.Time) (*tax.CorporateTaxFiling, error) {
	var filing tax.CorporateTaxFiling
	err := dbFrom(ctx, r.db).
		Where("period_start = ? AND period_end = ?", periodStart, periodEnd).
		First(&filing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &filing, nil
}

// FindAll returns all filings, most recent period first
func (r *GormFilingRepository) FindAll(ctx context.Context) ([]*tax.CorporateTaxFiling, error) {
	var filings []*tax.CorporateTaxFiling
	if err := dbFrom(ctx, r.db).Order("period_start DESC").Find(&filings).Error; err != nil {
		return nil, err
	}
	return filings, nil
}

// Save creates or updates a filing
func (r *GormFilingRepository) Save(ctx context.Context, filing *tax.CorporateTaxFiling) error {
	return dbFrom(ctx, r.db).Save(filing).Error
}

// SaveWithLock updates a filing using optimistic locking.
// The filing's version must already be incremented by the domain layer.
func (r *GormFilingRepository) SaveWithLock(ctx context.Context, filing *tax.CorporateTaxFiling) error {
	result := dbFrom(ctx, r.db).Model(filing).
		Where("id = ? AND version = ?", filing.ID, filing.Version-1).
		Updates(filing)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.
			WithDetail("filing_id", filing.ID.String())
	}
	return nil
}

// Ensure GormFilingRepository implements FilingRepository
var _ tax.FilingRepository = (*GormFilingRepository)(nil)
