package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/currency"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormExchangeRateRepository implements ExchangeRateRepository using GORM
type GormExchangeRateRepository struct {
	db *gorm.DB
}

// NewGormExchangeRateRepository creates a new GormExchangeRateRepository
func NewGormExchangeRateRepository(db *gorm.DB) *GormExchangeRateRepository {
	return &GormExchangeRateRepository{db: db}
}

// FindByID finds an exchange rate by ID
func (r *GormExchangeRateRepository) FindByID(ctx context.Context, id uuid.UUID) (*currency.ExchangeRate, error) {
	var rate currency.ExchangeRate
	if err := dbFrom(ctx, r.db).First(&rate, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

// FindRate finds the rate for a currency pair on an exact effective date.
// Lookups operate at calendar-date granularity in UTC; a nil result means
// no rate row exists for that pair and date.
func (r *GormExchangeRateRepository) FindRate(
	ctx context.Context,
	from, to valueobject.CurrencyCode,
	date time.Time,
) (*currency.ExchangeRate, error) {
	y, m, d := date.UTC().Date()
	effectiveDate := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var rate currency.ExchangeRate
	err := dbFrom(ctx, r.db).
		Where("from_currency = ? AND to_currency = ? AND effective_date = ?", from, to, effectiveDate).
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

// Save creates or updates an exchange rate
func (r *GormExchangeRateRepository) Save(ctx context.Context, rate *currency.ExchangeRate) error {
	return dbFrom(ctx, r.db).Save(rate).Error
}

// Ensure GormExchangeRateRepository implements ExchangeRateRepository
var _ currency.ExchangeRateRepository = (*GormExchangeRateRepository)(nil)
