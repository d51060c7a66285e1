package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/currency"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// baseCurrencyRow is the single-row table carrying the base-currency
// designation. A fixed primary key makes SetBaseCurrency an upsert, so
// there can never be two base currencies.
type baseCurrencyRow struct {
	ID           int                      `gorm:"primary_key"`
	CurrencyCode valueobject.CurrencyCode `gorm:"type:varchar(3);not null"`
}

// TableName returns the table name for GORM
func (baseCurrencyRow) TableName() string {
	return "base_currency"
}

const baseCurrencyRowID = 1

// GormCurrencyRepository implements CurrencyRepository using GORM
type GormCurrencyRepository struct {
	db *gorm.DB
}

// NewGormCurrencyRepository creates a new GormCurrencyRepository
func NewGormCurrencyRepository(db *gorm.DB) *GormCurrencyRepository {
	return &GormCurrencyRepository{db: db}
}

// FindByID finds a currency by ID
func (r *GormCurrencyRepository) FindByID(ctx context.Context, id uuid.UUID) (*currency.Currency, error) {
	var c currency.Currency
	if err := dbFrom(ctx, r.db).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// FindByCode finds a currency by its ISO code
func (r *GormCurrencyRepository) FindByCode(ctx context.Context, code valueobject.CurrencyCode) (*currency.Currency, error) {
	var c currency.Currency
	if err := dbFrom(ctx, r.db).First(&c, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// FindAll returns all configured currencies ordered by code
func (r *GormCurrencyRepository) FindAll(ctx context.Context) ([]currency.Currency, error) {
	var currencies []currency.Currency
	if err := dbFrom(ctx, r.db).Order("code ASC").Find(&currencies).Error; err != nil {
		return nil, err
	}
	return currencies, nil
}

// Save creates or updates a currency
func (r *GormCurrencyRepository) Save(ctx context.Context, c *currency.Currency) error {
	return dbFrom(ctx, r.db).Save(c).Error
}

// BaseCurrency returns the designated base currency. It fails with
// ErrNotFound when no base currency has been configured yet.
func (r *GormCurrencyRepository) BaseCurrency(ctx context.Context) (valueobject.CurrencyCode, error) {
	var row baseCurrencyRow
	if err := dbFrom(ctx, r.db).First(&row, "id = ?", baseCurrencyRowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", shared.ErrNotFound.WithDetail("resource", "base_currency")
		}
		return "", err
	}
	return row.CurrencyCode, nil
}

// SetBaseCurrency designates the base currency, replacing any previous
// designation atomically. The currency must already be configured.
func (r *GormCurrencyRepository) SetBaseCurrency(ctx context.Context, code valueobject.CurrencyCode) error {
	db := dbFrom(ctx, r.db)

	existing, err := r.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if existing == nil {
		return shared.ErrNotFound.WithDetail("currency_code", string(code))
	}

	row := baseCurrencyRow{ID: baseCurrencyRowID, CurrencyCode: code}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"currency_code"}),
	}).Create(&row).Error
}

// Ensure GormCurrencyRepository implements CurrencyRepository
var _ currency.CurrencyRepository = (*GormCurrencyRepository)(nil)
