package currency

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// Currency is a configured currency. The base-currency designation lives
// in the BaseCurrencyRegistry, not as a mutable flag on each row.
type Currency struct {
	shared.BaseAggregateRoot
	Code   valueobject.CurrencyCode `gorm:"type:varchar(3);not null;uniqueIndex"`
	Name   string                   `gorm:"type:varchar(100);not null"`
	Symbol string                   `gorm:"type:varchar(10)"`
}

// TableName returns the table name for GORM
func (Currency) TableName() string {
	return "currencies"
}

// NewCurrency creates a new currency record
func NewCurrency(code valueobject.CurrencyCode, name, symbol string) (*Currency, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY_CODE", "Currency code cannot be empty")
	}
	if len(code) != 3 {
		return nil, shared.NewDomainError("INVALID_CURRENCY_CODE", "Currency code must be 3 characters")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY_NAME", "Currency name cannot be empty")
	}

	return &Currency{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		Symbol:            symbol,
	}, nil
}

// BaseCurrencyRegistry holds the single reporting currency all
// multi-currency amounts are converted into. The persistence layer
// enforces the single-row invariant; swapping the base happens atomically
// in one transaction.
type BaseCurrencyRegistry struct {
	base valueobject.CurrencyCode
}

// NewBaseCurrencyRegistry creates a registry for the given base currency
func NewBaseCurrencyRegistry(base valueobject.CurrencyCode) (*BaseCurrencyRegistry, error) {
	if base == "" {
		return nil, shared.NewDomainError("INVALID_BASE_CURRENCY", "Base currency cannot be empty")
	}
	return &BaseCurrencyRegistry{base: base}, nil
}

// Base returns the base currency code
func (r *BaseCurrencyRegistry) Base() valueobject.CurrencyCode {
	return r.base
}

// IsBase reports whether the given currency is the base currency
func (r *BaseCurrencyRegistry) IsBase(code valueobject.CurrencyCode) bool {
	return r.base == code
}
