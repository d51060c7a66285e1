package currency

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RateType classifies an exchange rate quotation
type RateType string

const (
	RateTypeSpot    RateType = "SPOT"
	RateTypeAverage RateType = "AVERAGE"
	RateTypeClosing RateType = "CLOSING"
)

// IsValid checks if the rate type is valid
func (t RateType) IsValid() bool {
	switch t {
	case RateTypeSpot, RateTypeAverage, RateTypeClosing:
		return true
	}
	return false
}

// RatePlaces is the precision exchange rates are stored at
const RatePlaces int32 = 6

// ExchangeRate is a dated conversion rate between two currencies.
// Rates are created by configuration and looked up by exact effective
// date; they are never auto-deleted.
type ExchangeRate struct {
	shared.BaseAggregateRoot
	FromCurrency  valueobject.CurrencyCode `gorm:"type:varchar(3);not null;uniqueIndex:idx_rate_pair_date,priority:1"`
	ToCurrency    valueobject.CurrencyCode `gorm:"type:varchar(3);not null;uniqueIndex:idx_rate_pair_date,priority:2"`
	Rate          decimal.Decimal          `gorm:"type:decimal(18,6);not null"`
	EffectiveDate time.Time                `gorm:"not null;uniqueIndex:idx_rate_pair_date,priority:3"`
	RateType      RateType                 `gorm:"type:varchar(20);not null;default:'SPOT'"`
}

// TableName returns the table name for GORM
func (ExchangeRate) TableName() string {
	return "exchange_rates"
}

// NewExchangeRate creates a new exchange rate record
func NewExchangeRate(
	from, to valueobject.CurrencyCode,
	rate decimal.Decimal,
	effectiveDate time.Time,
	rateType RateType,
) (*ExchangeRate, error) {
	if from == "" || to == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY_PAIR", "Both currencies are required")
	}
	if from == to {
		return nil, shared.NewDomainError("INVALID_CURRENCY_PAIR", "From and to currencies must differ")
	}
	if !rate.IsPositive() {
		return nil, shared.NewDomainError("INVALID_RATE", "Exchange rate must be positive")
	}
	if effectiveDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_EFFECTIVE_DATE", "Effective date is required")
	}
	if rateType == "" {
		rateType = RateTypeSpot
	}
	if !rateType.IsValid() {
		return nil, shared.NewDomainError("INVALID_RATE_TYPE", "Rate type is not valid")
	}

	return &ExchangeRate{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		FromCurrency:      from,
		ToCurrency:        to,
		Rate:              rate.Round(RatePlaces),
		EffectiveDate:     normalizeDate(effectiveDate),
		RateType:          rateType,
	}, nil
}

// Inverse returns the algebraic inverse of the rate at rate precision
func (r *ExchangeRate) Inverse() decimal.Decimal {
	return decimal.NewFromInt(1).DivRound(r.Rate, RatePlaces)
}

// normalizeDate truncates a timestamp to its calendar date in UTC, the
// granularity rate lookups operate at.
func normalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
