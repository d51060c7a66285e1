package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RateService resolves conversion rates between currencies on a given
// date. Resolution order: identity, direct rate, inverted reciprocal
// rate, then triangulation through the base currency. Lookups require an
// exact effective-date match; there is no nearest-date fallback, and a
// missing rate is a blocking RATE_UNAVAILABLE error, never a default.
type RateService struct {
	rates    ExchangeRateRepository
	registry *BaseCurrencyRegistry
}

// NewRateService creates a new RateService
func NewRateService(rates ExchangeRateRepository, registry *BaseCurrencyRegistry) *RateService {
	return &RateService{rates: rates, registry: registry}
}

// Rate returns the conversion rate from one currency to another on the
// given date, expressed as target units per source unit.
func (s *RateService) Rate(ctx context.Context, from, to valueobject.CurrencyCode, on time.Time) (decimal.Decimal, error) {
	if from == "" || to == "" {
		return decimal.Zero, shared.NewDomainError("INVALID_CURRENCY_PAIR", "Both currencies are required")
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	date := normalizeDate(on)

	// Direct quotation
	direct, err := s.rates.FindRate(ctx, from, to, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to look up rate %s/%s: %w", from, to, err)
	}
	if direct != nil {
		return direct.Rate, nil
	}

	// Reciprocal quotation
	inverse, err := s.rates.FindRate(ctx, to, from, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to look up rate %s/%s: %w", to, from, err)
	}
	if inverse != nil {
		return inverse.Inverse(), nil
	}

	// Triangulation through the base currency
	base := s.registry.Base()
	if from != base && to != base {
		fromBase, err := s.rates.FindRate(ctx, from, base, date)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to look up rate %s/%s: %w", from, base, err)
		}
		toBase, err := s.rates.FindRate(ctx, to, base, date)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to look up rate %s/%s: %w", to, base, err)
		}
		if fromBase != nil && toBase != nil {
			return fromBase.Rate.DivRound(toBase.Rate, RatePlaces), nil
		}
	}

	return decimal.Zero, rateUnavailable(from, to, date)
}

// Convert converts a monetary amount into the target currency on the
// given date, rounded to money precision.
func (s *RateService) Convert(ctx context.Context, amount valueobject.Money, to valueobject.CurrencyCode, on time.Time) (valueobject.Money, error) {
	rate, err := s.Rate(ctx, amount.Currency(), to, on)
	if err != nil {
		return valueobject.Money{}, err
	}
	return amount.Convert(rate, to), nil
}

// BaseCurrency returns the reporting currency the service triangulates
// through and converts into.
func (s *RateService) BaseCurrency() valueobject.CurrencyCode {
	return s.registry.Base()
}

func rateUnavailable(from, to valueobject.CurrencyCode, date time.Time) *shared.DomainError {
	return shared.NewDomainError(shared.ErrCodeRateUnavailable,
		fmt.Sprintf("No exchange rate available for %s/%s on %s", from, to, date.Format("2006-01-02"))).
		WithDetail("from_currency", from.String()).
		WithDetail("to_currency", to.String()).
		WithDetail("date", date.Format("2006-01-02"))
}
