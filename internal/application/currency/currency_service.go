package currency

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/currency"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CurrencyService administers configured currencies and exchange rates.
// Rate mutations never touch posted invoices: posting snapshots are
// immutable by design, so a corrected rate only affects future postings.
type CurrencyService struct {
	currencies currency.CurrencyRepository
	rateRepo   currency.ExchangeRateRepository
	rates      *currency.RateService
	logger     *zap.Logger
}

// NewCurrencyService creates a new CurrencyService
func NewCurrencyService(
	currencies currency.CurrencyRepository,
	rateRepo currency.ExchangeRateRepository,
	rates *currency.RateService,
	log *zap.Logger,
) *CurrencyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CurrencyService{
		currencies: currencies,
		rateRepo:   rateRepo,
		rates:      rates,
		logger:     log.Named("currency"),
	}
}

// CreateCurrencyRequest describes a new currency
type CreateCurrencyRequest struct {
	Code   string `json:"code" binding:"required,len=3"`
	Name   string `json:"name" binding:"required"`
	Symbol string `json:"symbol"`
}

// CreateRateRequest describes a new dated exchange rate
type CreateRateRequest struct {
	FromCurrency  string          `json:"from_currency" binding:"required,len=3"`
	ToCurrency    string          `json:"to_currency" binding:"required,len=3"`
	Rate          decimal.Decimal `json:"rate" binding:"required"`
	EffectiveDate time.Time       `json:"effective_date" binding:"required"`
	RateType      string          `json:"rate_type"`
}

// CurrencyResponse represents a currency in API responses
type CurrencyResponse struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	Symbol string    `json:"symbol,omitempty"`
	IsBase bool      `json:"is_base"`
}

// RateResponse represents an exchange rate in API responses
type RateResponse struct {
	ID            uuid.UUID       `json:"id"`
	FromCurrency  string          `json:"from_currency"`
	ToCurrency    string          `json:"to_currency"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate time.Time       `json:"effective_date"`
	RateType      string          `json:"rate_type"`
}

// ResolvedRateResponse is the result of a rate lookup, including rates
// derived by inversion or triangulation.
type ResolvedRateResponse struct {
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Date         time.Time       `json:"date"`
	Rate         decimal.Decimal `json:"rate"`
}

// CreateCurrency registers a new currency
func (s *CurrencyService) CreateCurrency(ctx context.Context, req CreateCurrencyRequest) (resp *CurrencyResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "currency", "create_currency")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrCurrency, req.Code)

	code := valueobject.CurrencyCode(req.Code)
	existing, err := s.currencies.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("DUPLICATE_CURRENCY",
			"Currency is already configured").
			WithDetail("code", req.Code)
	}

	curr, err := currency.NewCurrency(code, req.Name, req.Symbol)
	if err != nil {
		return nil, err
	}
	if err := s.currencies.Save(ctx, curr); err != nil {
		return nil, err
	}

	s.logger.Info("Currency configured", zap.String("code", curr.Code.String()))
	return s.toCurrencyResponse(curr), nil
}

// ListCurrencies returns all configured currencies
func (s *CurrencyService) ListCurrencies(ctx context.Context) (resp []CurrencyResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "currency", "list_currencies")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	currencies, err := s.currencies.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]CurrencyResponse, 0, len(currencies))
	for i := range currencies {
		responses = append(responses, *s.toCurrencyResponse(&currencies[i]))
	}
	return responses, nil
}

// SetBaseCurrency atomically swaps the base-currency designation to an
// already-configured currency
func (s *CurrencyService) SetBaseCurrency(ctx context.Context, code string) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "currency", "set_base_currency")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrCurrency, code)

	curr, err := s.currencies.FindByCode(ctx, valueobject.CurrencyCode(code))
	if err != nil {
		return err
	}
	if curr == nil {
		return shared.NewDomainError("NOT_FOUND", "Currency is not configured").
			WithDetail("code", code)
	}
	if err := s.currencies.SetBaseCurrency(ctx, curr.Code); err != nil {
		return err
	}

	s.logger.Info("Base currency changed", zap.String("code", curr.Code.String()))
	return nil
}

// CreateRate records a dated exchange rate
func (s *CurrencyService) CreateRate(ctx context.Context, req CreateRateRequest) (resp *RateResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "currency", "create_rate")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span,
		"from_currency", req.FromCurrency,
		"to_currency", req.ToCurrency,
		telemetry.SpanAttrExchangeRate, req.Rate.String(),
	)

	rate, err := currency.NewExchangeRate(
		valueobject.CurrencyCode(req.FromCurrency),
		valueobject.CurrencyCode(req.ToCurrency),
		req.Rate,
		req.EffectiveDate,
		currency.RateType(req.RateType),
	)
	if err != nil {
		return nil, err
	}

	if err := s.rateRepo.Save(ctx, rate); err != nil {
		return nil, err
	}

	s.logger.Info("Exchange rate recorded",
		zap.String("from", rate.FromCurrency.String()),
		zap.String("to", rate.ToCurrency.String()),
		zap.String("rate", rate.Rate.String()),
		zap.Time("effective_date", rate.EffectiveDate),
	)
	return toRateResponse(rate), nil
}

// ResolveRate looks up the conversion rate for a pair on a date, using
// the full direct/inverse/triangulation resolution chain
func (s *CurrencyService) ResolveRate(ctx context.Context, from, to string, on time.Time) (resp *ResolvedRateResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "currency", "resolve_rate")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span,
		"from_currency", from,
		"to_currency", to,
		"date", on.Format("2006-01-02"),
	)

	rate, err := s.rates.Rate(ctx, valueobject.CurrencyCode(from), valueobject.CurrencyCode(to), on)
	if err != nil {
		return nil, err
	}
	return &ResolvedRateResponse{
		FromCurrency: from,
		ToCurrency:   to,
		Date:         on,
		Rate:         rate,
	}, nil
}

func (s *CurrencyService) toCurrencyResponse(c *currency.Currency) *CurrencyResponse {
	return &CurrencyResponse{
		ID:     c.ID,
		Code:   c.Code.String(),
		Name:   c.Name,
		Symbol: c.Symbol,
		IsBase: c.Code == s.rates.BaseCurrency(),
	}
}

func toRateResponse(r *currency.ExchangeRate) *RateResponse {
	return &RateResponse{
		ID:            r.ID,
		FromCurrency:  r.FromCurrency.String(),
		ToCurrency:    r.ToCurrency.String(),
		Rate:          r.Rate,
		EffectiveDate: r.EffectiveDate,
		RateType:      string(r.RateType),
	}
}
