package currency

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CurrencyRepository provides access to configured currencies and the
// base-currency designation. SetBaseCurrency must atomically replace any
// previous designation in the same transaction.
type CurrencyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Currency, error)
	FindByCode(ctx context.Context, code valueobject.CurrencyCode) (*Currency, error)
	FindAll(ctx context.Context) ([]Currency, error)
	Save(ctx context.Context, currency *Currency) error

	BaseCurrency(ctx context.Context) (valueobject.CurrencyCode, error)
	SetBaseCurrency(ctx context.Context, code valueobject.CurrencyCode) error
}

// ExchangeRateRepository provides access to dated exchange rates.
// FindRate matches the effective date exactly; a nil result means no rate
// row exists for that pair and date.
type ExchangeRateRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ExchangeRate, error)
	FindRate(ctx context.Context, from, to valueobject.CurrencyCode, date time.Time) (*ExchangeRate, error)
	Save(ctx context.Context, rate *ExchangeRate) error
}
