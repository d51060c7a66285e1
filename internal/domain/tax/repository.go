package tax

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FilingRepository persists corporate tax filings
type FilingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CorporateTaxFiling, error)
	FindByPeriod(ctx context.Context, periodStart, periodEnd time.Time) (*CorporateTaxFiling, error)
	FindAll(ctx context.Context) ([]*CorporateTaxFiling, error)
	Save(ctx context.Context, filing *CorporateTaxFiling) error
	SaveWithLock(ctx context.Context, filing *CorporateTaxFiling) error
}
