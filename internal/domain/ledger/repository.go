package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository provides read access to the chart of accounts.
// The posting engine never creates or edits accounts.
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByCode(ctx context.Context, code string) (*Account, error)
	FindByType(ctx context.Context, accountType AccountType) ([]Account, error)
	Save(ctx context.Context, account *Account) error
}

// PeriodActivity is the aggregated posted movement on accounts of one type
// within a period, used by the corporate tax accrual.
type PeriodActivity struct {
	AccountType AccountType
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// JournalEntryRepository persists journal entries together with their
// lines. The ledger is append-only: entries are saved once on creation
// and updated only to set the posted flag and reversal links.
type JournalEntryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*JournalEntry, error)
	FindByEntryNumber(ctx context.Context, entryNumber string) (*JournalEntry, error)
	Save(ctx context.Context, entry *JournalEntry) error
	SaveWithLock(ctx context.Context, entry *JournalEntry) error

	// SumPeriodActivityByType aggregates posted line debits/credits per
	// account type for entries dated within [periodStart, periodEnd].
	SumPeriodActivityByType(ctx context.Context, periodStart, periodEnd time.Time, types []AccountType) ([]PeriodActivity, error)

	// NextEntryNumber generates the next sequential entry number
	NextEntryNumber(ctx context.Context) (string, error)
}
