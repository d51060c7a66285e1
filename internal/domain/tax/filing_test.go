package tax

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

var (
	periodStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
)

func newTestFiling(t *testing.T, income string) *CorporateTaxFiling {
	t.Helper()
	f, err := NewCorporateTaxFiling(periodStart, periodEnd, d("9"), d(income), valueobject.AED)
	require.NoError(t, err)
	return f
}

func TestNewCorporateTaxFiling(t *testing.T) {
	t.Run("computes the tax from the rate", func(t *testing.T) {
		f := newTestFiling(t, "100000")

		assert.Equal(t, "9000.00", f.TaxAmount.StringFixed(2))
		assert.Equal(t, FilingStatusDraft, f.Status)
		assert.True(t, f.HasAccruableTax())
	})

	t.Run("rounds the tax to money precision", func(t *testing.T) {
		f := newTestFiling(t, "12345.67")
		// 12345.67 * 9% = 1111.1103
		assert.Equal(t, "1111.11", f.TaxAmount.StringFixed(2))
	})

	t.Run("loss period clamps the tax to zero", func(t *testing.T) {
		f := newTestFiling(t, "-50000")

		assert.True(t, f.TaxAmount.IsZero())
		assert.True(t, f.TaxableIncome.IsNegative())
		assert.False(t, f.HasAccruableTax())
	})

	t.Run("rejects an inverted period", func(t *testing.T) {
		_, err := NewCorporateTaxFiling(periodEnd, periodStart, d("9"), d("100"), valueobject.AED)
		assert.Error(t, err)
	})

	t.Run("rejects a negative rate", func(t *testing.T) {
		_, err := NewCorporateTaxFiling(periodStart, periodEnd, d("-1"), d("100"), valueobject.AED)
		assert.Error(t, err)
	})

	t.Run("rejects a missing currency", func(t *testing.T) {
		_, err := NewCorporateTaxFiling(periodStart, periodEnd, d("9"), d("100"), "")
		assert.Error(t, err)
	})
}

func TestCorporateTaxFiling_MarkAccrued(t *testing.T) {
	t.Run("links the entry and moves to accrued", func(t *testing.T) {
		f := newTestFiling(t, "100000")
		entryID := uuid.New()

		require.NoError(t, f.MarkAccrued(entryID))

		assert.Equal(t, FilingStatusAccrued, f.Status)
		require.NotNil(t, f.JournalEntryID)
		assert.Equal(t, entryID, *f.JournalEntryID)
		assert.NotNil(t, f.AccruedAt)
	})

	t.Run("a loss filing has nothing to accrue", func(t *testing.T) {
		f := newTestFiling(t, "-50000")

		err := f.MarkAccrued(uuid.New())
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "NOTHING_TO_ACCRUE", domainErr.Code)
	})

	t.Run("cannot accrue twice", func(t *testing.T) {
		f := newTestFiling(t, "100000")
		require.NoError(t, f.MarkAccrued(uuid.New()))

		err := f.MarkAccrued(uuid.New())
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeInvalidPostingState, domainErr.Code)
	})
}

func TestCorporateTaxFiling_Lifecycle(t *testing.T) {
	t.Run("accrued files then pays", func(t *testing.T) {
		f := newTestFiling(t, "100000")
		require.NoError(t, f.MarkAccrued(uuid.New()))

		require.NoError(t, f.File())
		assert.Equal(t, FilingStatusFiled, f.Status)
		assert.NotNil(t, f.FiledAt)

		require.NoError(t, f.MarkPaid())
		assert.Equal(t, FilingStatusPaid, f.Status)
		assert.NotNil(t, f.PaidAt)
		assert.True(t, f.Status.IsTerminal())
	})

	t.Run("cannot file a draft", func(t *testing.T) {
		f := newTestFiling(t, "100000")

		err := f.File()
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, FilingStatusDraft.String(), domainErr.Details["status"])
		assert.Equal(t, FilingStatusAccrued.String(), domainErr.Details["required_status"])
	})

	t.Run("cannot pay before filing", func(t *testing.T) {
		f := newTestFiling(t, "100000")
		require.NoError(t, f.MarkAccrued(uuid.New()))
		assert.Error(t, f.MarkPaid())
	})
}

func TestCorporateTaxFiling_MarkReversed(t *testing.T) {
	t.Run("reverses a filed accrual", func(t *testing.T) {
		f := newTestFiling(t, "100000")
		require.NoError(t, f.MarkAccrued(uuid.New()))
		require.NoError(t, f.File())

		require.NoError(t, f.MarkReversed())
		assert.Equal(t, FilingStatusReversed, f.Status)
		assert.NotNil(t, f.ReversedAt)
		assert.True(t, f.Status.IsTerminal())
	})

	t.Run("cannot reverse before filing", func(t *testing.T) {
		f := newTestFiling(t, "100000")
		require.NoError(t, f.MarkAccrued(uuid.New()))
		assert.Error(t, f.MarkReversed())
	})

	t.Run("cannot reverse once paid", func(t *testing.T) {
		f := newTestFiling(t, "100000")
		require.NoError(t, f.MarkAccrued(uuid.New()))
		require.NoError(t, f.File())
		require.NoError(t, f.MarkPaid())
		assert.Error(t, f.MarkReversed())
	})
}
