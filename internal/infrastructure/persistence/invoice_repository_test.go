package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newSqliteInvoiceRepository backs the repository with an in-memory
// database so the write path is exercised end to end, not just the SQL
// that gorm generates.
func newSqliteInvoiceRepository(t *testing.T) *GormInvoiceRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicing.Invoice{}, &invoicing.InvoiceLine{}))

	return NewGormInvoiceRepository(db)
}

func newStoredInvoice(t *testing.T, repo *GormInvoiceRepository) *invoicing.Invoice {
	t.Helper()

	invoice, err := invoicing.NewInvoice(
		invoicing.InvoiceKindAR,
		uuid.New(),
		"Globex LLC",
		"INV-2026-0042",
		time.Now(),
		nil,
		valueobject.AED,
		"AE",
	)
	require.NoError(t, err)
	_, err = invoice.AddLine("Consulting", decimal.NewFromInt(1),
		decimal.NewFromInt(1000), decimal.NewFromInt(5), invoicing.TaxCategoryStandard)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), invoice))

	return invoice
}

func TestGormInvoiceRepository_FindAll(t *testing.T) {
	repo := newSqliteInvoiceRepository(t)
	ctx := context.Background()

	numbers := []string{"INV-2026-0001", "INV-2026-0002", "INV-2026-0003"}
	for i, number := range numbers {
		invoice, err := invoicing.NewInvoice(
			invoicing.InvoiceKindAR,
			uuid.New(),
			"Globex LLC",
			number,
			time.Date(2026, 3, 1+i, 0, 0, 0, 0, time.UTC),
			nil,
			valueobject.AED,
			"AE",
		)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, invoice))
	}

	t.Run("pages results but counts every match", func(t *testing.T) {
		page, total, err := repo.FindAll(ctx, invoicing.InvoiceFilter{
			Filter: shared.Filter{Page: 1, PageSize: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, page, 2)
		assert.Equal(t, "INV-2026-0003", page[0].Number, "newest issue date first")

		rest, total, err := repo.FindAll(ctx, invoicing.InvoiceFilter{
			Filter: shared.Filter{Page: 2, PageSize: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, rest, 1)
		assert.Equal(t, "INV-2026-0001", rest[0].Number)
	})

	t.Run("filter narrows both the page and the count", func(t *testing.T) {
		kind := invoicing.InvoiceKindAP
		page, total, err := repo.FindAll(ctx, invoicing.InvoiceFilter{
			Filter: shared.Filter{Page: 1, PageSize: 10},
			Kind:   &kind,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, page)
	})
}

func TestGormInvoiceRepository_SaveWithLock(t *testing.T) {
	t.Run("clears paid_at when the payment status regresses", func(t *testing.T) {
		repo := newSqliteInvoiceRepository(t)
		invoice := newStoredInvoice(t, repo)

		invoice.RefreshPaymentStatus(invoice.Total)
		require.Equal(t, invoicing.PaymentStatusPaid, invoice.PaymentStatus)
		require.NotNil(t, invoice.PaidAt)
		require.NoError(t, repo.SaveWithLock(context.Background(), invoice))

		// An allocation removal recomputes the status back to unpaid.
		invoice.RefreshPaymentStatus(decimal.Zero)
		require.Equal(t, invoicing.PaymentStatusUnpaid, invoice.PaymentStatus)
		require.Nil(t, invoice.PaidAt)
		require.NoError(t, repo.SaveWithLock(context.Background(), invoice))

		reloaded, err := repo.FindByID(context.Background(), invoice.ID)
		require.NoError(t, err)
		require.NotNil(t, reloaded)
		assert.Equal(t, invoicing.PaymentStatusUnpaid, reloaded.PaymentStatus)
		assert.Nil(t, reloaded.PaidAt, "paid_at must be cleared in the database when the status regresses")
	})

	t.Run("persists a partial regression from paid", func(t *testing.T) {
		repo := newSqliteInvoiceRepository(t)
		invoice := newStoredInvoice(t, repo)

		invoice.RefreshPaymentStatus(invoice.Total)
		require.NoError(t, repo.SaveWithLock(context.Background(), invoice))

		invoice.RefreshPaymentStatus(decimal.NewFromInt(100))
		require.NoError(t, repo.SaveWithLock(context.Background(), invoice))

		reloaded, err := repo.FindByID(context.Background(), invoice.ID)
		require.NoError(t, err)
		require.NotNil(t, reloaded)
		assert.Equal(t, invoicing.PaymentStatusPartiallyPaid, reloaded.PaymentStatus)
		assert.Nil(t, reloaded.PaidAt)
		assert.Equal(t, invoice.Version, reloaded.Version)
	})

	t.Run("stale version yields a concurrency conflict", func(t *testing.T) {
		repo := newSqliteInvoiceRepository(t)
		invoice := newStoredInvoice(t, repo)

		invoice.RefreshPaymentStatus(invoice.Total)
		require.NoError(t, repo.SaveWithLock(context.Background(), invoice))

		// Replay the same version: the row has moved on.
		err := repo.SaveWithLock(context.Background(), invoice)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrConcurrencyConflict.Code, domainErr.Code)
	})
}
