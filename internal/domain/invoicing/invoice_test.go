package invoicing

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

func newTestInvoice(t *testing.T, kind InvoiceKind) *Invoice {
	t.Helper()
	inv, err := NewInvoice(kind, uuid.New(), "Acme Trading LLC", "INV-2026-001",
		time.Now(), nil, valueobject.USD, "AE")
	require.NoError(t, err)
	return inv
}

func approvedInvoiceWithLine(t *testing.T, kind InvoiceKind) *Invoice {
	t.Helper()
	inv := newTestInvoice(t, kind)
	_, err := inv.AddLine("Consulting", d("10"), d("100"), d("5"), TaxCategoryStandard)
	require.NoError(t, err)
	require.NoError(t, inv.SubmitForApproval())
	require.NoError(t, inv.Approve())
	return inv
}

func TestNewInvoice_Validation(t *testing.T) {
	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := NewInvoice(InvoiceKind("XX"), uuid.New(), "Acme", "INV-1", time.Now(), nil, valueobject.USD, "")
		assert.Error(t, err)
	})

	t.Run("rejects empty party", func(t *testing.T) {
		_, err := NewInvoice(InvoiceKindAR, uuid.Nil, "Acme", "INV-1", time.Now(), nil, valueobject.USD, "")
		assert.Error(t, err)
	})

	t.Run("rejects empty number", func(t *testing.T) {
		_, err := NewInvoice(InvoiceKindAR, uuid.New(), "Acme", "", time.Now(), nil, valueobject.USD, "")
		assert.Error(t, err)
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewInvoice(InvoiceKindAR, uuid.New(), "Acme", "INV-1", time.Now(), nil, "", "")
		assert.Error(t, err)
	})

	t.Run("starts as unposted unpaid draft", func(t *testing.T) {
		inv := newTestInvoice(t, InvoiceKindAR)
		assert.Equal(t, ApprovalStatusDraft, inv.ApprovalStatus)
		assert.Equal(t, PostingStatusUnposted, inv.PostingStatus)
		assert.Equal(t, PaymentStatusUnpaid, inv.PaymentStatus)
	})
}

func TestInvoice_Totals(t *testing.T) {
	t.Run("aggregates rounded line values", func(t *testing.T) {
		inv := newTestInvoice(t, InvoiceKindAR)
		_, err := inv.AddLine("Widgets", d("10"), d("100"), d("5"), TaxCategoryStandard)
		require.NoError(t, err)
		_, err = inv.AddLine("Shipping", d("1"), d("50"), d("0"), TaxCategoryZero)
		require.NoError(t, err)

		assert.Equal(t, "1050.00", inv.Subtotal.StringFixed(2))
		assert.Equal(t, "50.00", inv.TaxAmount.StringFixed(2))
		assert.Equal(t, "1100.00", inv.Total.StringFixed(2))
	})

	t.Run("reverse-charge tax accumulates separately and does not raise the total", func(t *testing.T) {
		inv := newTestInvoice(t, InvoiceKindAP)
		_, err := inv.AddLine("Imported services", d("1"), d("1000"), d("5"), TaxCategoryReverseCharge)
		require.NoError(t, err)

		assert.Equal(t, "1000.00", inv.Subtotal.StringFixed(2))
		assert.Equal(t, "0.00", inv.TaxAmount.StringFixed(2))
		assert.Equal(t, "50.00", inv.SelfAssessedTax.StringFixed(2))
		assert.Equal(t, "1000.00", inv.Total.StringFixed(2))
	})

	t.Run("update and remove refresh the snapshot", func(t *testing.T) {
		inv := newTestInvoice(t, InvoiceKindAR)
		line, err := inv.AddLine("Widgets", d("10"), d("100"), d("5"), TaxCategoryStandard)
		require.NoError(t, err)

		require.NoError(t, inv.UpdateLine(line.ID, "Widgets", d("5"), d("100"), d("5"), TaxCategoryStandard))
		assert.Equal(t, "500.00", inv.Subtotal.StringFixed(2))

		require.NoError(t, inv.RemoveLine(line.ID))
		assert.True(t, inv.Subtotal.IsZero())
		assert.True(t, inv.Total.IsZero())
	})
}

func TestInvoice_ApprovalWorkflow(t *testing.T) {
	t.Run("draft to approved", func(t *testing.T) {
		inv := newTestInvoice(t, InvoiceKindAR)
		_, err := inv.AddLine("Widgets", d("1"), d("100"), d("5"), TaxCategoryStandard)
		require.NoError(t, err)

		require.NoError(t, inv.SubmitForApproval())
		assert.Equal(t, ApprovalStatusPendingApproval, inv.ApprovalStatus)

		require.NoError(t, inv.Approve())
		assert.Equal(t, ApprovalStatusApproved, inv.ApprovalStatus)
	})

	t.Run("cannot submit without lines", func(t *testing.T) {
		inv := newTestInvoice(t, InvoiceKindAR)
		assert.Error(t, inv.SubmitForApproval())
	})

	t.Run("rejected invoice can be resubmitted", func(t *testing.T) {
		inv := newTestInvoice(t, InvoiceKindAR)
		_, err := inv.AddLine("Widgets", d("1"), d("100"), d("5"), TaxCategoryStandard)
		require.NoError(t, err)

		require.NoError(t, inv.SubmitForApproval())
		require.NoError(t, inv.Reject())
		assert.Equal(t, ApprovalStatusRejected, inv.ApprovalStatus)
		require.NoError(t, inv.SubmitForApproval())
	})

	t.Run("cannot approve a draft directly", func(t *testing.T) {
		inv := newTestInvoice(t, InvoiceKindAR)
		assert.Error(t, inv.Approve())
	})
}

func TestInvoice_CheckPostable(t *testing.T) {
	t.Run("approved unposted invoice with lines is postable", func(t *testing.T) {
		inv := approvedInvoiceWithLine(t, InvoiceKindAR)
		assert.NoError(t, inv.CheckPostable())
	})

	t.Run("unapproved invoice is not postable", func(t *testing.T) {
		inv := newTestInvoice(t, InvoiceKindAR)
		_, err := inv.AddLine("Widgets", d("1"), d("100"), d("5"), TaxCategoryStandard)
		require.NoError(t, err)

		err = inv.CheckPostable()
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeInvalidPostingState, domainErr.Code)
	})

	t.Run("posted invoice reports already posted with the entry id", func(t *testing.T) {
		inv := approvedInvoiceWithLine(t, InvoiceKindAR)
		entryID := uuid.New()
		require.NoError(t, inv.MarkPosted(entryID, d("3.6725"), d("3672.50"), d("183.63"), d("3856.13")))

		err := inv.CheckPostable()
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeAlreadyPosted, domainErr.Code)
		assert.Equal(t, entryID.String(), domainErr.Details["journal_entry_id"])
	})

	t.Run("cancelled invoice is not postable", func(t *testing.T) {
		inv := approvedInvoiceWithLine(t, InvoiceKindAR)
		require.NoError(t, inv.Cancel("duplicate document"))
		assert.Error(t, inv.CheckPostable())
	})
}

func TestInvoice_MarkPosted(t *testing.T) {
	t.Run("records the posting snapshot", func(t *testing.T) {
		inv := approvedInvoiceWithLine(t, InvoiceKindAR)
		entryID := uuid.New()

		require.NoError(t, inv.MarkPosted(entryID, d("3.6725"), d("3672.50"), d("183.63"), d("3856.13")))

		assert.Equal(t, PostingStatusPosted, inv.PostingStatus)
		require.NotNil(t, inv.JournalEntryID)
		assert.Equal(t, entryID, *inv.JournalEntryID)
		require.NotNil(t, inv.ExchangeRateAtPosting)
		assert.Equal(t, "3.6725", inv.ExchangeRateAtPosting.String())
		assert.Equal(t, "3856.13", inv.BaseCurrencyTotal.StringFixed(2))
		assert.NotNil(t, inv.PostedAt)
	})

	t.Run("rejects a non-positive rate", func(t *testing.T) {
		inv := approvedInvoiceWithLine(t, InvoiceKindAR)
		assert.Error(t, inv.MarkPosted(uuid.New(), decimal.Zero, d("0"), d("0"), d("0")))
	})

	t.Run("lines freeze after posting", func(t *testing.T) {
		inv := approvedInvoiceWithLine(t, InvoiceKindAR)
		require.NoError(t, inv.MarkPosted(uuid.New(), d("1"), inv.Subtotal, inv.TaxAmount, inv.Total))

		_, err := inv.AddLine("Late line", d("1"), d("10"), d("5"), TaxCategoryStandard)
		assert.Error(t, err)
	})

	t.Run("cannot cancel a posted invoice", func(t *testing.T) {
		inv := approvedInvoiceWithLine(t, InvoiceKindAR)
		require.NoError(t, inv.MarkPosted(uuid.New(), d("1"), inv.Subtotal, inv.TaxAmount, inv.Total))
		assert.Error(t, inv.Cancel("change of mind"))
	})
}

func TestInvoice_MarkPostingReversed(t *testing.T) {
	inv := approvedInvoiceWithLine(t, InvoiceKindAR)
	require.NoError(t, inv.MarkPosted(uuid.New(), d("1"), inv.Subtotal, inv.TaxAmount, inv.Total))

	require.NoError(t, inv.MarkPostingReversed())
	assert.Equal(t, PostingStatusReversed, inv.PostingStatus)

	// The snapshot is retained for audit
	assert.NotNil(t, inv.JournalEntryID)
	assert.NotNil(t, inv.ExchangeRateAtPosting)

	// A reversed invoice cannot be reversed again
	assert.Error(t, inv.MarkPostingReversed())
}

func TestInvoice_RefreshPaymentStatus(t *testing.T) {
	inv := approvedInvoiceWithLine(t, InvoiceKindAR) // Total 1050.00

	t.Run("partial payment", func(t *testing.T) {
		inv.RefreshPaymentStatus(d("500"))
		assert.Equal(t, PaymentStatusPartiallyPaid, inv.PaymentStatus)
		assert.Nil(t, inv.PaidAt)
	})

	t.Run("full payment", func(t *testing.T) {
		inv.RefreshPaymentStatus(d("1050"))
		assert.Equal(t, PaymentStatusPaid, inv.PaymentStatus)
		assert.NotNil(t, inv.PaidAt)
	})

	t.Run("status moves backward when allocations are removed", func(t *testing.T) {
		inv.RefreshPaymentStatus(d("500"))
		assert.Equal(t, PaymentStatusPartiallyPaid, inv.PaymentStatus)
		assert.Nil(t, inv.PaidAt)

		inv.RefreshPaymentStatus(decimal.Zero)
		assert.Equal(t, PaymentStatusUnpaid, inv.PaymentStatus)
	})
}
