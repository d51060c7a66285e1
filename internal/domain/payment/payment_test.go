package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
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

func newTestPayment(t *testing.T, amount string, curr valueobject.CurrencyCode) *Payment {
	t.Helper()
	p, err := NewPayment(PaymentKindReceived, uuid.New(), "Acme Trading LLC", "PAY-2026-001",
		time.Now(), valueobject.MustMoney(d(amount), curr), "Emirates NBD 001")
	require.NoError(t, err)
	return p
}

func arRef() invoicing.InvoiceRef {
	return invoicing.InvoiceRef{Kind: invoicing.InvoiceKindAR, InvoiceID: uuid.New()}
}

func TestNewPayment_Validation(t *testing.T) {
	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := NewPayment(PaymentKind("WIRE"), uuid.New(), "Acme", "PAY-1",
			time.Now(), valueobject.MustMoney(d("100"), valueobject.AED), "")
		assert.Error(t, err)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := NewPayment(PaymentKindReceived, uuid.New(), "Acme", "PAY-1",
			time.Now(), valueobject.MustMoney(decimal.Zero, valueobject.AED), "")
		assert.Error(t, err)
	})

	t.Run("rejects empty reference", func(t *testing.T) {
		_, err := NewPayment(PaymentKindReceived, uuid.New(), "Acme", "",
			time.Now(), valueobject.MustMoney(d("100"), valueobject.AED), "")
		assert.Error(t, err)
	})
}

func TestPayment_Allocate(t *testing.T) {
	t.Run("records the allocation and reduces the remainder", func(t *testing.T) {
		p := newTestPayment(t, "1000", valueobject.AED)

		alloc, err := p.Allocate(arRef(), d("600"), valueobject.AED, d("1"), "partial settlement")
		require.NoError(t, err)

		assert.True(t, alloc.Amount.Equal(d("600")))
		assert.True(t, p.AllocatedTotal().Equal(d("600")))
		assert.True(t, p.UnallocatedAmount().Equal(d("400")))
	})

	t.Run("rejects a duplicate allocation against the same invoice", func(t *testing.T) {
		p := newTestPayment(t, "1000", valueobject.AED)
		ref := arRef()

		_, err := p.Allocate(ref, d("300"), valueobject.AED, d("1"), "")
		require.NoError(t, err)

		_, err = p.Allocate(ref, d("200"), valueobject.AED, d("1"), "")
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeDuplicateAllocation, domainErr.Code)
	})

	t.Run("rejects allocations beyond the payment total", func(t *testing.T) {
		p := newTestPayment(t, "1000", valueobject.AED)

		_, err := p.Allocate(arRef(), d("700"), valueobject.AED, d("1"), "")
		require.NoError(t, err)

		_, err = p.Allocate(arRef(), d("400"), valueobject.AED, d("1"), "")
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeAllocationExceedsLimit, domainErr.Code)
	})

	t.Run("rejects non-positive amount and rate", func(t *testing.T) {
		p := newTestPayment(t, "1000", valueobject.AED)

		_, err := p.Allocate(arRef(), decimal.Zero, valueobject.AED, d("1"), "")
		assert.Error(t, err)

		_, err = p.Allocate(arRef(), d("100"), valueobject.AED, decimal.Zero, "")
		assert.Error(t, err)
	})
}

func TestPaymentAllocation_AmountInInvoiceCurrency(t *testing.T) {
	// 367.25 AED allocated at 3.6725 AED per USD settles 100 USD
	p := newTestPayment(t, "1000", valueobject.AED)
	alloc, err := p.Allocate(arRef(), d("367.25"), valueobject.USD, d("3.6725"), "")
	require.NoError(t, err)

	assert.Equal(t, "100.00", alloc.AmountInInvoiceCurrency().StringFixed(2))
}

func TestPayment_UpdateAllocation(t *testing.T) {
	t.Run("re-checks the payment-side bound against the other allocations", func(t *testing.T) {
		p := newTestPayment(t, "1000", valueobject.AED)
		first, err := p.Allocate(arRef(), d("600"), valueobject.AED, d("1"), "")
		require.NoError(t, err)
		_, err = p.Allocate(arRef(), d("300"), valueobject.AED, d("1"), "")
		require.NoError(t, err)

		// 1000 - 300 leaves 700 available for the first allocation
		updated, err := p.UpdateAllocation(first.ID, d("700"))
		require.NoError(t, err)
		assert.True(t, updated.Amount.Equal(d("700")))

		_, err = p.UpdateAllocation(first.ID, d("701"))
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrCodeAllocationExceedsLimit, domainErr.Code)
	})

	t.Run("unknown allocation is not found", func(t *testing.T) {
		p := newTestPayment(t, "1000", valueobject.AED)
		_, err := p.UpdateAllocation(uuid.New(), d("100"))
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestPayment_RemoveAllocation(t *testing.T) {
	p := newTestPayment(t, "1000", valueobject.AED)
	alloc, err := p.Allocate(arRef(), d("600"), valueobject.AED, d("1"), "")
	require.NoError(t, err)

	removed, err := p.RemoveAllocation(alloc.ID)
	require.NoError(t, err)
	assert.Equal(t, alloc.ID, removed.ID)
	assert.True(t, p.UnallocatedAmount().Equal(d("1000")))

	_, err = p.RemoveAllocation(alloc.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestPaymentKind_InvoiceKindFor(t *testing.T) {
	assert.Equal(t, invoicing.InvoiceKindAR, PaymentKindReceived.InvoiceKindFor())
	assert.Equal(t, invoicing.InvoiceKindAP, PaymentKindMade.InvoiceKindFor())
}
