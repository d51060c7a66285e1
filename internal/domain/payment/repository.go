package payment

import (
	"context"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRepository persists payments with their allocations
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByReference(ctx context.Context, reference string) (*Payment, error)
	FindByAllocationID(ctx context.Context, allocationID uuid.UUID) (*Payment, error)
	Save(ctx context.Context, payment *Payment) error
	SaveWithLock(ctx context.Context, payment *Payment) error

	// SumAllocatedToInvoice sums all allocations against an invoice,
	// converted into the invoice currency at each allocation's captured
	// rate. This is the paid amount the payment-status recompute uses.
	SumAllocatedToInvoice(ctx context.Context, ref invoicing.InvoiceRef) (decimal.Decimal, error)
}
