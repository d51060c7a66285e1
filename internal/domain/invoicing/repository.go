package invoicing

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter narrows invoice queries
type InvoiceFilter struct {
	shared.Filter

	Kind          *InvoiceKind
	PartyID       *uuid.UUID
	PostingStatus *PostingStatus
	PaymentStatus *PaymentStatus
}

// InvoiceRepository persists invoices with their lines
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByRef(ctx context.Context, ref InvoiceRef) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	// FindAll returns one page of invoices matching the filter plus the
	// total match count across all pages.
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)

	// FindOpenPosted returns posted, non-cancelled invoices that are not
	// fully paid, used by period-end FX revaluation.
	FindOpenPosted(ctx context.Context) ([]Invoice, error)

	Save(ctx context.Context, invoice *Invoice) error
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}
