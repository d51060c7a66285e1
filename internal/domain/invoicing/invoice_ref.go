package invoicing

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceDocument is the narrow view allocation-adjacent code needs of an
// invoice, implemented by both AR and AP variants.
type InvoiceDocument interface {
	DocumentTotal() decimal.Decimal
	DocumentParty() uuid.UUID
	DocumentCurrency() valueobject.CurrencyCode
}

// InvoiceRef is a tagged reference to either an AR or an AP invoice. It
// replaces a free-form type/id column pair with a sum type the compiler
// and the persistence layer can both check.
type InvoiceRef struct {
	Kind      InvoiceKind `json:"kind"`
	InvoiceID uuid.UUID   `json:"invoice_id"`
}

// NewInvoiceRef creates a validated invoice reference
func NewInvoiceRef(kind InvoiceKind, invoiceID uuid.UUID) (InvoiceRef, error) {
	if !kind.IsValid() {
		return InvoiceRef{}, shared.NewDomainError("INVALID_INVOICE_KIND", "Invoice kind must be AR or AP")
	}
	if invoiceID == uuid.Nil {
		return InvoiceRef{}, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	return InvoiceRef{Kind: kind, InvoiceID: invoiceID}, nil
}

// IsZero reports whether the reference is unset
func (r InvoiceRef) IsZero() bool {
	return r.InvoiceID == uuid.Nil
}

// String returns a display form such as "AR:6f1e..."
func (r InvoiceRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.InvoiceID)
}
