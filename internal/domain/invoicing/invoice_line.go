package invoicing

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceLine is one billable row of an invoice, exclusively owned by it.
// NetAmount and TaxAmount are derived on every mutation through the tax
// calculator and stored rounded at line precision.
type InvoiceLine struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description    string          `gorm:"type:varchar(500);not null"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TaxRatePercent decimal.Decimal `gorm:"type:decimal(8,4);not null"`
	TaxCategory    TaxCategory     `gorm:"type:varchar(20);not null"`
	NetAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SelfAssessed   bool            `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (InvoiceLine) TableName() string {
	return "invoice_lines"
}

// newInvoiceLine creates a line and computes its derived amounts
func newInvoiceLine(
	invoiceID uuid.UUID,
	description string,
	quantity, unitPrice, ratePercent decimal.Decimal,
	category TaxCategory,
) (*InvoiceLine, error) {
	if description == "" {
		return nil, shared.NewDomainError("INVALID_LINE_DESCRIPTION", "Line description cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Line quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_UNIT_PRICE", "Unit price cannot be negative")
	}

	line := &InvoiceLine{
		ID:             uuid.New(),
		InvoiceID:      invoiceID,
		Description:    description,
		Quantity:       quantity,
		UnitPrice:      unitPrice,
		TaxRatePercent: ratePercent,
		TaxCategory:    category,
	}
	if err := line.recalculate(); err != nil {
		return nil, err
	}
	return line, nil
}

// recalculate re-derives net and tax from the line's inputs
func (l *InvoiceLine) recalculate() error {
	result, err := ComputeLine(l.Quantity, l.UnitPrice, l.TaxRatePercent, l.TaxCategory)
	if err != nil {
		return err
	}
	l.NetAmount = result.Net
	l.TaxAmount = result.Tax
	l.SelfAssessed = result.SelfAssessed
	return nil
}
