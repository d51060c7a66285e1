package payment

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentKind distinguishes money received (against AR invoices) from
// money paid out (against AP invoices)
type PaymentKind string

const (
	PaymentKindReceived PaymentKind = "RECEIVED"
	PaymentKindMade     PaymentKind = "MADE"
)

// IsValid checks if the payment kind is valid
func (k PaymentKind) IsValid() bool {
	return k == PaymentKindReceived || k == PaymentKindMade
}

// InvoiceKindFor returns the invoice kind this payment settles
func (k PaymentKind) InvoiceKindFor() invoicing.InvoiceKind {
	if k == PaymentKindReceived {
		return invoicing.InvoiceKindAR
	}
	return invoicing.InvoiceKindAP
}

// PaymentAllocation distributes part of a payment against one invoice.
// Amount is in the payment's currency; the invoice currency and the
// conversion rate in force on the payment date are captured at allocation
// time so later rate changes never alter a settled allocation.
type PaymentAllocation struct {
	ID                       uuid.UUID                `gorm:"type:uuid;primary_key"`
	PaymentID                uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_alloc_payment_invoice,priority:1"`
	InvoiceKind              invoicing.InvoiceKind    `gorm:"type:varchar(2);not null"`
	InvoiceID                uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_alloc_payment_invoice,priority:2;index"`
	Amount                   decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	InvoiceCurrency          valueobject.CurrencyCode `gorm:"type:varchar(3);not null"`
	ExchangeRateAtAllocation decimal.Decimal          `gorm:"type:decimal(18,6);not null"`
	AllocatedAt              time.Time                `gorm:"not null"`
	Remark                   string                   `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentAllocation) TableName() string {
	return "payment_allocations"
}

// InvoiceRef returns the tagged invoice reference of the allocation
func (a *PaymentAllocation) InvoiceRef() invoicing.InvoiceRef {
	return invoicing.InvoiceRef{Kind: a.InvoiceKind, InvoiceID: a.InvoiceID}
}

// AmountInInvoiceCurrency converts the allocated amount back into the
// invoice currency at the captured rate. The captured rate converts
// invoice currency to payment currency, so the inversion divides.
func (a *PaymentAllocation) AmountInInvoiceCurrency() decimal.Decimal {
	return a.Amount.DivRound(a.ExchangeRateAtAllocation, valueobject.MoneyPlaces)
}

// Payment is a received or outgoing payment aggregate owning its
// allocations against outstanding invoices.
type Payment struct {
	shared.BaseAggregateRoot
	Kind        PaymentKind              `gorm:"type:varchar(10);not null;index"`
	PartyID     uuid.UUID                `gorm:"type:uuid;not null;index"`
	PartyName   string                   `gorm:"type:varchar(200);not null"`
	Reference   string                   `gorm:"type:varchar(50);not null;uniqueIndex"`
	PaymentDate time.Time                `gorm:"not null;index"`
	TotalAmount decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	Currency    valueobject.CurrencyCode `gorm:"type:varchar(3);not null"`
	BankAccount string                   `gorm:"type:varchar(100)"`
	Allocations []PaymentAllocation      `gorm:"foreignKey:PaymentID;references:ID"`
}

// TableName returns the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// NewPayment creates a new payment
func NewPayment(
	kind PaymentKind,
	partyID uuid.UUID,
	partyName string,
	reference string,
	paymentDate time.Time,
	totalAmount valueobject.Money,
	bankAccount string,
) (*Payment, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_KIND", "Payment kind must be RECEIVED or MADE")
	}
	if partyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTY", "Party ID cannot be empty")
	}
	if partyName == "" {
		return nil, shared.NewDomainError("INVALID_PARTY_NAME", "Party name cannot be empty")
	}
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Payment reference cannot be empty")
	}
	if len(reference) > 50 {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Payment reference cannot exceed 50 characters")
	}
	if paymentDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_DATE", "Payment date is required")
	}
	if !totalAmount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              kind,
		PartyID:           partyID,
		PartyName:         partyName,
		Reference:         reference,
		PaymentDate:       paymentDate,
		TotalAmount:       totalAmount.Amount(),
		Currency:          totalAmount.Currency(),
		BankAccount:       bankAccount,
		Allocations:       make([]PaymentAllocation, 0),
	}

	p.AddDomainEvent(NewPaymentCreatedEvent(p))

	return p, nil
}

// AllocatedTotal sums the payment's allocations in payment currency
func (p *Payment) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// UnallocatedAmount returns the remainder available for allocation
func (p *Payment) UnallocatedAmount() decimal.Decimal {
	return p.TotalAmount.Sub(p.AllocatedTotal())
}

// FindAllocation returns the allocation with the given ID, or nil
func (p *Payment) FindAllocation(allocationID uuid.UUID) *PaymentAllocation {
	for i := range p.Allocations {
		if p.Allocations[i].ID == allocationID {
			return &p.Allocations[i]
		}
	}
	return nil
}

// AllocationFor returns the allocation against the given invoice, or nil
func (p *Payment) AllocationFor(ref invoicing.InvoiceRef) *PaymentAllocation {
	for i := range p.Allocations {
		if p.Allocations[i].InvoiceID == ref.InvoiceID && p.Allocations[i].InvoiceKind == ref.Kind {
			return &p.Allocations[i]
		}
	}
	return nil
}

// Allocate records a new allocation against an invoice. The amount is in
// payment currency; rate converts invoice currency to payment currency on
// the payment date. The (payment, invoice) pair must be unique and the
// allocation sum may never exceed the payment total; the invoice-side
// bound is enforced by the allocation service, which sees both aggregates.
func (p *Payment) Allocate(
	ref invoicing.InvoiceRef,
	amount decimal.Decimal,
	invoiceCurrency valueobject.CurrencyCode,
	rate decimal.Decimal,
	remark string,
) (*PaymentAllocation, error) {
	if ref.IsZero() {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice reference is required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if !rate.IsPositive() {
		return nil, shared.NewDomainError("INVALID_RATE", "Allocation exchange rate must be positive")
	}
	if p.AllocationFor(ref) != nil {
		return nil, shared.NewDomainError(shared.ErrCodeDuplicateAllocation,
			fmt.Sprintf("Payment %s already has an allocation against invoice %s", p.Reference, ref)).
			WithDetail("payment_reference", p.Reference).
			WithDetail("invoice_id", ref.InvoiceID.String())
	}
	if unallocated := p.UnallocatedAmount(); amount.GreaterThan(unallocated) {
		return nil, exceedsLimit(p, amount, unallocated, "payment_total")
	}

	allocation := PaymentAllocation{
		ID:                       uuid.New(),
		PaymentID:                p.ID,
		InvoiceKind:              ref.Kind,
		InvoiceID:                ref.InvoiceID,
		Amount:                   amount,
		InvoiceCurrency:          invoiceCurrency,
		ExchangeRateAtAllocation: rate,
		AllocatedAt:              time.Now(),
		Remark:                   remark,
	}
	p.Allocations = append(p.Allocations, allocation)
	p.touch()

	p.AddDomainEvent(NewPaymentAllocatedEvent(p, &allocation))

	return &allocation, nil
}

// UpdateAllocation changes the amount of an existing allocation, keeping
// the captured currency and rate. The payment-side bound is re-checked
// against the other allocations.
func (p *Payment) UpdateAllocation(allocationID uuid.UUID, amount decimal.Decimal) (*PaymentAllocation, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}

	allocation := p.FindAllocation(allocationID)
	if allocation == nil {
		return nil, shared.ErrNotFound
	}

	available := p.UnallocatedAmount().Add(allocation.Amount)
	if amount.GreaterThan(available) {
		return nil, exceedsLimit(p, amount, available, "payment_total")
	}

	allocation.Amount = amount
	allocation.AllocatedAt = time.Now()
	p.touch()

	return allocation, nil
}

// RemoveAllocation deletes an allocation and returns the removed record
// so the caller can recompute the affected invoice's payment status.
func (p *Payment) RemoveAllocation(allocationID uuid.UUID) (*PaymentAllocation, error) {
	for i := range p.Allocations {
		if p.Allocations[i].ID == allocationID {
			removed := p.Allocations[i]
			p.Allocations = append(p.Allocations[:i], p.Allocations[i+1:]...)
			p.touch()
			p.AddDomainEvent(NewPaymentAllocationRemovedEvent(p, &removed))
			return &removed, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

func exceedsLimit(p *Payment, requested, maximum decimal.Decimal, bound string) *shared.DomainError {
	return shared.NewDomainError(shared.ErrCodeAllocationExceedsLimit,
		fmt.Sprintf("Allocation amount %s exceeds the maximum allowed %s",
			requested.StringFixed(2), maximum.StringFixed(2))).
		WithDetail("payment_reference", p.Reference).
		WithDetail("requested", requested.String()).
		WithDetail("maximum", maximum.String()).
		WithDetail("bound", bound)
}
