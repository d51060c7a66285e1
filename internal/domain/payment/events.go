package payment

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types for the payment context
const (
	EventPaymentCreated           = "payment.created"
	EventPaymentAllocated         = "payment.allocated"
	EventPaymentAllocationRemoved = "payment.allocation_removed"
)

// PaymentCreatedEvent is raised when a payment is recorded
type PaymentCreatedEvent struct {
	shared.BaseDomainEvent
	Reference string      `json:"reference"`
	Kind      PaymentKind `json:"kind"`
	Amount    string      `json:"amount"`
}

// NewPaymentCreatedEvent creates a new PaymentCreatedEvent
func NewPaymentCreatedEvent(p *Payment) *PaymentCreatedEvent {
	return &PaymentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentCreated, "Payment", p.ID),
		Reference:       p.Reference,
		Kind:            p.Kind,
		Amount:          p.TotalAmount.String(),
	}
}

// PaymentAllocatedEvent is raised when an allocation is created
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	Reference    string    `json:"reference"`
	AllocationID uuid.UUID `json:"allocation_id"`
	InvoiceID    uuid.UUID `json:"invoice_id"`
	Amount       string    `json:"amount"`
}

// NewPaymentAllocatedEvent creates a new PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, a *PaymentAllocation) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentAllocated, "Payment", p.ID),
		Reference:       p.Reference,
		AllocationID:    a.ID,
		InvoiceID:       a.InvoiceID,
		Amount:          a.Amount.String(),
	}
}

// PaymentAllocationRemovedEvent is raised when an allocation is deleted
type PaymentAllocationRemovedEvent struct {
	shared.BaseDomainEvent
	Reference    string    `json:"reference"`
	AllocationID uuid.UUID `json:"allocation_id"`
	InvoiceID    uuid.UUID `json:"invoice_id"`
}

// NewPaymentAllocationRemovedEvent creates a new PaymentAllocationRemovedEvent
func NewPaymentAllocationRemovedEvent(p *Payment, a *PaymentAllocation) *PaymentAllocationRemovedEvent {
	return &PaymentAllocationRemovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentAllocationRemoved, "Payment", p.ID),
		Reference:       p.Reference,
		AllocationID:    a.ID,
		InvoiceID:       a.InvoiceID,
	}
}
