package invoicing

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types for the invoicing context
const (
	EventInvoiceCreated              = "invoicing.invoice.created"
	EventInvoiceApproved             = "invoicing.invoice.approved"
	EventInvoicePosted               = "invoicing.invoice.posted"
	EventInvoicePostingReversed      = "invoicing.invoice.posting_reversed"
	EventInvoicePaymentStatusChanged = "invoicing.invoice.payment_status_changed"
)

// InvoiceCreatedEvent is raised when an invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	Kind   InvoiceKind `json:"kind"`
	Number string      `json:"number"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoiceCreated, "Invoice", inv.ID),
		Kind:            inv.Kind,
		Number:          inv.Number,
	}
}

// InvoiceApprovedEvent is raised when an invoice is approved
type InvoiceApprovedEvent struct {
	shared.BaseDomainEvent
	Number string `json:"number"`
}

// NewInvoiceApprovedEvent creates a new InvoiceApprovedEvent
func NewInvoiceApprovedEvent(inv *Invoice) *InvoiceApprovedEvent {
	return &InvoiceApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoiceApproved, "Invoice", inv.ID),
		Number:          inv.Number,
	}
}

// InvoicePostedEvent is raised when an invoice is posted to the ledger
type InvoicePostedEvent struct {
	shared.BaseDomainEvent
	Number         string    `json:"number"`
	JournalEntryID uuid.UUID `json:"journal_entry_id"`
	BaseTotal      string    `json:"base_currency_total"`
}

// NewInvoicePostedEvent creates a new InvoicePostedEvent
func NewInvoicePostedEvent(inv *Invoice, entryID uuid.UUID) *InvoicePostedEvent {
	return &InvoicePostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoicePosted, "Invoice", inv.ID),
		Number:          inv.Number,
		JournalEntryID:  entryID,
		BaseTotal:       inv.BaseCurrencyTotal.String(),
	}
}

// InvoicePostingReversedEvent is raised when a posting is reversed
type InvoicePostingReversedEvent struct {
	shared.BaseDomainEvent
	Number string `json:"number"`
}

// NewInvoicePostingReversedEvent creates a new InvoicePostingReversedEvent
func NewInvoicePostingReversedEvent(inv *Invoice) *InvoicePostingReversedEvent {
	return &InvoicePostingReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoicePostingReversed, "Invoice", inv.ID),
		Number:          inv.Number,
	}
}

// InvoicePaymentStatusChangedEvent is raised when the payment status axis moves
type InvoicePaymentStatusChangedEvent struct {
	shared.BaseDomainEvent
	Number         string        `json:"number"`
	PreviousStatus PaymentStatus `json:"previous_status"`
	NewStatus      PaymentStatus `json:"new_status"`
}

// NewInvoicePaymentStatusChangedEvent creates a new InvoicePaymentStatusChangedEvent
func NewInvoicePaymentStatusChangedEvent(inv *Invoice, previous PaymentStatus) *InvoicePaymentStatusChangedEvent {
	return &InvoicePaymentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoicePaymentStatusChanged, "Invoice", inv.ID),
		Number:          inv.Number,
		PreviousStatus:  previous,
		NewStatus:       inv.PaymentStatus,
	}
}
