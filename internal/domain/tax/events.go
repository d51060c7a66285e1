package tax

import (
	"github.com/erp/ledger/internal/domain/shared"
)

// Event types for the corporate tax context
const (
	EventFilingCreated  = "tax.filing.created"
	EventFilingAccrued  = "tax.filing.accrued"
	EventFilingFiled    = "tax.filing.filed"
	EventFilingPaid     = "tax.filing.paid"
	EventFilingReversed = "tax.filing.reversed"
)

// FilingCreatedEvent is raised when a filing is drafted
type FilingCreatedEvent struct {
	shared.BaseDomainEvent
	TaxableIncome string `json:"taxable_income"`
	TaxAmount     string `json:"tax_amount"`
}

// NewFilingCreatedEvent creates a new FilingCreatedEvent
func NewFilingCreatedEvent(f *CorporateTaxFiling) *FilingCreatedEvent {
	return &FilingCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventFilingCreated, "CorporateTaxFiling", f.ID),
		TaxableIncome:   f.TaxableIncome.String(),
		TaxAmount:       f.TaxAmount.String(),
	}
}

// FilingAccruedEvent is raised when the accrual entry is posted
type FilingAccruedEvent struct {
	shared.BaseDomainEvent
	TaxAmount string `json:"tax_amount"`
}

// NewFilingAccruedEvent creates a new FilingAccruedEvent
func NewFilingAccruedEvent(f *CorporateTaxFiling) *FilingAccruedEvent {
	return &FilingAccruedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventFilingAccrued, "CorporateTaxFiling", f.ID),
		TaxAmount:       f.TaxAmount.String(),
	}
}

// FilingFiledEvent is raised when the filing is submitted
type FilingFiledEvent struct {
	shared.BaseDomainEvent
}

// NewFilingFiledEvent creates a new FilingFiledEvent
func NewFilingFiledEvent(f *CorporateTaxFiling) *FilingFiledEvent {
	return &FilingFiledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventFilingFiled, "CorporateTaxFiling", f.ID),
	}
}

// FilingPaidEvent is raised when the liability is settled
type FilingPaidEvent struct {
	shared.BaseDomainEvent
}

// NewFilingPaidEvent creates a new FilingPaidEvent
func NewFilingPaidEvent(f *CorporateTaxFiling) *FilingPaidEvent {
	return &FilingPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventFilingPaid, "CorporateTaxFiling", f.ID),
	}
}

// FilingReversedEvent is raised when a filed accrual is backed out
type FilingReversedEvent struct {
	shared.BaseDomainEvent
}

// NewFilingReversedEvent creates a new FilingReversedEvent
func NewFilingReversedEvent(f *CorporateTaxFiling) *FilingReversedEvent {
	return &FilingReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventFilingReversed, "CorporateTaxFiling", f.ID),
	}
}
