package tax

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FilingStatus is the lifecycle state of a corporate tax filing
type FilingStatus string

const (
	FilingStatusDraft    FilingStatus = "DRAFT"
	FilingStatusAccrued  FilingStatus = "ACCRUED"
	FilingStatusFiled    FilingStatus = "FILED"
	FilingStatusPaid     FilingStatus = "PAID"
	FilingStatusReversed FilingStatus = "REVERSED"
)

// IsValid checks if the filing status is valid
func (s FilingStatus) IsValid() bool {
	switch s {
	case FilingStatusDraft, FilingStatusAccrued, FilingStatusFiled, FilingStatusPaid, FilingStatusReversed:
		return true
	}
	return false
}

// String returns the string representation
func (s FilingStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed
func (s FilingStatus) IsTerminal() bool {
	return s == FilingStatusPaid || s == FilingStatusReversed
}

// CorporateTaxFiling accrues corporate income tax for one fiscal period.
// The taxable income and tax amount are computed from posted ledger
// activity at accrual time and frozen on the aggregate; the accrual
// journal entry is linked once posted.
type CorporateTaxFiling struct {
	shared.BaseAggregateRoot
	PeriodStart    time.Time                `gorm:"not null;uniqueIndex:idx_filing_period,priority:1"`
	PeriodEnd      time.Time                `gorm:"not null;uniqueIndex:idx_filing_period,priority:2"`
	TaxRatePercent decimal.Decimal          `gorm:"type:decimal(8,4);not null"`
	TaxableIncome  decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	TaxAmount      decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	Currency       valueobject.CurrencyCode `gorm:"type:varchar(3);not null"`
	Status         FilingStatus             `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	JournalEntryID *uuid.UUID               `gorm:"type:uuid"`
	AccruedAt      *time.Time
	FiledAt        *time.Time
	PaidAt         *time.Time
	ReversedAt     *time.Time
}

// TableName returns the table name for GORM
func (CorporateTaxFiling) TableName() string {
	return "corporate_tax_filings"
}

// NewCorporateTaxFiling creates a draft filing for a fiscal period.
// Taxable income may be negative (a loss period); in that case the tax
// amount is clamped to zero and the filing stays Draft with no entry.
func NewCorporateTaxFiling(
	periodStart, periodEnd time.Time,
	taxRatePercent decimal.Decimal,
	taxableIncome decimal.Decimal,
	currency valueobject.CurrencyCode,
) (*CorporateTaxFiling, error) {
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Filing period start and end are required")
	}
	if !periodEnd.After(periodStart) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Filing period end must be after period start").
			WithDetail("period_start", periodStart.Format("2006-01-02")).
			WithDetail("period_end", periodEnd.Format("2006-01-02"))
	}
	if taxRatePercent.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TAX_RATE", "Tax rate cannot be negative")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Filing currency is required")
	}

	taxAmount := decimal.Zero
	if taxableIncome.IsPositive() {
		taxAmount = taxableIncome.Mul(taxRatePercent).Div(decimal.NewFromInt(100)).
			Round(valueobject.MoneyPlaces)
	}

	f := &CorporateTaxFiling{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		TaxRatePercent:    taxRatePercent,
		TaxableIncome:     taxableIncome,
		TaxAmount:         taxAmount,
		Currency:          currency,
		Status:            FilingStatusDraft,
	}

	f.AddDomainEvent(NewFilingCreatedEvent(f))

	return f, nil
}

// HasAccruableTax reports whether the period produced tax worth accruing
func (f *CorporateTaxFiling) HasAccruableTax() bool {
	return f.TaxAmount.IsPositive()
}

// MarkAccrued links the accrual journal entry and moves Draft to Accrued.
// A loss-period filing with zero tax cannot accrue.
func (f *CorporateTaxFiling) MarkAccrued(journalEntryID uuid.UUID) error {
	if f.Status != FilingStatusDraft {
		return f.transitionError("accrue", FilingStatusDraft)
	}
	if !f.HasAccruableTax() {
		return shared.NewDomainError("NOTHING_TO_ACCRUE",
			"Filing has no positive tax amount to accrue").
			WithDetail("taxable_income", f.TaxableIncome.String())
	}

	now := time.Now()
	f.Status = FilingStatusAccrued
	f.JournalEntryID = &journalEntryID
	f.AccruedAt = &now
	f.touch(now)

	f.AddDomainEvent(NewFilingAccruedEvent(f))

	return nil
}

// File marks the accrued liability as filed with the authority
func (f *CorporateTaxFiling) File() error {
	if f.Status != FilingStatusAccrued {
		return f.transitionError("file", FilingStatusAccrued)
	}

	now := time.Now()
	f.Status = FilingStatusFiled
	f.FiledAt = &now
	f.touch(now)

	f.AddDomainEvent(NewFilingFiledEvent(f))

	return nil
}

// MarkPaid records settlement of the filed liability
func (f *CorporateTaxFiling) MarkPaid() error {
	if f.Status != FilingStatusFiled {
		return f.transitionError("pay", FilingStatusFiled)
	}

	now := time.Now()
	f.Status = FilingStatusPaid
	f.PaidAt = &now
	f.touch(now)

	f.AddDomainEvent(NewFilingPaidEvent(f))

	return nil
}

// MarkReversed backs out a filed accrual. Only a Filed filing can
// reverse; once paid the liability is settled and must be corrected
// through a fresh filing.
func (f *CorporateTaxFiling) MarkReversed() error {
	if f.Status != FilingStatusFiled {
		return f.transitionError("reverse", FilingStatusFiled)
	}

	now := time.Now()
	f.Status = FilingStatusReversed
	f.ReversedAt = &now
	f.touch(now)

	f.AddDomainEvent(NewFilingReversedEvent(f))

	return nil
}

func (f *CorporateTaxFiling) touch(now time.Time) {
	f.UpdatedAt = now
	f.IncrementVersion()
}

func (f *CorporateTaxFiling) transitionError(action string, required FilingStatus) *shared.DomainError {
	return shared.NewDomainError(shared.ErrCodeInvalidPostingState,
		fmt.Sprintf("Cannot %s a filing in status %s, must be %s", action, f.Status, required)).
		WithDetail("status", f.Status.String()).
		WithDetail("required_status", required.String())
}
