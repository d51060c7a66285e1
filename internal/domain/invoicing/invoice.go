package invoicing

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceKind distinguishes receivable (sales) from payable (purchase)
// invoices. Posting orientation mirrors between the two.
type InvoiceKind string

const (
	InvoiceKindAR InvoiceKind = "AR" // Sales invoice, money owed to us
	InvoiceKindAP InvoiceKind = "AP" // Purchase invoice, money we owe
)

// IsValid checks if the invoice kind is valid
func (k InvoiceKind) IsValid() bool {
	return k == InvoiceKindAR || k == InvoiceKindAP
}

// String returns the string representation of InvoiceKind
func (k InvoiceKind) String() string {
	return string(k)
}

// ApprovalStatus is the workflow axis of an invoice
type ApprovalStatus string

const (
	ApprovalStatusDraft           ApprovalStatus = "DRAFT"
	ApprovalStatusPendingApproval ApprovalStatus = "PENDING_APPROVAL"
	ApprovalStatusApproved        ApprovalStatus = "APPROVED"
	ApprovalStatusRejected        ApprovalStatus = "REJECTED"
)

// IsValid checks if the approval status is valid
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusDraft, ApprovalStatusPendingApproval, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

// PostingStatus is the ledger axis of an invoice. Unposted→Posted happens
// exactly once; Reversed is reached only through an explicit reversal
// that creates a new journal entry.
type PostingStatus string

const (
	PostingStatusUnposted PostingStatus = "UNPOSTED"
	PostingStatusPosted   PostingStatus = "POSTED"
	PostingStatusReversed PostingStatus = "REVERSED"
)

// PaymentStatus is the settlement axis of an invoice. It is a pure
// function of the invoice total versus the sum of its allocations and is
// recomputed on every allocation mutation, deletions included.
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentStatusPaid          PaymentStatus = "PAID"
)

// Invoice is an AR or AP invoice aggregate. It exclusively owns its lines
// and holds a back-reference to the journal entry its posting produced;
// the entry's lifetime is independent of the invoice.
type Invoice struct {
	shared.BaseAggregateRoot
	Kind      InvoiceKind              `gorm:"type:varchar(2);not null;uniqueIndex:idx_invoice_kind_number,priority:1"`
	PartyID   uuid.UUID                `gorm:"type:uuid;not null;index"`
	PartyName string                   `gorm:"type:varchar(200);not null"`
	Number    string                   `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_kind_number,priority:2"`
	IssueDate time.Time                `gorm:"not null;index"`
	DueDate   *time.Time
	Currency  valueobject.CurrencyCode `gorm:"type:varchar(3);not null"`
	Country   string                   `gorm:"type:varchar(2)"` // Tax jurisdiction
	Lines     []InvoiceLine            `gorm:"foreignKey:InvoiceID;references:ID"`

	ApprovalStatus ApprovalStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`

	PostingStatus  PostingStatus `gorm:"type:varchar(20);not null;default:'UNPOSTED';index"`
	PostedAt       *time.Time
	JournalEntryID *uuid.UUID    `gorm:"type:uuid;index"`

	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
	PaidAt        *time.Time

	Cancelled    bool   `gorm:"not null;default:false"`
	CancelledAt  *time.Time
	CancelReason string `gorm:"type:varchar(500)"`

	// Totals snapshot in invoice currency, refreshed on every line
	// mutation and once more immediately before posting.
	Subtotal        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Total           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SelfAssessedTax decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Reverse-charge tax, not part of Total

	// Base-currency snapshot captured at posting time. Later rate changes
	// never retroactively alter a posted invoice.
	ExchangeRateAtPosting *decimal.Decimal `gorm:"type:decimal(18,6)"`
	BaseSubtotal          decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	BaseTaxAmount         decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	BaseCurrencyTotal     decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (Invoice) TableName() string {
	return "invoices"
}

// NewInvoice creates a new draft invoice without lines
func NewInvoice(
	kind InvoiceKind,
	partyID uuid.UUID,
	partyName string,
	number string,
	issueDate time.Time,
	dueDate *time.Time,
	curr valueobject.CurrencyCode,
	country string,
) (*Invoice, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_INVOICE_KIND", "Invoice kind must be AR or AP")
	}
	if partyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTY", "Party ID cannot be empty")
	}
	if partyName == "" {
		return nil, shared.NewDomainError("INVALID_PARTY_NAME", "Party name cannot be empty")
	}
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if issueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_ISSUE_DATE", "Issue date is required")
	}
	if curr == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Invoice currency is required")
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              kind,
		PartyID:           partyID,
		PartyName:         partyName,
		Number:            number,
		IssueDate:         issueDate,
		DueDate:           dueDate,
		Currency:          curr,
		Country:           country,
		Lines:             make([]InvoiceLine, 0),
		ApprovalStatus:    ApprovalStatusDraft,
		PostingStatus:     PostingStatusUnposted,
		PaymentStatus:     PaymentStatusUnpaid,
		Subtotal:          decimal.Zero,
		TaxAmount:         decimal.Zero,
		Total:             decimal.Zero,
		SelfAssessedTax:   decimal.Zero,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// AddLine appends a line and refreshes the totals snapshot
func (inv *Invoice) AddLine(description string, quantity, unitPrice, ratePercent decimal.Decimal, category TaxCategory) (*InvoiceLine, error) {
	if err := inv.mutable(); err != nil {
		return nil, err
	}

	line, err := newInvoiceLine(inv.ID, description, quantity, unitPrice, ratePercent, category)
	if err != nil {
		return nil, err
	}
	inv.Lines = append(inv.Lines, *line)
	inv.RecomputeTotals()
	inv.touch()
	return line, nil
}

// UpdateLine replaces a line's inputs and refreshes the totals snapshot
func (inv *Invoice) UpdateLine(lineID uuid.UUID, description string, quantity, unitPrice, ratePercent decimal.Decimal, category TaxCategory) error {
	if err := inv.mutable(); err != nil {
		return err
	}

	for i := range inv.Lines {
		if inv.Lines[i].ID != lineID {
			continue
		}
		updated, err := newInvoiceLine(inv.ID, description, quantity, unitPrice, ratePercent, category)
		if err != nil {
			return err
		}
		updated.ID = lineID
		inv.Lines[i] = *updated
		inv.RecomputeTotals()
		inv.touch()
		return nil
	}
	return shared.ErrNotFound
}

// RemoveLine deletes a line and refreshes the totals snapshot
func (inv *Invoice) RemoveLine(lineID uuid.UUID) error {
	if err := inv.mutable(); err != nil {
		return err
	}

	for i := range inv.Lines {
		if inv.Lines[i].ID == lineID {
			inv.Lines = append(inv.Lines[:i], inv.Lines[i+1:]...)
			inv.RecomputeTotals()
			inv.touch()
			return nil
		}
	}
	return shared.ErrNotFound
}

// RecomputeTotals aggregates the rounded line values into the invoice
// snapshot. Mixed tax categories are pre-aggregated here into a single
// subtotal/tax pair; the journal entry built from the snapshot is always
// at invoice-header granularity. Reverse-charge tax accumulates
// separately and does not increase the document total.
func (inv *Invoice) RecomputeTotals() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	selfAssessed := decimal.Zero

	for _, line := range inv.Lines {
		subtotal = subtotal.Add(line.NetAmount)
		if line.SelfAssessed {
			selfAssessed = selfAssessed.Add(line.TaxAmount)
		} else {
			tax = tax.Add(line.TaxAmount)
		}
	}

	inv.Subtotal = subtotal
	inv.TaxAmount = tax
	inv.SelfAssessedTax = selfAssessed
	inv.Total = subtotal.Add(tax)
}

// SubmitForApproval moves a draft invoice into the approval queue
func (inv *Invoice) SubmitForApproval() error {
	if inv.Cancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot submit a cancelled invoice")
	}
	if inv.ApprovalStatus != ApprovalStatusDraft && inv.ApprovalStatus != ApprovalStatusRejected {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot submit invoice in %s approval status", inv.ApprovalStatus))
	}
	if len(inv.Lines) == 0 {
		return shared.NewDomainError("INVALID_STATE", "Cannot submit an invoice without lines")
	}

	inv.ApprovalStatus = ApprovalStatusPendingApproval
	inv.touch()
	return nil
}

// Approve marks the invoice approved, making it eligible for posting
func (inv *Invoice) Approve() error {
	if inv.Cancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot approve a cancelled invoice")
	}
	if inv.ApprovalStatus != ApprovalStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot approve invoice in %s approval status", inv.ApprovalStatus))
	}

	inv.ApprovalStatus = ApprovalStatusApproved
	inv.AddDomainEvent(NewInvoiceApprovedEvent(inv))
	inv.touch()
	return nil
}

// Reject sends the invoice back to its author
func (inv *Invoice) Reject() error {
	if inv.ApprovalStatus != ApprovalStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reject invoice in %s approval status", inv.ApprovalStatus))
	}

	inv.ApprovalStatus = ApprovalStatusRejected
	inv.touch()
	return nil
}

// Cancel flags the invoice cancelled. A cancelled invoice can be neither
// posted nor paid.
func (inv *Invoice) Cancel(reason string) error {
	if inv.PostingStatus == PostingStatusPosted {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel a posted invoice; reverse the posting first")
	}
	if inv.Cancelled {
		return shared.NewDomainError("INVALID_STATE", "Invoice is already cancelled")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	now := time.Now()
	inv.Cancelled = true
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.touch()
	return nil
}

// CheckPostable verifies the posting preconditions, failing with
// INVALID_POSTING_STATE naming the precondition that does not hold.
func (inv *Invoice) CheckPostable() error {
	if inv.Cancelled {
		return invalidPostingState(inv, "not_cancelled", "Invoice is cancelled")
	}
	if inv.ApprovalStatus != ApprovalStatusApproved {
		return invalidPostingState(inv, "approval_status",
			fmt.Sprintf("Invoice approval status is %s, expected %s", inv.ApprovalStatus, ApprovalStatusApproved))
	}
	if inv.PostingStatus != PostingStatusUnposted {
		if inv.PostingStatus == PostingStatusPosted {
			err := shared.NewDomainError(shared.ErrCodeAlreadyPosted,
				fmt.Sprintf("Invoice %s is already posted", inv.Number)).
				WithDetail("invoice_number", inv.Number)
			if inv.JournalEntryID != nil {
				err = err.WithDetail("journal_entry_id", inv.JournalEntryID.String())
			}
			return err
		}
		return invalidPostingState(inv, "posting_status",
			fmt.Sprintf("Invoice posting status is %s, expected %s", inv.PostingStatus, PostingStatusUnposted))
	}
	if len(inv.Lines) == 0 {
		return invalidPostingState(inv, "lines", "Invoice has no lines")
	}
	return nil
}

// MarkPosted records the posting snapshot: journal entry link, the
// exchange rate used and the base-currency totals. The transition is
// irreversible except through an explicit reversal.
func (inv *Invoice) MarkPosted(entryID uuid.UUID, rate, baseSubtotal, baseTax, baseTotal decimal.Decimal) error {
	if err := inv.CheckPostable(); err != nil {
		return err
	}
	if entryID == uuid.Nil {
		return shared.NewDomainError("INVALID_ENTRY", "Journal entry ID cannot be empty")
	}
	if !rate.IsPositive() {
		return shared.NewDomainError("INVALID_RATE", "Posting exchange rate must be positive")
	}

	now := time.Now()
	inv.PostingStatus = PostingStatusPosted
	inv.PostedAt = &now
	inv.JournalEntryID = &entryID
	inv.ExchangeRateAtPosting = &rate
	inv.BaseSubtotal = baseSubtotal
	inv.BaseTaxAmount = baseTax
	inv.BaseCurrencyTotal = baseTotal
	inv.touch()

	inv.AddDomainEvent(NewInvoicePostedEvent(inv, entryID))

	return nil
}

// MarkPostingReversed moves a posted invoice to the reversed marker. The
// invoice is not silently re-editable; a new posting cycle requires a
// fresh document. The posting snapshot is retained for audit.
func (inv *Invoice) MarkPostingReversed() error {
	if inv.PostingStatus != PostingStatusPosted {
		return invalidPostingState(inv, "posting_status",
			fmt.Sprintf("Invoice posting status is %s, expected %s", inv.PostingStatus, PostingStatusPosted))
	}

	inv.PostingStatus = PostingStatusReversed
	inv.touch()

	inv.AddDomainEvent(NewInvoicePostingReversedEvent(inv))

	return nil
}

// Outstanding returns the unpaid remainder in invoice currency given the
// sum of allocations converted into invoice currency.
func (inv *Invoice) Outstanding(paid decimal.Decimal) decimal.Decimal {
	return inv.Total.Sub(paid)
}

// RefreshPaymentStatus recomputes the payment status axis from the paid
// amount (in invoice currency). It must be called after every allocation
// create, update or delete; the status moves backward when allocations
// are removed and PaidAt is set or cleared accordingly.
func (inv *Invoice) RefreshPaymentStatus(paid decimal.Decimal) {
	outstanding := inv.Outstanding(paid)

	previous := inv.PaymentStatus
	switch {
	case outstanding.LessThanOrEqual(decimal.Zero) && paid.IsPositive():
		if inv.PaymentStatus != PaymentStatusPaid {
			now := time.Now()
			inv.PaidAt = &now
		}
		inv.PaymentStatus = PaymentStatusPaid
	case paid.IsPositive():
		inv.PaymentStatus = PaymentStatusPartiallyPaid
		inv.PaidAt = nil
	default:
		inv.PaymentStatus = PaymentStatusUnpaid
		inv.PaidAt = nil
	}

	if previous != inv.PaymentStatus {
		inv.AddDomainEvent(NewInvoicePaymentStatusChangedEvent(inv, previous))
	}
	inv.touch()
}

// IsPosted reports whether the invoice is currently posted
func (inv *Invoice) IsPosted() bool {
	return inv.PostingStatus == PostingStatusPosted
}

// Ref returns the tagged reference for this invoice
func (inv *Invoice) Ref() InvoiceRef {
	return InvoiceRef{Kind: inv.Kind, InvoiceID: inv.ID}
}

// DocumentTotal implements InvoiceDocument
func (inv *Invoice) DocumentTotal() decimal.Decimal {
	return inv.Total
}

// DocumentParty implements InvoiceDocument
func (inv *Invoice) DocumentParty() uuid.UUID {
	return inv.PartyID
}

// DocumentCurrency implements InvoiceDocument
func (inv *Invoice) DocumentCurrency() valueobject.CurrencyCode {
	return inv.Currency
}

// mutable guards line edits: once posted (or cancelled) the document
// content is frozen.
func (inv *Invoice) mutable() error {
	if inv.Cancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot modify a cancelled invoice")
	}
	if inv.PostingStatus != PostingStatusUnposted {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot modify lines of a %s invoice", inv.PostingStatus))
	}
	return nil
}

func (inv *Invoice) touch() {
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}

func invalidPostingState(inv *Invoice, precondition, message string) *shared.DomainError {
	return shared.NewDomainError(shared.ErrCodeInvalidPostingState, message).
		WithDetail("invoice_number", inv.Number).
		WithDetail("precondition", precondition)
}
