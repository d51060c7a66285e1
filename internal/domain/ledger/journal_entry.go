package ledger

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalLine is one side of a double-entry posting. Exactly one of Debit
// and Credit is non-zero and both are non-negative.
type JournalLine struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	JournalEntryID uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountCode    string          `gorm:"type:varchar(20);not null"` // Denormalized for display and audit
	Debit          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Credit         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Memo           string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (JournalLine) TableName() string {
	return "journal_lines"
}

// IsDebit returns true if the line carries a debit amount
func (l *JournalLine) IsDebit() bool {
	return l.Debit.IsPositive()
}

// Delta returns debit minus credit for the line
func (l *JournalLine) Delta() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// LineInput describes a journal line to be created
type LineInput struct {
	Account *Account
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Memo    string
}

// DebitLine builds a LineInput debiting the account
func DebitLine(account *Account, amount decimal.Decimal) LineInput {
	return LineInput{Account: account, Debit: amount, Credit: decimal.Zero}
}

// CreditLine builds a LineInput crediting the account
func CreditLine(account *Account, amount decimal.Decimal) LineInput {
	return LineInput{Account: account, Debit: decimal.Zero, Credit: amount}
}

// JournalEntry is a balanced set of debit/credit lines recorded as one
// atomic accounting event. Once posted an entry is immutable; corrections
// happen only through a new reversing entry, and both entries remain in
// the ledger permanently.
type JournalEntry struct {
	shared.BaseAggregateRoot
	EntryNumber  string                   `gorm:"type:varchar(50);not null;uniqueIndex"`
	EntryDate    time.Time                `gorm:"not null;index"`
	Currency     valueobject.CurrencyCode `gorm:"type:varchar(3);not null"`
	Memo         string                   `gorm:"type:varchar(500)"`
	Posted       bool                     `gorm:"not null;default:false;index"`
	PostedAt     *time.Time
	ReversalOfID *uuid.UUID `gorm:"type:uuid;index"` // Set on the mirror entry
	ReversedByID *uuid.UUID `gorm:"type:uuid"`       // Set on the original once reversed
	Lines        []JournalLine            `gorm:"foreignKey:JournalEntryID;references:ID"`
}

// TableName returns the table name for GORM
func (JournalEntry) TableName() string {
	return "journal_entries"
}

// NewJournalEntry creates a balanced draft journal entry. It fails with
// UNBALANCED_ENTRY when debits and credits differ, and rejects entries
// with fewer than two lines or malformed lines.
func NewJournalEntry(
	entryNumber string,
	entryDate time.Time,
	currency valueobject.CurrencyCode,
	memo string,
	lines []LineInput,
) (*JournalEntry, error) {
	if entryNumber == "" {
		return nil, shared.NewDomainError("INVALID_ENTRY_NUMBER", "Entry number cannot be empty")
	}
	if entryDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_ENTRY_DATE", "Entry date is required")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Entry currency is required")
	}
	if len(lines) < 2 {
		return nil, shared.NewDomainError(shared.ErrCodeUnbalancedEntry,
			"A journal entry requires at least two lines").
			WithDetail("line_count", len(lines))
	}

	entry := &JournalEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		EntryNumber:       entryNumber,
		EntryDate:         entryDate,
		Currency:          currency,
		Memo:              memo,
		Lines:             make([]JournalLine, 0, len(lines)),
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, in := range lines {
		if in.Account == nil {
			return nil, shared.NewDomainError("INVALID_LINE", fmt.Sprintf("Line %d has no account", i))
		}
		if in.Debit.IsNegative() || in.Credit.IsNegative() {
			return nil, shared.NewDomainError("INVALID_LINE",
				fmt.Sprintf("Line %d has a negative amount", i)).
				WithDetail("account_code", in.Account.Code)
		}
		debitSet := in.Debit.IsPositive()
		creditSet := in.Credit.IsPositive()
		if debitSet == creditSet {
			return nil, shared.NewDomainError("INVALID_LINE",
				fmt.Sprintf("Line %d must have exactly one of debit or credit set", i)).
				WithDetail("account_code", in.Account.Code)
		}

		entry.Lines = append(entry.Lines, JournalLine{
			ID:             uuid.New(),
			JournalEntryID: entry.ID,
			AccountID:      in.Account.ID,
			AccountCode:    in.Account.Code,
			Debit:          in.Debit,
			Credit:         in.Credit,
			Memo:           in.Memo,
		})
		totalDebit = totalDebit.Add(in.Debit)
		totalCredit = totalCredit.Add(in.Credit)
	}

	if !totalDebit.Equal(totalCredit) {
		return nil, shared.NewDomainError(shared.ErrCodeUnbalancedEntry,
			fmt.Sprintf("Journal entry is unbalanced: debits %s, credits %s",
				totalDebit.StringFixed(2), totalCredit.StringFixed(2))).
			WithDetail("total_debit", totalDebit.String()).
			WithDetail("total_credit", totalCredit.String())
	}

	entry.AddDomainEvent(NewJournalEntryCreatedEvent(entry))

	return entry, nil
}

// TotalDebit sums the debit side of the entry
func (e *JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side of the entry
func (e *JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// IsBalanced reports whether debits equal credits
func (e *JournalEntry) IsBalanced() bool {
	return e.TotalDebit().Equal(e.TotalCredit())
}

// IsReversed reports whether a reversing entry exists for this one
func (e *JournalEntry) IsReversed() bool {
	return e.ReversedByID != nil
}

// Post marks the entry as posted. The balance invariant is re-checked so
// an entry mutated through persistence round-trips can never post skewed.
func (e *JournalEntry) Post() error {
	if e.Posted {
		return shared.NewDomainError(shared.ErrCodeAlreadyPosted,
			fmt.Sprintf("Journal entry %s is already posted", e.EntryNumber)).
			WithDetail("entry_number", e.EntryNumber)
	}
	if !e.IsBalanced() {
		return shared.NewDomainError(shared.ErrCodeUnbalancedEntry,
			fmt.Sprintf("Journal entry is unbalanced: debits %s, credits %s",
				e.TotalDebit().StringFixed(2), e.TotalCredit().StringFixed(2))).
			WithDetail("total_debit", e.TotalDebit().String()).
			WithDetail("total_credit", e.TotalCredit().String())
	}

	now := time.Now()
	e.Posted = true
	e.PostedAt = &now
	e.UpdatedAt = now
	e.IncrementVersion()

	e.AddDomainEvent(NewJournalEntryPostedEvent(e))

	return nil
}

// BuildReversal creates the mirror entry: every line copied with debit and
// credit swapped, dated now (not backdated), memo referencing the original
// entry number. The mirror is posted immediately and the original is left
// untouched apart from the reversed-by link, so the net ledger effect of
// the pair is zero on every account.
func (e *JournalEntry) BuildReversal(entryNumber string) (*JournalEntry, error) {
	if !e.Posted {
		return nil, shared.NewDomainError(shared.ErrCodeInvalidPostingState,
			"Cannot reverse a journal entry that has not been posted").
			WithDetail("entry_number", e.EntryNumber)
	}
	if e.IsReversed() {
		return nil, shared.NewDomainError(shared.ErrCodeInvalidPostingState,
			fmt.Sprintf("Journal entry %s has already been reversed", e.EntryNumber)).
			WithDetail("entry_number", e.EntryNumber)
	}

	now := time.Now()
	reversal := &JournalEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		EntryNumber:       entryNumber,
		EntryDate:         now,
		Currency:          e.Currency,
		Memo:              fmt.Sprintf("Reversal of %s", e.EntryNumber),
		Posted:            true,
		PostedAt:          &now,
		ReversalOfID:      &e.ID,
		Lines:             make([]JournalLine, 0, len(e.Lines)),
	}

	for _, line := range e.Lines {
		reversal.Lines = append(reversal.Lines, JournalLine{
			ID:             uuid.New(),
			JournalEntryID: reversal.ID,
			AccountID:      line.AccountID,
			AccountCode:    line.AccountCode,
			Debit:          line.Credit,
			Credit:         line.Debit,
			Memo:           line.Memo,
		})
	}

	e.ReversedByID = &reversal.ID
	e.UpdatedAt = now
	e.IncrementVersion()

	reversal.AddDomainEvent(NewJournalEntryReversedEvent(e, reversal))

	return reversal, nil
}
