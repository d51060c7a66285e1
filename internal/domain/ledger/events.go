package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types for the ledger context
const (
	EventJournalEntryCreated  = "ledger.journal_entry.created"
	EventJournalEntryPosted   = "ledger.journal_entry.posted"
	EventJournalEntryReversed = "ledger.journal_entry.reversed"
)

// JournalEntryCreatedEvent is raised when a draft entry is created
type JournalEntryCreatedEvent struct {
	shared.BaseDomainEvent
	EntryNumber string `json:"entry_number"`
	LineCount   int    `json:"line_count"`
}

// NewJournalEntryCreatedEvent creates a new JournalEntryCreatedEvent
func NewJournalEntryCreatedEvent(entry *JournalEntry) *JournalEntryCreatedEvent {
	return &JournalEntryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventJournalEntryCreated, "JournalEntry", entry.ID),
		EntryNumber:     entry.EntryNumber,
		LineCount:       len(entry.Lines),
	}
}

// JournalEntryPostedEvent is raised when an entry transitions to posted
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	EntryNumber string `json:"entry_number"`
	TotalDebit  string `json:"total_debit"`
}

// NewJournalEntryPostedEvent creates a new JournalEntryPostedEvent
func NewJournalEntryPostedEvent(entry *JournalEntry) *JournalEntryPostedEvent {
	return &JournalEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventJournalEntryPosted, "JournalEntry", entry.ID),
		EntryNumber:     entry.EntryNumber,
		TotalDebit:      entry.TotalDebit().String(),
	}
}

// JournalEntryReversedEvent is raised on the reversal pair creation
type JournalEntryReversedEvent struct {
	shared.BaseDomainEvent
	OriginalEntryID     uuid.UUID `json:"original_entry_id"`
	OriginalEntryNumber string    `json:"original_entry_number"`
	ReversalEntryNumber string    `json:"reversal_entry_number"`
}

// NewJournalEntryReversedEvent creates a new JournalEntryReversedEvent
func NewJournalEntryReversedEvent(original, reversal *JournalEntry) *JournalEntryReversedEvent {
	return &JournalEntryReversedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventJournalEntryReversed, "JournalEntry", reversal.ID),
		OriginalEntryID:     original.ID,
		OriginalEntryNumber: original.EntryNumber,
		ReversalEntryNumber: reversal.EntryNumber,
	}
}
