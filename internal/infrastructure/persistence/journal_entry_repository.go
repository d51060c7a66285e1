package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormJournalEntryRepository implements JournalEntryRepository using GORM
type GormJournalEntryRepository struct {
	db     *gorm.DB
	prefix string
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository.
// prefix is the entry number prefix, e.g. "JE" produces JE-00000001.
func NewGormJournalEntryRepository(db *gorm.DB, prefix string) *GormJournalEntryRepository {
	if prefix == "" {
		prefix = "JE"
	}
	return &GormJournalEntryRepository{db: db, prefix: prefix}
}

// FindByID finds a journal entry by ID with its lines
func (r *GormJournalEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	var entry ledger.JournalEntry
	if err := dbFrom(ctx, r.db).
		Preload("Lines").
		First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindByEntryNumber finds a journal entry by its entry number
func (r *GormJournalEntryRepository) FindByEntryNumber(ctx context.Context, entryNumber string) (*ledger.JournalEntry, error) {
	var entry ledger.JournalEntry
	if err := dbFrom(ctx, r.db).
		Preload("Lines").
		First(&entry, "entry_number = ?", entryNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Save creates or updates a journal entry with its lines. The ledger is
// append-only so lines are only ever inserted, never removed.
func (r *GormJournalEntryRepository) Save(ctx context.Context, entry *ledger.JournalEntry) error {
	return dbFrom(ctx, r.db).Save(entry).Error
}

// SaveWithLock updates a journal entry using optimistic locking.
// The entry's version must already be incremented by the domain layer.
// Select("*") forces every column into the UPDATE so cleared pointer
// fields reach the database; a struct update would skip them.
func (r *GormJournalEntryRepository) SaveWithLock(ctx context.Context, entry *ledger.JournalEntry) error {
	db := dbFrom(ctx, r.db)

	result := db.Model(entry).
		Where("id = ? AND version = ?", entry.ID, entry.Version-1).
		Select("*").
		Omit(clause.Associations, "id", "created_at").
		Updates(entry)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.
			WithDetail("entry_number", entry.EntryNumber)
	}

	for i := range entry.Lines {
		if err := db.Save(&entry.Lines[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// periodActivityRow is the scan target for the accrual aggregation
type periodActivityRow struct {
	AccountType string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// SumPeriodActivityByType aggregates posted line debits and credits per
// account type for entries dated within [periodStart, periodEnd]
func (r *GormJournalEntryRepository) SumPeriodActivityByType(
	ctx context.Context,
	periodStart, periodEnd time.Time,
	types []ledger.AccountType,
) ([]ledger.PeriodActivity, error) {
	if len(types) == 0 {
		return nil, nil
	}

	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, t.String())
	}

	var rows []periodActivityRow
	err := dbFrom(ctx, r.db).
		Table("journal_lines").
		Select("accounts.type AS account_type, "+
			"COALESCE(SUM(journal_lines.debit), 0) AS debit, "+
			"COALESCE(SUM(journal_lines.credit), 0) AS credit").
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.journal_entry_id").
		Joins("JOIN accounts ON accounts.id = journal_lines.account_id").
		Where("journal_entries.posted = ?", true).
		Where("journal_entries.entry_date >= ? AND journal_entries.entry_date <= ?", periodStart, periodEnd).
		Where("accounts.type IN ?", typeNames).
		Group("accounts.type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	activities := make([]ledger.PeriodActivity, 0, len(rows))
	for _, row := range rows {
		activities = append(activities, ledger.PeriodActivity{
			AccountType: ledger.AccountType(row.AccountType),
			Debit:       row.Debit,
			Credit:      row.Credit,
		})
	}
	return activities, nil
}

// NextEntryNumber generates the next sequential entry number in the
// format PREFIX-00000001. The zero-padded sequence keeps lexicographic
// and numeric order aligned, so the current maximum can be read back
// with a single ordered query.
func (r *GormJournalEntryRepository) NextEntryNumber(ctx context.Context) (string, error) {
	var maxNumber string
	err := dbFrom(ctx, r.db).
		Model(&ledger.JournalEntry{}).
		Select("entry_number").
		Where("entry_number LIKE ?", r.prefix+"-%").
		Order("entry_number DESC").
		Limit(1).
		Scan(&maxNumber).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	nextSeq := 1
	if len(maxNumber) > len(r.prefix)+1 {
		var seq int
		if _, err := fmt.Sscanf(maxNumber[len(r.prefix)+1:], "%08d", &seq); err == nil {
			nextSeq = seq + 1
		}
	}

	return fmt.Sprintf("%s-%08d", r.prefix, nextSeq), nil
}

// Ensure GormJournalEntryRepository implements JournalEntryRepository
var _ ledger.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
