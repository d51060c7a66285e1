package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by ID with its lines
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var invoice invoicing.Invoice
	if err := dbFrom(ctx, r.db).
		Preload("Lines").
		First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// FindByRef finds an invoice by its typed reference. The kind is part of
// the lookup so an AR reference can never resolve to an AP invoice.
func (r *GormInvoiceRepository) FindByRef(ctx context.Context, ref invoicing.InvoiceRef) (*invoicing.Invoice, error) {
	var invoice invoicing.Invoice
	if err := dbFrom(ctx, r.db).
		Preload("Lines").
		First(&invoice, "id = ? AND kind = ?", ref.InvoiceID, ref.Kind).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// FindByNumber finds an invoice by its document number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*invoicing.Invoice, error) {
	var invoice invoicing.Invoice
	if err := dbFrom(ctx, r.db).
		Preload("Lines").
		First(&invoice, "number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// FindAll finds one page of invoices matching the filter, newest first,
// along with the total match count
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	applyFilter := func(query *gorm.DB) *gorm.DB {
		if filter.Kind != nil {
			query = query.Where("kind = ?", *filter.Kind)
		}
		if filter.PartyID != nil {
			query = query.Where("party_id = ?", *filter.PartyID)
		}
		if filter.PostingStatus != nil {
			query = query.Where("posting_status = ?", *filter.PostingStatus)
		}
		if filter.PaymentStatus != nil {
			query = query.Where("payment_status = ?", *filter.PaymentStatus)
		}
		return query
	}

	var total int64
	countQuery := applyFilter(dbFrom(ctx, r.db).Model(&invoicing.Invoice{}))
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := applyFilter(dbFrom(ctx, r.db).Model(&invoicing.Invoice{}).Preload("Lines"))
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var invoices []invoicing.Invoice
	if err := query.Order("issue_date DESC, number DESC").Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// FindOpenPosted returns posted, non-cancelled invoices that are not fully
// paid, the revaluation candidate set
func (r *GormInvoiceRepository) FindOpenPosted(ctx context.Context) ([]invoicing.Invoice, error) {
	var invoices []invoicing.Invoice
	err := dbFrom(ctx, r.db).
		Preload("Lines").
		Where("posting_status = ? AND payment_status <> ? AND cancelled = ?",
			invoicing.PostingStatusPosted, invoicing.PaymentStatusPaid, false).
		Order("issue_date ASC, number ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// Save creates or updates an invoice with its lines. Lines removed from
// the aggregate are deleted, since gorm's association save only upserts.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	db := dbFrom(ctx, r.db)

	if err := db.Save(invoice).Error; err != nil {
		return err
	}
	return r.deleteRemovedLines(db, invoice)
}

// SaveWithLock updates an invoice using optimistic locking.
// The invoice's version must already be incremented by the domain layer.
// Select("*") forces every column into the UPDATE, because a struct
// update would skip zero values and a cleared paid_at or reset status
// would silently survive in the database.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	db := dbFrom(ctx, r.db)

	result := db.Model(invoice).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Select("*").
		Omit(clause.Associations, "id", "created_at").
		Updates(invoice)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.
			WithDetail("invoice_number", invoice.Number)
	}

	for i := range invoice.Lines {
		if err := db.Save(&invoice.Lines[i]).Error; err != nil {
			return err
		}
	}
	return r.deleteRemovedLines(db, invoice)
}

func (r *GormInvoiceRepository) deleteRemovedLines(db *gorm.DB, invoice *invoicing.Invoice) error {
	keep := make([]uuid.UUID, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		keep = append(keep, line.ID)
	}

	query := db.Where("invoice_id = ?", invoice.ID)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	return query.Delete(&invoicing.InvoiceLine{}).Error
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
