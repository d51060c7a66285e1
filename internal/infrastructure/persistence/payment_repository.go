package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID with its allocations
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	var p payment.Payment
	if err := dbFrom(ctx, r.db).
		Preload("Allocations").
		First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// FindByReference finds a payment by its unique reference
func (r *GormPaymentRepository) FindByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	var p payment.Payment
	if err := dbFrom(ctx, r.db).
		Preload("Allocations").
		First(&p, "reference = ?", reference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// FindByAllocationID finds the payment owning the given allocation
func (r *GormPaymentRepository) FindByAllocationID(ctx context.Context, allocationID uuid.UUID) (*payment.Payment, error) {
	var p payment.Payment
	sub := dbFrom(ctx, r.db).
		Model(&payment.PaymentAllocation{}).
		Select("payment_id").
		Where("id = ?", allocationID)
	err := dbFrom(ctx, r.db).
		Preload("Allocations").
		Where("id = (?)", sub).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Save creates or updates a payment with its allocations. Allocations
// removed from the aggregate are deleted, since gorm's association save
// only upserts.
func (r *GormPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	db := dbFrom(ctx, r.db)

	if err := db.Save(p).Error; err != nil {
		return err
	}
	return r.deleteRemovedAllocations(db, p)
}

// SaveWithLock updates a payment using optimistic locking.
// The payment's version must already be incremented by the domain layer.
// Select("*") forces every column into the UPDATE so cleared pointer
// fields reach the database; a struct update would skip them.
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, p *payment.Payment) error {
	db := dbFrom(ctx, r.db)

	result := db.Model(p).
		Where("id = ? AND version = ?", p.ID, p.Version-1).
		Select("*").
		Omit(clause.Associations, "id", "created_at").
		Updates(p)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.
			WithDetail("payment_reference", p.Reference)
	}

	for i := range p.Allocations {
		if err := db.Save(&p.Allocations[i]).Error; err != nil {
			return err
		}
	}
	return r.deleteRemovedAllocations(db, p)
}

// SumAllocatedToInvoice sums all allocations against an invoice, each
// converted into the invoice currency at its captured rate. The division
// happens in Go so rounding follows the same DivRound the domain uses.
func (r *GormPaymentRepository) SumAllocatedToInvoice(ctx context.Context, ref invoicing.InvoiceRef) (decimal.Decimal, error) {
	var allocations []payment.PaymentAllocation
	err := dbFrom(ctx, r.db).
		Where("invoice_id = ? AND invoice_kind = ?", ref.InvoiceID, ref.Kind).
		Find(&allocations).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for i := range allocations {
		total = total.Add(allocations[i].AmountInInvoiceCurrency())
	}
	return total, nil
}

func (r *GormPaymentRepository) deleteRemovedAllocations(db *gorm.DB, p *payment.Payment) error {
	keep := make([]uuid.UUID, 0, len(p.Allocations))
	for _, alloc := range p.Allocations {
		keep = append(keep, alloc.ID)
	}

	query := db.Where("payment_id = ?", p.ID)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	return query.Delete(&payment.PaymentAllocation{}).Error
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ payment.PaymentRepository = (*GormPaymentRepository)(nil)
