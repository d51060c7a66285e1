package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/currency"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentAllocationService distributes payments against posted invoices.
// Every allocation mutation recomputes the affected invoice's payment
// status synchronously in the same transaction, so the status axis is
// always consistent with the allocation rows, deletions included.
type PaymentAllocationService struct {
	payments  payment.PaymentRepository
	invoices  invoicing.InvoiceRepository
	entries   ledger.JournalEntryRepository
	resolver  *ledger.AccountResolver
	rates     *currency.RateService
	txManager shared.TransactionManager
	logger    *zap.Logger
}

// NewPaymentAllocationService creates a new PaymentAllocationService
func NewPaymentAllocationService(
	payments payment.PaymentRepository,
	invoices invoicing.InvoiceRepository,
	entries ledger.JournalEntryRepository,
	resolver *ledger.AccountResolver,
	rates *currency.RateService,
	txManager shared.TransactionManager,
	log *zap.Logger,
) *PaymentAllocationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentAllocationService{
		payments:  payments,
		invoices:  invoices,
		entries:   entries,
		resolver:  resolver,
		rates:     rates,
		txManager: txManager,
		logger:    log.Named("allocation"),
	}
}

// AllocateRequest describes a new allocation
type AllocateRequest struct {
	InvoiceKind string          `json:"invoice_kind" binding:"required,oneof=AR AP"`
	InvoiceID   uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Remark      string          `json:"remark"`
}

// AllocationResponse represents an allocation in API responses
type AllocationResponse struct {
	ID                   uuid.UUID       `json:"id"`
	PaymentID            uuid.UUID       `json:"payment_id"`
	PaymentReference     string          `json:"payment_reference"`
	InvoiceKind          string          `json:"invoice_kind"`
	InvoiceID            uuid.UUID       `json:"invoice_id"`
	InvoiceNumber        string          `json:"invoice_number"`
	Amount               decimal.Decimal `json:"amount"`
	PaymentCurrency      string          `json:"payment_currency"`
	InvoiceCurrency      string          `json:"invoice_currency"`
	ExchangeRate         decimal.Decimal `json:"exchange_rate"`
	AllocatedAt          time.Time       `json:"allocated_at"`
	InvoicePaymentStatus string          `json:"invoice_payment_status"`
	FXEntryID            *uuid.UUID      `json:"fx_entry_id,omitempty"`
}

// Allocate creates an allocation from a payment against a posted invoice.
// The amount is in payment currency and is bounded both by the invoice's
// outstanding balance (converted at the captured rate) and by the
// payment's unallocated remainder; the tighter bound is reported on
// rejection. A base-currency difference between the posting-rate value
// and the settlement-rate value of the settled slice books a realized FX
// gain/loss entry in the same transaction.
func (s *PaymentAllocationService) Allocate(ctx context.Context, paymentID uuid.UUID, req AllocateRequest) (resp *AllocationResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "allocate")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, paymentID.String(),
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
		telemetry.SpanAttrInvoiceKind, req.InvoiceKind,
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	pay, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Payment not found")
	}

	ref, err := invoicing.NewInvoiceRef(invoicing.InvoiceKind(req.InvoiceKind), req.InvoiceID)
	if err != nil {
		return nil, err
	}

	invoice, err := s.invoices.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
	}
	if err := s.checkAllocatable(pay, invoice); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}

	rate, err := s.settlementRate(ctx, invoice, pay)
	if err != nil {
		return nil, err
	}

	paid, err := s.payments.SumAllocatedToInvoice(ctx, ref)
	if err != nil {
		return nil, err
	}
	outstanding := invoice.Outstanding(paid)
	maxByInvoice := outstanding.Mul(rate).Round(valueobject.MoneyPlaces)
	maximum := decimal.Min(maxByInvoice, pay.UnallocatedAmount())
	if req.Amount.GreaterThan(maxByInvoice) {
		return nil, shared.NewDomainError(shared.ErrCodeAllocationExceedsLimit,
			fmt.Sprintf("Allocation amount %s exceeds the maximum allowed %s",
				req.Amount.StringFixed(2), maximum.StringFixed(2))).
			WithDetail("payment_reference", pay.Reference).
			WithDetail("invoice_number", invoice.Number).
			WithDetail("requested", req.Amount.String()).
			WithDetail("maximum", maximum.String()).
			WithDetail("bound", "invoice_outstanding")
	}

	alloc, err := pay.Allocate(ref, req.Amount, invoice.Currency, rate, req.Remark)
	if err != nil {
		return nil, err
	}

	newPaid := paid.Add(alloc.AmountInInvoiceCurrency())
	invoice.RefreshPaymentStatus(newPaid)

	fxEntry, err := s.buildRealizedFXEntry(ctx, invoice, alloc)
	if err != nil {
		return nil, err
	}

	err = s.txManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.payments.SaveWithLock(ctx, pay); err != nil {
			return err
		}
		if err := s.invoices.SaveWithLock(ctx, invoice); err != nil {
			return err
		}
		if fxEntry != nil {
			return s.entries.Save(ctx, fxEntry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment allocated",
		zap.String("payment_reference", pay.Reference),
		zap.String("invoice_number", invoice.Number),
		zap.String("amount", req.Amount.String()),
		zap.String("invoice_payment_status", string(invoice.PaymentStatus)),
	)
	if fxEntry != nil {
		telemetry.SetAttributes(span, telemetry.SpanAttrEntryNumber, fxEntry.EntryNumber)
		logger.DrainDomainEvents(s.logger, fxEntry)
	}
	logger.DrainDomainEvents(s.logger, pay, invoice)

	resp = toAllocationResponse(pay, invoice, alloc)
	if fxEntry != nil {
		resp.FXEntryID = &fxEntry.ID
	}
	return resp, nil
}

// UpdateAllocation changes the amount of an existing allocation, keeping
// its captured rate, and re-runs the bound checks and the payment-status
// recompute.
func (s *PaymentAllocationService) UpdateAllocation(ctx context.Context, allocationID uuid.UUID, amount decimal.Decimal) (resp *AllocationResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "update_allocation")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span,
		"allocation_id", allocationID.String(),
		telemetry.SpanAttrAmount, amount.String(),
	)

	pay, err := s.payments.FindByAllocationID(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Allocation not found")
	}

	current := pay.FindAllocation(allocationID)
	if current == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Allocation not found")
	}
	ref := current.InvoiceRef()

	invoice, err := s.invoices.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}

	paid, err := s.payments.SumAllocatedToInvoice(ctx, ref)
	if err != nil {
		return nil, err
	}
	paidByOthers := paid.Sub(current.AmountInInvoiceCurrency())
	outstanding := invoice.Outstanding(paidByOthers)
	maxByInvoice := outstanding.Mul(current.ExchangeRateAtAllocation).Round(valueobject.MoneyPlaces)
	maximum := decimal.Min(maxByInvoice, pay.UnallocatedAmount().Add(current.Amount))
	if amount.GreaterThan(maxByInvoice) {
		return nil, shared.NewDomainError(shared.ErrCodeAllocationExceedsLimit,
			fmt.Sprintf("Allocation amount %s exceeds the maximum allowed %s",
				amount.StringFixed(2), maximum.StringFixed(2))).
			WithDetail("payment_reference", pay.Reference).
			WithDetail("invoice_number", invoice.Number).
			WithDetail("requested", amount.String()).
			WithDetail("maximum", maximum.String()).
			WithDetail("bound", "invoice_outstanding")
	}

	updated, err := pay.UpdateAllocation(allocationID, amount)
	if err != nil {
		return nil, err
	}

	newPaid := paidByOthers.Add(updated.AmountInInvoiceCurrency())
	invoice.RefreshPaymentStatus(newPaid)

	err = s.txManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.payments.SaveWithLock(ctx, pay); err != nil {
			return err
		}
		return s.invoices.SaveWithLock(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Allocation amount updated",
		zap.String("payment_reference", pay.Reference),
		zap.String("invoice_number", invoice.Number),
		zap.String("amount", amount.String()),
		zap.String("invoice_payment_status", string(invoice.PaymentStatus)),
	)
	logger.DrainDomainEvents(s.logger, pay, invoice)

	return toAllocationResponse(pay, invoice, updated), nil
}

// RemoveAllocation deletes an allocation and recomputes the invoice's
// payment status, which can legitimately move backward from Paid.
func (s *PaymentAllocationService) RemoveAllocation(ctx context.Context, allocationID uuid.UUID) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "remove_allocation")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, "allocation_id", allocationID.String())

	pay, err := s.payments.FindByAllocationID(ctx, allocationID)
	if err != nil {
		return err
	}
	if pay == nil {
		return shared.NewDomainError("NOT_FOUND", "Allocation not found")
	}

	removed, err := pay.RemoveAllocation(allocationID)
	if err != nil {
		return err
	}

	invoice, err := s.invoices.FindByRef(ctx, removed.InvoiceRef())
	if err != nil {
		return err
	}
	if invoice == nil {
		return shared.NewDomainError("NOT_FOUND", "Invoice not found")
	}

	paid, err := s.payments.SumAllocatedToInvoice(ctx, removed.InvoiceRef())
	if err != nil {
		return err
	}
	invoice.RefreshPaymentStatus(paid.Sub(removed.AmountInInvoiceCurrency()))

	err = s.txManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.payments.SaveWithLock(ctx, pay); err != nil {
			return err
		}
		return s.invoices.SaveWithLock(ctx, invoice)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Allocation removed",
		zap.String("payment_reference", pay.Reference),
		zap.String("invoice_number", invoice.Number),
		zap.String("invoice_payment_status", string(invoice.PaymentStatus)),
	)
	logger.DrainDomainEvents(s.logger, pay, invoice)
	return nil
}

// checkAllocatable verifies the invoice side of the allocation
// preconditions: posted to the ledger, not cancelled, and of the kind the
// payment direction settles.
func (s *PaymentAllocationService) checkAllocatable(pay *payment.Payment, invoice *invoicing.Invoice) error {
	if invoice.Cancelled {
		return shared.NewDomainError(shared.ErrCodeInvalidPostingState,
			fmt.Sprintf("Invoice %s is cancelled", invoice.Number)).
			WithDetail("invoice_number", invoice.Number).
			WithDetail("precondition", "not_cancelled")
	}
	if !invoice.IsPosted() {
		return shared.NewDomainError(shared.ErrCodeInvalidPostingState,
			fmt.Sprintf("Invoice %s must be posted before it can receive allocations", invoice.Number)).
			WithDetail("invoice_number", invoice.Number).
			WithDetail("precondition", "posting_status")
	}
	if invoice.Kind != pay.Kind.InvoiceKindFor() {
		return shared.NewDomainError("INVALID_INVOICE_KIND",
			fmt.Sprintf("A %s payment cannot settle a %s invoice", pay.Kind, invoice.Kind)).
			WithDetail("payment_kind", string(pay.Kind)).
			WithDetail("invoice_kind", invoice.Kind.String())
	}
	return nil
}

// settlementRate captures the invoice→payment conversion rate at the
// payment date; identical currencies settle at 1. A missing rate aborts
// the allocation.
func (s *PaymentAllocationService) settlementRate(ctx context.Context, invoice *invoicing.Invoice, pay *payment.Payment) (decimal.Decimal, error) {
	if invoice.Currency == pay.Currency {
		return decimal.NewFromInt(1), nil
	}
	return s.rates.Rate(ctx, invoice.Currency, pay.Currency, pay.PaymentDate)
}

// buildRealizedFXEntry books the base-currency difference between the
// settled slice valued at the invoice's posting rate and at the rate on
// the payment date. AR gains credit fx_gain against the AR control; AP
// mirrors with fx_loss when the payable got more expensive.
func (s *PaymentAllocationService) buildRealizedFXEntry(
	ctx context.Context,
	invoice *invoicing.Invoice,
	alloc *payment.PaymentAllocation,
) (*ledger.JournalEntry, error) {
	base := s.rates.BaseCurrency()
	if invoice.Currency == base || invoice.ExchangeRateAtPosting == nil {
		return nil, nil
	}

	settleRate, err := s.rates.Rate(ctx, invoice.Currency, base, alloc.AllocatedAt)
	if err != nil {
		return nil, err
	}

	settled := alloc.AmountInInvoiceCurrency()
	diff := settled.Mul(settleRate.Sub(*invoice.ExchangeRateAtPosting)).Round(valueobject.MoneyPlaces)
	if diff.IsZero() {
		return nil, nil
	}

	controlRole := ledger.RoleARControl
	if invoice.Kind == invoicing.InvoiceKindAP {
		controlRole = ledger.RoleAPControl
	}
	control, err := s.resolver.Resolve(ctx, controlRole)
	if err != nil {
		return nil, err
	}

	var lines []ledger.LineInput
	gain := diff.IsPositive() == (invoice.Kind == invoicing.InvoiceKindAR)
	magnitude := diff.Abs()
	if gain {
		fxGain, err := s.resolver.Resolve(ctx, ledger.RoleFXGain)
		if err != nil {
			return nil, err
		}
		lines = []ledger.LineInput{
			ledger.DebitLine(control, magnitude),
			ledger.CreditLine(fxGain, magnitude),
		}
	} else {
		fxLoss, err := s.resolver.Resolve(ctx, ledger.RoleFXLoss)
		if err != nil {
			return nil, err
		}
		lines = []ledger.LineInput{
			ledger.DebitLine(fxLoss, magnitude),
			ledger.CreditLine(control, magnitude),
		}
	}

	entryNumber, err := s.entries.NextEntryNumber(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := ledger.NewJournalEntry(
		entryNumber,
		alloc.AllocatedAt,
		base,
		fmt.Sprintf("Realized FX on settlement of invoice %s", invoice.Number),
		lines,
	)
	if err != nil {
		return nil, err
	}
	if err := entry.Post(); err != nil {
		return nil, err
	}
	return entry, nil
}

func toAllocationResponse(pay *payment.Payment, invoice *invoicing.Invoice, alloc *payment.PaymentAllocation) *AllocationResponse {
	return &AllocationResponse{
		ID:                   alloc.ID,
		PaymentID:            pay.ID,
		PaymentReference:     pay.Reference,
		InvoiceKind:          alloc.InvoiceKind.String(),
		InvoiceID:            alloc.InvoiceID,
		InvoiceNumber:        invoice.Number,
		Amount:               alloc.Amount,
		PaymentCurrency:      pay.Currency.String(),
		InvoiceCurrency:      alloc.InvoiceCurrency.String(),
		ExchangeRate:         alloc.ExchangeRateAtAllocation,
		AllocatedAt:          alloc.AllocatedAt,
		InvoicePaymentStatus: string(invoice.PaymentStatus),
	}
}
