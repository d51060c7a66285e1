package payment

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records payments. Allocation against invoices is the
// allocation service's job; a freshly recorded payment is fully
// unallocated.
type PaymentService struct {
	payments payment.PaymentRepository
	logger   *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(payments payment.PaymentRepository, log *zap.Logger) *PaymentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentService{payments: payments, logger: log.Named("payment")}
}

// CreatePaymentRequest describes a new payment
type CreatePaymentRequest struct {
	Kind        string          `json:"kind" binding:"required,oneof=RECEIVED MADE"`
	PartyID     uuid.UUID       `json:"party_id" binding:"required"`
	PartyName   string          `json:"party_name" binding:"required"`
	Reference   string          `json:"reference" binding:"required"`
	PaymentDate time.Time       `json:"payment_date" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Currency    string          `json:"currency" binding:"required,len=3"`
	BankAccount string          `json:"bank_account"`
}

// PaymentAllocationView represents an allocation within a payment response
type PaymentAllocationView struct {
	ID              uuid.UUID       `json:"id"`
	InvoiceKind     string          `json:"invoice_kind"`
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	Amount          decimal.Decimal `json:"amount"`
	InvoiceCurrency string          `json:"invoice_currency"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	AllocatedAt     time.Time       `json:"allocated_at"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID          uuid.UUID               `json:"id"`
	Kind        string                  `json:"kind"`
	PartyID     uuid.UUID               `json:"party_id"`
	PartyName   string                  `json:"party_name"`
	Reference   string                  `json:"reference"`
	PaymentDate time.Time               `json:"payment_date"`
	TotalAmount decimal.Decimal         `json:"total_amount"`
	Currency    string                  `json:"currency"`
	BankAccount string                  `json:"bank_account,omitempty"`
	Allocated   decimal.Decimal         `json:"allocated"`
	Unallocated decimal.Decimal         `json:"unallocated"`
	Allocations []PaymentAllocationView `json:"allocations"`
	Version     int                     `json:"version"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// CreatePayment records a new payment with a unique reference
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (resp *PaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create_payment")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentReference, req.Reference,
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrCurrency, req.Currency,
	)

	existing, err := s.payments.FindByReference(ctx, req.Reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("DUPLICATE_REFERENCE",
			"A payment with this reference already exists").
			WithDetail("reference", req.Reference)
	}

	amount, err := valueobject.NewMoney(req.Amount, valueobject.CurrencyCode(req.Currency))
	if err != nil {
		return nil, err
	}

	pay, err := payment.NewPayment(
		payment.PaymentKind(req.Kind),
		req.PartyID,
		req.PartyName,
		req.Reference,
		req.PaymentDate,
		amount,
		req.BankAccount,
	)
	if err != nil {
		return nil, err
	}

	if err := s.payments.Save(ctx, pay); err != nil {
		return nil, err
	}

	s.logger.Info("Payment recorded",
		zap.String("reference", pay.Reference),
		zap.String("kind", string(pay.Kind)),
		zap.String("amount", pay.TotalAmount.String()),
		zap.String("currency", pay.Currency.String()),
	)
	logger.DrainDomainEvents(s.logger, pay)

	return toPaymentResponse(pay), nil
}

// GetPayment returns one payment with its allocations
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (resp *PaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "get_payment")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, id.String())

	pay, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Payment not found")
	}
	return toPaymentResponse(pay), nil
}

func toPaymentResponse(p *payment.Payment) *PaymentResponse {
	allocations := make([]PaymentAllocationView, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		allocations = append(allocations, PaymentAllocationView{
			ID:              a.ID,
			InvoiceKind:     a.InvoiceKind.String(),
			InvoiceID:       a.InvoiceID,
			Amount:          a.Amount,
			InvoiceCurrency: a.InvoiceCurrency.String(),
			ExchangeRate:    a.ExchangeRateAtAllocation,
			AllocatedAt:     a.AllocatedAt,
		})
	}

	return &PaymentResponse{
		ID:          p.ID,
		Kind:        string(p.Kind),
		PartyID:     p.PartyID,
		PartyName:   p.PartyName,
		Reference:   p.Reference,
		PaymentDate: p.PaymentDate,
		TotalAmount: p.TotalAmount,
		Currency:    p.Currency.String(),
		BankAccount: p.BankAccount,
		Allocated:   p.AllocatedTotal(),
		Unallocated: p.UnallocatedAmount(),
		Allocations: allocations,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
