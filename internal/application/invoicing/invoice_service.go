package invoicing

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService provides application-level invoice document operations:
// creation, line editing, and the approval workflow. Posting lives in the
// posting service; this service never touches the ledger.
type InvoiceService struct {
	invoices invoicing.InvoiceRepository
	logger   *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(invoices invoicing.InvoiceRepository, log *zap.Logger) *InvoiceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &InvoiceService{invoices: invoices, logger: log.Named("invoice")}
}

// InvoiceLineRequest describes one invoice line
type InvoiceLineRequest struct {
	Description    string          `json:"description" binding:"required"`
	Quantity       decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice      decimal.Decimal `json:"unit_price" binding:"required"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	TaxCategory    string          `json:"tax_category" binding:"required,oneof=STANDARD ZERO EXEMPT REVERSE_CHARGE"`
}

// CreateInvoiceRequest describes a new invoice with its initial lines
type CreateInvoiceRequest struct {
	Kind      string               `json:"kind" binding:"required,oneof=AR AP"`
	PartyID   uuid.UUID            `json:"party_id" binding:"required"`
	PartyName string               `json:"party_name" binding:"required"`
	Number    string               `json:"number" binding:"required"`
	IssueDate time.Time            `json:"issue_date" binding:"required"`
	DueDate   *time.Time           `json:"due_date"`
	Currency  string               `json:"currency" binding:"required,len=3"`
	Country   string               `json:"country"`
	Lines     []InvoiceLineRequest `json:"lines"`
}

// InvoiceLineResponse represents an invoice line in API responses
type InvoiceLineResponse struct {
	ID             uuid.UUID       `json:"id"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	TaxCategory    string          `json:"tax_category"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	SelfAssessed   bool            `json:"self_assessed"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                    uuid.UUID             `json:"id"`
	Kind                  string                `json:"kind"`
	PartyID               uuid.UUID             `json:"party_id"`
	PartyName             string                `json:"party_name"`
	Number                string                `json:"number"`
	IssueDate             time.Time             `json:"issue_date"`
	DueDate               *time.Time            `json:"due_date,omitempty"`
	Currency              string                `json:"currency"`
	Country               string                `json:"country,omitempty"`
	Lines                 []InvoiceLineResponse `json:"lines"`
	ApprovalStatus        string                `json:"approval_status"`
	PostingStatus         string                `json:"posting_status"`
	PaymentStatus         string                `json:"payment_status"`
	Cancelled             bool                  `json:"cancelled"`
	Subtotal              decimal.Decimal       `json:"subtotal"`
	TaxAmount             decimal.Decimal       `json:"tax_amount"`
	Total                 decimal.Decimal       `json:"total"`
	SelfAssessedTax       decimal.Decimal       `json:"self_assessed_tax"`
	ExchangeRateAtPosting *decimal.Decimal      `json:"exchange_rate_at_posting,omitempty"`
	BaseCurrencyTotal     decimal.Decimal       `json:"base_currency_total"`
	JournalEntryID        *uuid.UUID            `json:"journal_entry_id,omitempty"`
	PostedAt              *time.Time            `json:"posted_at,omitempty"`
	PaidAt                *time.Time            `json:"paid_at,omitempty"`
	Version               int                   `json:"version"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// CreateInvoice creates a draft invoice with its initial lines
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create_invoice")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNumber, req.Number,
		telemetry.SpanAttrInvoiceKind, req.Kind,
		telemetry.SpanAttrCurrency, req.Currency,
	)
	kind := invoicing.InvoiceKind(req.Kind)

	duplicate, err := s.invoices.FindByNumber(ctx, req.Number)
	if err != nil {
		return nil, err
	}
	if duplicate != nil && duplicate.Kind == kind {
		return nil, shared.NewDomainError("DUPLICATE_INVOICE_NUMBER",
			"An invoice with this number already exists").
			WithDetail("number", req.Number)
	}

	invoice, err := invoicing.NewInvoice(
		kind,
		req.PartyID,
		req.PartyName,
		req.Number,
		req.IssueDate,
		req.DueDate,
		valueobject.CurrencyCode(req.Currency),
		req.Country,
	)
	if err != nil {
		return nil, err
	}

	for _, line := range req.Lines {
		if _, err := invoice.AddLine(
			line.Description,
			line.Quantity,
			line.UnitPrice,
			line.TaxRatePercent,
			invoicing.TaxCategory(line.TaxCategory),
		); err != nil {
			return nil, err
		}
	}

	if err := s.invoices.Save(ctx, invoice); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice created",
		zap.String("invoice_number", invoice.Number),
		zap.String("kind", invoice.Kind.String()),
		zap.String("currency", invoice.Currency.String()),
	)
	logger.DrainDomainEvents(s.logger, invoice)

	return toInvoiceResponse(invoice), nil
}

// GetInvoice returns one invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "get_invoice")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, id.String())

	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// ListInvoices returns one page of invoices matching the filter
func (s *InvoiceService) ListInvoices(ctx context.Context, filter invoicing.InvoiceFilter) (page *shared.Paginated[InvoiceResponse], err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "list_invoices")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if filter.Page < 1 || filter.PageSize < 1 {
		defaults := shared.DefaultFilter()
		if filter.Page < 1 {
			filter.Page = defaults.Page
		}
		if filter.PageSize < 1 {
			filter.PageSize = defaults.PageSize
		}
	}

	invoices, total, err := s.invoices.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		responses = append(responses, *toInvoiceResponse(&invoices[i]))
	}

	result := shared.NewPaginated(responses, total, filter.Page, filter.PageSize)
	return &result, nil
}

// AddLine appends a line to an unposted invoice
func (s *InvoiceService) AddLine(ctx context.Context, invoiceID uuid.UUID, req InvoiceLineRequest) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "add_line")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if _, err := invoice.AddLine(
		req.Description,
		req.Quantity,
		req.UnitPrice,
		req.TaxRatePercent,
		invoicing.TaxCategory(req.TaxCategory),
	); err != nil {
		return nil, err
	}

	if err := s.invoices.SaveWithLock(ctx, invoice); err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// UpdateLine replaces a line's inputs on an unposted invoice
func (s *InvoiceService) UpdateLine(ctx context.Context, invoiceID, lineID uuid.UUID, req InvoiceLineRequest) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "update_line")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := invoice.UpdateLine(
		lineID,
		req.Description,
		req.Quantity,
		req.UnitPrice,
		req.TaxRatePercent,
		invoicing.TaxCategory(req.TaxCategory),
	); err != nil {
		return nil, err
	}

	if err := s.invoices.SaveWithLock(ctx, invoice); err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// RemoveLine deletes a line from an unposted invoice
func (s *InvoiceService) RemoveLine(ctx context.Context, invoiceID, lineID uuid.UUID) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "remove_line")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := invoice.RemoveLine(lineID); err != nil {
		return nil, err
	}

	if err := s.invoices.SaveWithLock(ctx, invoice); err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// SubmitForApproval moves a draft invoice into the approval queue
func (s *InvoiceService) SubmitForApproval(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	return s.workflow(ctx, "submit_for_approval", invoiceID, func(inv *invoicing.Invoice) error {
		return inv.SubmitForApproval()
	})
}

// Approve marks a pending invoice approved, making it postable
func (s *InvoiceService) Approve(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	return s.workflow(ctx, "approve", invoiceID, func(inv *invoicing.Invoice) error {
		return inv.Approve()
	})
}

// Reject sends a pending invoice back to its author
func (s *InvoiceService) Reject(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	return s.workflow(ctx, "reject", invoiceID, func(inv *invoicing.Invoice) error {
		return inv.Reject()
	})
}

// Cancel flags an unposted invoice cancelled
func (s *InvoiceService) Cancel(ctx context.Context, invoiceID uuid.UUID, reason string) (*InvoiceResponse, error) {
	return s.workflow(ctx, "cancel", invoiceID, func(inv *invoicing.Invoice) error {
		return inv.Cancel(reason)
	})
}

func (s *InvoiceService) workflow(ctx context.Context, operation string, invoiceID uuid.UUID, apply func(*invoicing.Invoice) error) (resp *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", operation)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := apply(invoice); err != nil {
		return nil, err
	}
	if err := s.invoices.SaveWithLock(ctx, invoice); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice workflow transition",
		zap.String("operation", operation),
		zap.String("invoice_number", invoice.Number),
		zap.String("approval_status", string(invoice.ApprovalStatus)),
	)
	logger.DrainDomainEvents(s.logger, invoice)

	return toInvoiceResponse(invoice), nil
}

func (s *InvoiceService) findInvoice(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
	}
	return invoice, nil
}

func toInvoiceResponse(inv *invoicing.Invoice) *InvoiceResponse {
	lines := make([]InvoiceLineResponse, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, InvoiceLineResponse{
			ID:             l.ID,
			Description:    l.Description,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			TaxRatePercent: l.TaxRatePercent,
			TaxCategory:    string(l.TaxCategory),
			NetAmount:      l.NetAmount,
			TaxAmount:      l.TaxAmount,
			SelfAssessed:   l.SelfAssessed,
		})
	}

	return &InvoiceResponse{
		ID:                    inv.ID,
		Kind:                  inv.Kind.String(),
		PartyID:               inv.PartyID,
		PartyName:             inv.PartyName,
		Number:                inv.Number,
		IssueDate:             inv.IssueDate,
		DueDate:               inv.DueDate,
		Currency:              inv.Currency.String(),
		Country:               inv.Country,
		Lines:                 lines,
		ApprovalStatus:        string(inv.ApprovalStatus),
		PostingStatus:         string(inv.PostingStatus),
		PaymentStatus:         string(inv.PaymentStatus),
		Cancelled:             inv.Cancelled,
		Subtotal:              inv.Subtotal,
		TaxAmount:             inv.TaxAmount,
		Total:                 inv.Total,
		SelfAssessedTax:       inv.SelfAssessedTax,
		ExchangeRateAtPosting: inv.ExchangeRateAtPosting,
		BaseCurrencyTotal:     inv.BaseCurrencyTotal,
		JournalEntryID:        inv.JournalEntryID,
		PostedAt:              inv.PostedAt,
		PaidAt:                inv.PaidAt,
		Version:               inv.Version,
		CreatedAt:             inv.CreatedAt,
		UpdatedAt:             inv.UpdatedAt,
	}
}
