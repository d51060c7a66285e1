package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/currency"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GLPostingService posts approved invoices to the general ledger and
// reverses prior postings. Posting is a one-shot transition guarded three
// ways: the invoice posting-status state machine, optimistic locking on
// the invoice row, and an idempotency-key shield for fast retry rejection.
type GLPostingService struct {
	invoices    invoicing.InvoiceRepository
	entries     ledger.JournalEntryRepository
	resolver    *ledger.AccountResolver
	rates       *currency.RateService
	txManager   shared.TransactionManager
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	logger      *zap.Logger
}

// NewGLPostingService creates a new GLPostingService
func NewGLPostingService(
	invoices invoicing.InvoiceRepository,
	entries ledger.JournalEntryRepository,
	resolver *ledger.AccountResolver,
	rates *currency.RateService,
	txManager shared.TransactionManager,
	idempotency shared.IdempotencyStore,
	idemConfig shared.IdempotencyConfig,
	log *zap.Logger,
) *GLPostingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GLPostingService{
		invoices:    invoices,
		entries:     entries,
		resolver:    resolver,
		rates:       rates,
		txManager:   txManager,
		idempotency: idempotency,
		idemConfig:  idemConfig,
		logger:      log.Named("posting"),
	}
}

// PostingResponse describes the result of posting an invoice
type PostingResponse struct {
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	JournalEntryID    uuid.UUID       `json:"journal_entry_id"`
	EntryNumber       string          `json:"entry_number"`
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	BaseCurrency      string          `json:"base_currency"`
	BaseSubtotal      decimal.Decimal `json:"base_subtotal"`
	BaseTaxAmount     decimal.Decimal `json:"base_tax_amount"`
	BaseCurrencyTotal decimal.Decimal `json:"base_currency_total"`
	PostedAt          time.Time       `json:"posted_at"`
}

// Post posts an approved, unposted invoice to the ledger. The invoice
// totals are recomputed, converted into the base currency at today's rate,
// and booked as one balanced journal entry at header granularity. The
// entry, the invoice snapshot and the link between them commit in a single
// transaction; a concurrent double-post loses on the version check.
func (s *GLPostingService) Post(ctx context.Context, invoiceID uuid.UUID) (resp *PostingResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "post_invoice")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
	}

	if err := invoice.CheckPostable(); err != nil {
		return nil, err
	}

	if s.idemConfig.Enabled && s.idempotency != nil {
		key := postingKey(invoice.ID)
		first, err := s.idempotency.MarkProcessed(ctx, key, s.idemConfig.TTL)
		if err == nil && !first {
			// A previous attempt holds the key. The state machine above
			// already cleared this invoice as unposted, so that attempt
			// failed before commit; proceed and let the version check
			// arbitrate a live race.
			if posted, perr := s.alreadyPostedError(ctx, invoice.ID); perr == nil && posted != nil {
				return nil, posted
			}
		}
	}

	invoice.RecomputeTotals()

	base := s.rates.BaseCurrency()
	today := time.Now()
	rate, err := s.rates.Rate(ctx, invoice.Currency, base, today)
	if err != nil {
		return nil, err
	}

	baseSubtotal := invoice.Subtotal.Mul(rate).Round(valueobject.MoneyPlaces)
	baseTax := invoice.TaxAmount.Mul(rate).Round(valueobject.MoneyPlaces)
	// Derive the total from the rounded parts so the journal entry is
	// balanced by construction.
	baseTotal := baseSubtotal.Add(baseTax)

	lines, err := s.buildPostingLines(ctx, invoice, rate, baseSubtotal, baseTax, baseTotal)
	if err != nil {
		return nil, err
	}

	entryNumber, err := s.entries.NextEntryNumber(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := ledger.NewJournalEntry(
		entryNumber,
		today,
		base,
		fmt.Sprintf("Posting of invoice %s", invoice.Number),
		lines,
	)
	if err != nil {
		return nil, err
	}
	if err := entry.Post(); err != nil {
		return nil, err
	}

	if err := invoice.MarkPosted(entry.ID, rate, baseSubtotal, baseTax, baseTotal); err != nil {
		return nil, err
	}

	err = s.txManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.entries.Save(ctx, entry); err != nil {
			return err
		}
		return s.invoices.SaveWithLock(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNumber, invoice.Number,
		telemetry.SpanAttrEntryNumber, entry.EntryNumber,
		telemetry.SpanAttrExchangeRate, rate.String(),
	)
	s.logger.Info("Invoice posted to the ledger",
		zap.String("invoice_number", invoice.Number),
		zap.String("entry_number", entry.EntryNumber),
		zap.String("exchange_rate", rate.String()),
	)
	logger.DrainDomainEvents(s.logger, invoice, entry)

	return &PostingResponse{
		InvoiceID:         invoice.ID,
		InvoiceNumber:     invoice.Number,
		JournalEntryID:    entry.ID,
		EntryNumber:       entry.EntryNumber,
		ExchangeRate:      rate,
		BaseCurrency:      base.String(),
		BaseSubtotal:      baseSubtotal,
		BaseTaxAmount:     baseTax,
		BaseCurrencyTotal: baseTotal,
		PostedAt:          *entry.PostedAt,
	}, nil
}

// ReversePosting reverses a posted invoice's journal entry with a mirror
// entry dated now and moves the invoice posting status to Reversed. The
// original entry and the invoice posting snapshot are retained for audit.
func (s *GLPostingService) ReversePosting(ctx context.Context, invoiceID uuid.UUID) (resp *PostingResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "reverse_posting")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
	}
	if invoice.JournalEntryID == nil || !invoice.IsPosted() {
		return nil, shared.NewDomainError(shared.ErrCodeInvalidPostingState,
			fmt.Sprintf("Invoice %s is not posted", invoice.Number)).
			WithDetail("invoice_number", invoice.Number).
			WithDetail("posting_status", string(invoice.PostingStatus))
	}

	entry, err := s.entries.FindByID(ctx, *invoice.JournalEntryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Journal entry for invoice not found")
	}

	entryNumber, err := s.entries.NextEntryNumber(ctx)
	if err != nil {
		return nil, err
	}

	reversal, err := entry.BuildReversal(entryNumber)
	if err != nil {
		return nil, err
	}

	if err := invoice.MarkPostingReversed(); err != nil {
		return nil, err
	}

	err = s.txManager.Transaction(ctx, func(ctx context.Context) error {
		if err := s.entries.Save(ctx, reversal); err != nil {
			return err
		}
		if err := s.entries.SaveWithLock(ctx, entry); err != nil {
			return err
		}
		return s.invoices.SaveWithLock(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNumber, invoice.Number,
		telemetry.SpanAttrEntryNumber, reversal.EntryNumber,
	)
	s.logger.Info("Invoice posting reversed",
		zap.String("invoice_number", invoice.Number),
		zap.String("reversal_entry_number", reversal.EntryNumber),
	)
	logger.DrainDomainEvents(s.logger, invoice, entry, reversal)

	return &PostingResponse{
		InvoiceID:         invoice.ID,
		InvoiceNumber:     invoice.Number,
		JournalEntryID:    reversal.ID,
		EntryNumber:       reversal.EntryNumber,
		ExchangeRate:      derefRate(invoice.ExchangeRateAtPosting),
		BaseCurrency:      reversal.Currency.String(),
		BaseSubtotal:      invoice.BaseSubtotal,
		BaseTaxAmount:     invoice.BaseTaxAmount,
		BaseCurrencyTotal: invoice.BaseCurrencyTotal,
		PostedAt:          *reversal.PostedAt,
	}, nil
}

// buildPostingLines constructs the mirrored AR/AP line set in base
// currency. Zero tax produces no VAT line; a reverse-charge AP invoice
// books the self-assessed tax to both VAT input and VAT output so the net
// VAT position is unchanged while both sides stay visible.
func (s *GLPostingService) buildPostingLines(
	ctx context.Context,
	invoice *invoicing.Invoice,
	rate, baseSubtotal, baseTax, baseTotal decimal.Decimal,
) ([]ledger.LineInput, error) {
	lines := make([]ledger.LineInput, 0, 5)

	switch invoice.Kind {
	case invoicing.InvoiceKindAR:
		arControl, err := s.resolver.Resolve(ctx, ledger.RoleARControl)
		if err != nil {
			return nil, err
		}
		revenue, err := s.resolver.Resolve(ctx, ledger.RoleRevenue)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ledger.DebitLine(arControl, baseTotal))
		lines = append(lines, ledger.CreditLine(revenue, baseSubtotal))
		if baseTax.IsPositive() {
			vatOutput, err := s.resolver.Resolve(ctx, ledger.RoleVATOutput)
			if err != nil {
				return nil, err
			}
			lines = append(lines, ledger.CreditLine(vatOutput, baseTax))
		}

	case invoicing.InvoiceKindAP:
		apControl, err := s.resolver.Resolve(ctx, ledger.RoleAPControl)
		if err != nil {
			return nil, err
		}
		expense, err := s.resolver.Resolve(ctx, ledger.RoleExpense)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ledger.DebitLine(expense, baseSubtotal))
		if baseTax.IsPositive() {
			vatInput, err := s.resolver.Resolve(ctx, ledger.RoleVATInput)
			if err != nil {
				return nil, err
			}
			lines = append(lines, ledger.DebitLine(vatInput, baseTax))
		}
		lines = append(lines, ledger.CreditLine(apControl, baseTotal))

		if baseSelfAssessed := invoice.SelfAssessedTax.Mul(rate).Round(valueobject.MoneyPlaces); baseSelfAssessed.IsPositive() {
			vatInput, err := s.resolver.Resolve(ctx, ledger.RoleVATInput)
			if err != nil {
				return nil, err
			}
			vatOutput, err := s.resolver.Resolve(ctx, ledger.RoleVATOutput)
			if err != nil {
				return nil, err
			}
			lines = append(lines, ledger.DebitLine(vatInput, baseSelfAssessed))
			lines = append(lines, ledger.CreditLine(vatOutput, baseSelfAssessed))
		}

	default:
		return nil, shared.NewDomainError("INVALID_INVOICE_KIND",
			fmt.Sprintf("Cannot post invoice of kind %q", invoice.Kind))
	}

	return lines, nil
}

// alreadyPostedError re-reads the invoice and returns an ALREADY_POSTED
// error carrying the existing entry id when the posting has committed.
func (s *GLPostingService) alreadyPostedError(ctx context.Context, invoiceID uuid.UUID) (*shared.DomainError, error) {
	current, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.IsPosted() {
		return nil, nil
	}
	posted := shared.NewDomainError(shared.ErrCodeAlreadyPosted,
		fmt.Sprintf("Invoice %s is already posted", current.Number)).
		WithDetail("invoice_number", current.Number)
	if current.JournalEntryID != nil {
		posted = posted.WithDetail("journal_entry_id", current.JournalEntryID.String())
	}
	return posted, nil
}

func postingKey(invoiceID uuid.UUID) string {
	return fmt.Sprintf("posting:invoice:%s", invoiceID)
}

func derefRate(rate *decimal.Decimal) decimal.Decimal {
	if rate == nil {
		return decimal.Zero
	}
	return *rate
}
