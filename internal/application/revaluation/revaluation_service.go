package revaluation

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

// RevaluationService books period-end unrealized FX gains and losses on
// open foreign-currency invoices. The run is read-only on the invoices
// themselves; only a single aggregate journal entry is produced per run.
type RevaluationService struct {
	invoices  invoicing.InvoiceRepository
	payments  payment.PaymentRepository
	entries   ledger.JournalEntryRepository
	resolver  *ledger.AccountResolver
	rates     *currency.RateService
	txManager shared.TransactionManager
	logger    *zap.Logger
}

// NewRevaluationService creates a new RevaluationService
func NewRevaluationService(
	invoices invoicing.InvoiceRepository,
	payments payment.PaymentRepository,
	entries ledger.JournalEntryRepository,
	resolver *ledger.AccountResolver,
	rates *currency.RateService,
	txManager shared.TransactionManager,
	log *zap.Logger,
) *RevaluationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RevaluationService{
		invoices:  invoices,
		payments:  payments,
		entries:   entries,
		resolver:  resolver,
		rates:     rates,
		txManager: txManager,
		logger:    log.Named("revaluation"),
	}
}

// RevaluationResponse summarizes one revaluation run
type RevaluationResponse struct {
	AsOf             time.Time       `json:"as_of"`
	InvoicesRevalued int             `json:"invoices_revalued"`
	ARGainLoss       decimal.Decimal `json:"ar_gain_loss"`
	APGainLoss       decimal.Decimal `json:"ap_gain_loss"`
	JournalEntryID   *uuid.UUID      `json:"journal_entry_id,omitempty"`
	EntryNumber      string          `json:"entry_number,omitempty"`
}

// Revalue compares every open foreign-currency invoice's outstanding
// balance at the as-of rate against its posting-rate value and posts the
// aggregate difference as one unrealized FX entry. A missing rate for any
// open invoice aborts the whole run; partial revaluations never post.
func (s *RevaluationService) Revalue(ctx context.Context, asOf time.Time) (resp *RevaluationResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "revaluation", "revalue")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.SetAttributes(span, "as_of", asOf.Format("2006-01-02"))

	open, err := s.invoices.FindOpenPosted(ctx)
	if err != nil {
		return nil, err
	}

	base := s.rates.BaseCurrency()
	arDiff := decimal.Zero
	apDiff := decimal.Zero
	revalued := 0

	for i := range open {
		inv := &open[i]
		if inv.Currency == base || inv.ExchangeRateAtPosting == nil {
			continue
		}

		rate, err := s.rates.Rate(ctx, inv.Currency, base, asOf)
		if err != nil {
			return nil, err
		}

		paid, err := s.payments.SumAllocatedToInvoice(ctx, inv.Ref())
		if err != nil {
			return nil, err
		}
		outstanding := inv.Outstanding(paid)
		if !outstanding.IsPositive() {
			continue
		}

		diff := outstanding.Mul(rate.Sub(*inv.ExchangeRateAtPosting)).Round(valueobject.MoneyPlaces)
		if diff.IsZero() {
			continue
		}

		if inv.Kind == invoicing.InvoiceKindAR {
			arDiff = arDiff.Add(diff)
		} else {
			apDiff = apDiff.Add(diff)
		}
		revalued++
	}

	resp = &RevaluationResponse{
		AsOf:             asOf,
		InvoicesRevalued: revalued,
		ARGainLoss:       arDiff,
		APGainLoss:       apDiff.Neg(), // Positive means gain from the company's view
	}

	lines, err := s.buildRevaluationLines(ctx, arDiff, apDiff)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		s.logger.Info("No open exposure to revalue", zap.Time("as_of", asOf))
		return resp, nil
	}

	entryNumber, err := s.entries.NextEntryNumber(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := ledger.NewJournalEntry(
		entryNumber,
		asOf,
		base,
		fmt.Sprintf("Unrealized FX revaluation as of %s", asOf.Format("2006-01-02")),
		lines,
	)
	if err != nil {
		return nil, err
	}
	if err := entry.Post(); err != nil {
		return nil, err
	}

	err = s.txManager.Transaction(ctx, func(ctx context.Context) error {
		return s.entries.Save(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntryNumber, entry.EntryNumber,
		"invoices_revalued", revalued,
	)
	s.logger.Info("Unrealized FX revaluation posted",
		zap.Int("invoices_revalued", revalued),
		zap.String("ar_gain_loss", resp.ARGainLoss.String()),
		zap.String("ap_gain_loss", resp.APGainLoss.String()),
		zap.String("entry_number", entry.EntryNumber),
	)
	logger.DrainDomainEvents(s.logger, entry)

	resp.JournalEntryID = &entry.ID
	resp.EntryNumber = entry.EntryNumber
	return resp, nil
}

// buildRevaluationLines converts the aggregate AR and AP differences into
// balanced line pairs. A positive AR difference is a gain on receivables;
// a positive AP difference means payables got more expensive, a loss.
func (s *RevaluationService) buildRevaluationLines(ctx context.Context, arDiff, apDiff decimal.Decimal) ([]ledger.LineInput, error) {
	lines := make([]ledger.LineInput, 0, 4)

	if !arDiff.IsZero() {
		arControl, err := s.resolver.Resolve(ctx, ledger.RoleARControl)
		if err != nil {
			return nil, err
		}
		if arDiff.IsPositive() {
			fxGain, err := s.resolver.Resolve(ctx, ledger.RoleFXGain)
			if err != nil {
				return nil, err
			}
			lines = append(lines, ledger.DebitLine(arControl, arDiff))
			lines = append(lines, ledger.CreditLine(fxGain, arDiff))
		} else {
			fxLoss, err := s.resolver.Resolve(ctx, ledger.RoleFXLoss)
			if err != nil {
				return nil, err
			}
			lines = append(lines, ledger.DebitLine(fxLoss, arDiff.Abs()))
			lines = append(lines, ledger.CreditLine(arControl, arDiff.Abs()))
		}
	}

	if !apDiff.IsZero() {
		apControl, err := s.resolver.Resolve(ctx, ledger.RoleAPControl)
		if err != nil {
			return nil, err
		}
		if apDiff.IsPositive() {
			fxLoss, err := s.resolver.Resolve(ctx, ledger.RoleFXLoss)
			if err != nil {
				return nil, err
			}
			lines = append(lines, ledger.DebitLine(fxLoss, apDiff))
			lines = append(lines, ledger.CreditLine(apControl, apDiff))
		} else {
			fxGain, err := s.resolver.Resolve(ctx, ledger.RoleFXGain)
			if err != nil {
				return nil, err
			}
			lines = append(lines, ledger.DebitLine(apControl, apDiff.Abs()))
			lines = append(lines, ledger.CreditLine(fxGain, apDiff.Abs()))
		}
	}

	return lines, nil
}
