package logger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// DrainDomainEvents logs the events an aggregate raised during an
// operation and clears them. The services call it after a successful
// commit; without an outbox the debug log is the only consumer, and
// draining keeps request-scoped aggregates from accumulating events
// across retries.
func DrainDomainEvents(log *zap.Logger, aggregates ...shared.AggregateRoot) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		for _, event := range agg.GetDomainEvents() {
			log.Debug("Domain event",
				zap.String("event_type", event.EventType()),
				zap.String("aggregate_type", event.AggregateType()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Time("occurred_at", event.OccurredAt()),
			)
		}
		agg.ClearDomainEvents()
	}
}
