package shared

import "context"

// TransactionManager runs a function atomically. Implementations carry
// the transaction in the context so repositories used inside fn join it
// transparently; a rollback is triggered by any error return.
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTransactionManager runs the function without transactional
// guarantees. Used by tests with in-memory repositories.
type NopTransactionManager struct{}

// Transaction executes fn directly
func (NopTransactionManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
