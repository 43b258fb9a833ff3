package services

import (
	"context"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
)

// LedgerEventPublisher announces committed transactions to other systems.
// Publishing happens after commit and never affects the ledger result.
type LedgerEventPublisher interface {
	PublishTransaction(ctx context.Context, txn domain.Transaction) error
	Close() error
}

// LedgerMetrics records ledger activity.
type LedgerMetrics interface {
	// ObserveOperation records one ledger call with its outcome label.
	ObserveOperation(operation string, outcome string, elapsed time.Duration)
	// IncRetry counts a retried unit of work.
	IncRetry(operation string)
	// AddCredits counts credits moved by a committed transaction.
	AddCredits(kind domain.OperationKind, credits float64)
}
