package repositories

import (
	"context"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
)

// TransactionReader defines read operations over the append-only transaction log.
// There is no writer outside LedgerTx: records are only created together with the
// balance change they document.
type TransactionReader interface {
	// ListTransactions returns up to limit transactions for an account, newest first.
	// When beforeID is set only transactions with a smaller ID are returned.
	ListTransactions(ctx context.Context, accountID string, limit int, beforeID *int64) ([]domain.Transaction, error)

	// ListAllTransactions returns every transaction of an account in commit order.
	ListAllTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error)
}
