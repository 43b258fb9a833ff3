package repositories

import (
	"context"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
)

// LedgerTx is the write scope of a single ledger mutation. Accounts locked through it stay
// locked until the surrounding unit of work ends, and nothing written through it is visible
// to others unless the unit of work commits.
type LedgerTx interface {
	// LockAccount reads an account and holds its row lock for the rest of the unit of work.
	// Returns apperrors.ErrNotFound when the account does not exist.
	LockAccount(ctx context.Context, accountID string) (*domain.Account, error)

	// FindTransactionByIdempotencyKey returns apperrors.ErrNotFound when the key is unused.
	FindTransactionByIdempotencyKey(ctx context.Context, accountID string, key string) (*domain.Transaction, error)

	// FindTransactionByID returns apperrors.ErrNotFound when the transaction does not
	// exist or belongs to another account.
	FindTransactionByID(ctx context.Context, accountID string, transactionID int64) (*domain.Transaction, error)

	// IsRefunded reports whether a refund already references transactionID.
	IsRefunded(ctx context.Context, transactionID int64) (bool, error)

	// UpdateAccountBalance persists Balance, TotalUsed, Version and the update audit fields.
	UpdateAccountBalance(ctx context.Context, account domain.Account) error

	// AppendTransaction inserts txn and fills in TransactionID and CreatedAt.
	AppendTransaction(ctx context.Context, txn *domain.Transaction) error
}

// LedgerUnitOfWork runs ledger mutations atomically.
type LedgerUnitOfWork interface {
	// RunInTx calls fn inside a storage transaction. The transaction commits when fn returns
	// nil and rolls back otherwise; fn's error is returned unchanged.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}
