package pgsql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/credit_ledger_app/internal/apperrors"
	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	"github.com/SscSPs/credit_ledger_app/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxLedgerUnitOfWork runs ledger mutations inside a pgx transaction. Row locks are taken
// with SELECT ... FOR UPDATE, so concurrent writers to one account queue on the database.
type PgxLedgerUnitOfWork struct {
	BaseRepository
}

func newPgxLedgerUnitOfWork(pool *pgxpool.Pool) *PgxLedgerUnitOfWork {
	return &PgxLedgerUnitOfWork{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.LedgerUnitOfWork = (*PgxLedgerUnitOfWork)(nil)

// RunInTx begins a transaction, runs fn and commits when fn succeeds.
func (u *PgxLedgerUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context, tx portsrepo.LedgerTx) error) error {
	tx, err := u.Begin(ctx)
	if err != nil {
		return err
	}
	// Rollback is a no-op once the transaction has been committed.
	defer func() {
		if rbErr := u.Rollback(context.WithoutCancel(ctx), tx); rbErr != nil {
			slog.WarnContext(ctx, "Failed to roll back ledger transaction", slog.String("error", rbErr.Error()))
		}
	}()

	if err := fn(ctx, &pgxLedgerTx{tx: tx}); err != nil {
		return err
	}

	return u.Commit(ctx, tx)
}

// pgxLedgerTx implements portsrepo.LedgerTx on top of an open pgx.Tx.
type pgxLedgerTx struct {
	tx pgx.Tx
}

var _ portsrepo.LedgerTx = (*pgxLedgerTx)(nil)

func (t *pgxLedgerTx) LockAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM credit_accounts WHERE account_id = $1 FOR UPDATE;`

	acc, err := scanAccount(t.tx.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock account %s: %w", accountID, translateError(err))
	}
	return acc, nil
}

func (t *pgxLedgerTx) FindTransactionByIdempotencyKey(ctx context.Context, accountID string, key string) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM credit_transactions
		WHERE account_id = $1 AND idempotency_key = $2;
	`
	txn, err := scanTransaction(t.tx.QueryRow(ctx, query, accountID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up idempotency key for account %s: %w", accountID, translateError(err))
	}
	return txn, nil
}

func (t *pgxLedgerTx) FindTransactionByID(ctx context.Context, accountID string, transactionID int64) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM credit_transactions
		WHERE account_id = $1 AND transaction_id = $2;
	`
	txn, err := scanTransaction(t.tx.QueryRow(ctx, query, accountID, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transaction %d: %w", transactionID, translateError(err))
	}
	return txn, nil
}

func (t *pgxLedgerTx) IsRefunded(ctx context.Context, transactionID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM credit_transactions WHERE refund_of = $1);`
	if err := t.tx.QueryRow(ctx, query, transactionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check refunds of transaction %d: %w", transactionID, translateError(err))
	}
	return exists, nil
}

func (t *pgxLedgerTx) UpdateAccountBalance(ctx context.Context, account domain.Account) error {
	query := `
		UPDATE credit_accounts
		SET balance = $2, total_used = $3, version = $4, last_updated_at = $5, last_updated_by = $6
		WHERE account_id = $1;
	`
	cmdTag, err := t.tx.Exec(ctx, query,
		account.AccountID,
		account.Balance,
		account.TotalUsed,
		account.Version,
		account.LastUpdatedAt,
		account.LastUpdatedBy,
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: balance update for account %s rejected by constraint", apperrors.ErrValidation, account.AccountID)
		}
		return fmt.Errorf("failed to update balance for account %s: %w", account.AccountID, translateError(err))
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s not found during balance update", apperrors.ErrNotFound, account.AccountID)
	}
	return nil
}

func (t *pgxLedgerTx) AppendTransaction(ctx context.Context, txn *domain.Transaction) error {
	m, err := mapping.ToModelTransaction(*txn)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	query := `
		INSERT INTO credit_transactions (account_id, amount, balance_after, kind, description, metadata, idempotency_key, refund_of, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING transaction_id, created_at;
	`
	err = t.tx.QueryRow(ctx, query,
		m.AccountID,
		m.Amount,
		m.BalanceAfter,
		m.Kind,
		m.Description,
		m.Metadata,
		m.IdempotencyKey,
		m.RefundOf,
		m.CreatedBy,
	).Scan(&txn.TransactionID, &txn.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, "uq_credit_transactions_refund_of"):
			return apperrors.ErrAlreadyRefunded
		case isUniqueViolation(err, "uq_credit_transactions_idempotency"):
			// Another writer recorded the same key; a retry will find and replay it.
			return fmt.Errorf("%w: idempotency key %q already used", apperrors.ErrConcurrencyConflict, txn.IdempotencyKey)
		case isCheckViolation(err):
			return fmt.Errorf("%w: transaction for account %s rejected by constraint", apperrors.ErrValidation, txn.AccountID)
		}
		return fmt.Errorf("failed to append transaction for account %s: %w", txn.AccountID, translateError(err))
	}
	return nil
}
