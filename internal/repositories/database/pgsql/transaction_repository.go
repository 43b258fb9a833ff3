package pgsql

import (
	"context"
	"fmt"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	"github.com/SscSPs/credit_ledger_app/internal/models"
	"github.com/SscSPs/credit_ledger_app/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `transaction_id, account_id, amount, balance_after, kind, description, metadata, idempotency_key, refund_of, created_at, created_by`

// PgxTransactionRepository reads the credit transaction log.
type PgxTransactionRepository struct {
	BaseRepository
}

func newPgxTransactionRepository(pool *pgxpool.Pool) *PgxTransactionRepository {
	return &PgxTransactionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.TransactionReader = (*PgxTransactionRepository)(nil)

// scanTransaction reads one row selected with transactionColumns.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var m models.Transaction
	err := row.Scan(
		&m.TransactionID,
		&m.AccountID,
		&m.Amount,
		&m.BalanceAfter,
		&m.Kind,
		&m.Description,
		&m.Metadata,
		&m.IdempotencyKey,
		&m.RefundOf,
		&m.CreatedAt,
		&m.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	txn, err := mapping.ToDomainTransaction(m)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", translateError(err))
	}
	return transactions, nil
}

// ListTransactions returns a page of an account's transactions, newest first.
func (r *PgxTransactionRepository) ListTransactions(ctx context.Context, accountID string, limit int, beforeID *int64) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}

	var (
		rows pgx.Rows
		err  error
	)
	if beforeID != nil {
		query := `
			SELECT ` + transactionColumns + `
			FROM credit_transactions
			WHERE account_id = $1 AND transaction_id < $2
			ORDER BY transaction_id DESC
			LIMIT $3;
		`
		rows, err = r.Pool.Query(ctx, query, accountID, *beforeID, limit)
	} else {
		query := `
			SELECT ` + transactionColumns + `
			FROM credit_transactions
			WHERE account_id = $1
			ORDER BY transaction_id DESC
			LIMIT $2;
		`
		rows, err = r.Pool.Query(ctx, query, accountID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for account %s: %w", accountID, translateError(err))
	}

	return collectTransactions(rows)
}

// ListAllTransactions returns the full log of an account in commit order.
func (r *PgxTransactionRepository) ListAllTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM credit_transactions
		WHERE account_id = $1
		ORDER BY transaction_id ASC;
	`
	rows, err := r.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction log for account %s: %w", accountID, translateError(err))
	}

	return collectTransactions(rows)
}
