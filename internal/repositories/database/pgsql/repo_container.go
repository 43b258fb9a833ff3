package pgsql

import (
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRepositoryProvider wires every PostgreSQL-backed repository onto one pool.
func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		AccountRepo:     newPgxAccountRepository(dbPool),
		TransactionRepo: newPgxTransactionRepository(dbPool),
		LedgerUoW:       newPgxLedgerUnitOfWork(dbPool),
		ReportingRepo:   newReportingRepository(dbPool),
	}
}
