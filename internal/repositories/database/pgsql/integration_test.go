//go:build integration

package pgsql_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/apperrors"
	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/core/services"
	"github.com/SscSPs/credit_ledger_app/internal/dto"
	"github.com/SscSPs/credit_ledger_app/internal/repositories/database/pgsql"
	"github.com/SscSPs/credit_ledger_app/migrations"
	"github.com/SscSPs/credit_ledger_app/pkg/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresLedgerSuite struct {
	suite.Suite
	container testcontainers.Container
	pool      *pgxpool.Pool
	repos     portsrepo.RepositoryProvider
	accounts  *services.AccountService
	ledger    *services.LedgerService
	reporting portssvc.ReportingService
}

func (s *PostgresLedgerSuite) SetupSuite() {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "credit_ledger",
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err, "failed to start postgres container")
	s.container = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "5432")
	s.Require().NoError(err)
	databaseURL := fmt.Sprintf("postgres://postgres:password@%s:%s/credit_ledger?sslmode=disable", host, port.Port())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.Require().NoError(migrations.Up(databaseURL, logger))
	// Applying twice is a no-op.
	s.Require().NoError(migrations.Up(databaseURL, logger))

	s.pool, err = database.NewPgxPool(ctx, databaseURL, true, database.WithMaxConns(20))
	s.Require().NoError(err)

	s.repos = pgsql.NewRepositoryProvider(s.pool)
	s.accounts = services.NewAccountService(s.repos.AccountRepo)
	s.ledger = services.NewLedgerService(s.repos.LedgerUoW, s.repos.AccountRepo, s.repos.TransactionRepo,
		services.WithRetryPolicy(10, 5*time.Millisecond))
	s.reporting = services.NewReportingService(s.repos.ReportingRepo, s.repos.AccountRepo, s.repos.TransactionRepo)
}

func (s *PostgresLedgerSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *PostgresLedgerSuite) newAccount(grant int64) string {
	ctx := context.Background()
	account, err := s.accounts.CreateAccount(ctx, dto.CreateAccountRequest{Name: "integration"}, "tester")
	s.Require().NoError(err)
	if grant > 0 {
		_, err = s.ledger.AdminAdjust(ctx, portssvc.AdjustCommand{
			AccountID: account.AccountID,
			Amount:    decimal.NewFromInt(grant),
			ActorID:   "tester",
		})
		s.Require().NoError(err)
	}
	return account.AccountID
}

func (s *PostgresLedgerSuite) TestDebitAndAdjustFlow() {
	ctx := context.Background()
	accountID := s.newAccount(12)

	res, err := s.ledger.Charge(ctx, portssvc.ChargeCommand{
		AccountID: accountID,
		Kind:      domain.KindBlogGeneration,
		Metadata:  domain.BlogContext{PostID: "post-1", Title: "Hello"},
		ActorID:   "tester",
	})
	s.Require().NoError(err)
	s.True(res.NewBalance.Equal(decimal.NewFromInt(2)))

	_, err = s.ledger.Charge(ctx, portssvc.ChargeCommand{AccountID: accountID, Kind: domain.KindBlogGeneration, ActorID: "tester"})
	s.ErrorIs(err, apperrors.ErrInsufficientCredits)

	_, err = s.ledger.AdminAdjust(ctx, portssvc.AdjustCommand{AccountID: accountID, Amount: decimal.NewFromInt(-3), ActorID: "tester"})
	s.ErrorIs(err, apperrors.ErrResultingBalanceNegative)

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	s.Require().NoError(err)
	s.True(account.Balance.Equal(decimal.NewFromInt(2)))
	s.True(account.TotalUsed.Equal(decimal.NewFromInt(10)))

	page, err := s.reporting.ListTransactions(ctx, accountID, 10, "")
	s.Require().NoError(err)
	s.Require().Len(page.Transactions, 2)
	s.Equal(domain.KindBlogGeneration, page.Transactions[0].Kind)
	s.Equal(domain.BlogContext{PostID: "post-1", Title: "Hello"}, page.Transactions[0].Metadata)
	s.Equal(domain.KindAdminAdd, page.Transactions[1].Kind)

	report, err := s.ledger.VerifyAccount(ctx, accountID)
	s.Require().NoError(err)
	s.True(report.Consistent)
}

func (s *PostgresLedgerSuite) TestIdempotentReplay() {
	ctx := context.Background()
	accountID := s.newAccount(10)
	cmd := portssvc.DebitCommand{
		AccountID:      accountID,
		Amount:         decimal.NewFromInt(3),
		Kind:           domain.KindImageEdit,
		IdempotencyKey: "req-42",
		ActorID:        "tester",
	}

	first, err := s.ledger.Debit(ctx, cmd)
	s.Require().NoError(err)
	second, err := s.ledger.Debit(ctx, cmd)
	s.Require().NoError(err)

	s.True(second.Replayed)
	s.Equal(first.TransactionID, second.TransactionID)
	s.True(second.NewBalance.Equal(decimal.NewFromInt(7)))

	balance, err := s.ledger.GetBalance(ctx, accountID)
	s.Require().NoError(err)
	s.True(balance.Equal(decimal.NewFromInt(7)))
}

func (s *PostgresLedgerSuite) TestConcurrentDebitsNeverOverdraw() {
	ctx := context.Background()
	accountID := s.newAccount(25)

	const writers = 40
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for n := 0; n < writers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.Charge(ctx, portssvc.ChargeCommand{AccountID: accountID, Kind: domain.KindImageGeneration, ActorID: "tester"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			s.ErrorIs(err, apperrors.ErrInsufficientCredits)
		}()
	}
	wg.Wait()

	s.Equal(25, succeeded)
	balance, err := s.ledger.GetBalance(ctx, accountID)
	s.Require().NoError(err)
	s.True(balance.IsZero())

	report, err := s.ledger.VerifyAccount(ctx, accountID)
	s.Require().NoError(err)
	s.True(report.Consistent)
	s.Equal(26, report.TransactionCount)

	// Writers that queued on the row lock are stamped when they insert, not when they began.
	txns, err := s.repos.TransactionRepo.ListAllTransactions(ctx, accountID)
	s.Require().NoError(err)
	for i := 1; i < len(txns); i++ {
		s.False(txns[i].CreatedAt.Before(txns[i-1].CreatedAt),
			"transaction %d is stamped before %d", txns[i].TransactionID, txns[i-1].TransactionID)
	}
}

func (s *PostgresLedgerSuite) TestStoredAmountsKeepFullPrecision() {
	ctx := context.Background()
	accountID := s.newAccount(24)

	res, err := s.ledger.Debit(ctx, portssvc.DebitCommand{
		AccountID: accountID,
		Amount:    decimal.RequireFromString("0.0001"),
		Kind:      domain.KindImageEdit,
		ActorID:   "tester",
	})
	s.Require().NoError(err)
	s.True(res.NewBalance.Equal(decimal.RequireFromString("23.9999")))

	_, err = s.ledger.Debit(ctx, portssvc.DebitCommand{
		AccountID: accountID,
		Amount:    decimal.RequireFromString("0.00005"),
		Kind:      domain.KindImageEdit,
		ActorID:   "tester",
	})
	s.ErrorIs(err, apperrors.ErrValidation)

	balance, err := s.ledger.GetBalance(ctx, accountID)
	s.Require().NoError(err)
	s.True(balance.Equal(res.NewBalance), "the stored balance is the one reported")

	report, err := s.ledger.VerifyAccount(ctx, accountID)
	s.Require().NoError(err)
	s.True(report.Consistent)
}

func (s *PostgresLedgerSuite) TestRefundOnlyOnce() {
	ctx := context.Background()
	accountID := s.newAccount(5)

	debit, err := s.ledger.Charge(ctx, portssvc.ChargeCommand{AccountID: accountID, Kind: domain.KindImageEdit, ActorID: "tester"})
	s.Require().NoError(err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		refunded int
		rejected int
	)
	for n := 0; n < 5; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.Refund(ctx, portssvc.RefundCommand{AccountID: accountID, OriginalTransactionID: debit.TransactionID, ActorID: "tester"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				refunded++
			} else if s.ErrorIs(err, apperrors.ErrAlreadyRefunded) {
				rejected++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, refunded)
	s.Equal(4, rejected)
	balance, err := s.ledger.GetBalance(ctx, accountID)
	s.Require().NoError(err)
	s.True(balance.Equal(decimal.NewFromInt(5)))
}

func (s *PostgresLedgerSuite) TestSummaryAndPagination() {
	ctx := context.Background()
	accountID := s.newAccount(30)
	for _, kind := range []domain.OperationKind{domain.KindImageGeneration, domain.KindImageEdit, domain.KindImageGeneration} {
		_, err := s.ledger.Charge(ctx, portssvc.ChargeCommand{AccountID: accountID, Kind: kind, ActorID: "tester"})
		s.Require().NoError(err)
	}

	summary, err := s.reporting.GetSummary(ctx, accountID, portssvc.SummaryParams{RecentLimit: 2, WindowDays: 7})
	s.Require().NoError(err)
	s.True(summary.Balance.Equal(decimal.NewFromInt(26)))
	s.True(summary.TotalUsed.Equal(decimal.NewFromInt(4)))
	s.Len(summary.RecentTransactions, 2)

	usage := map[domain.OperationKind]decimal.Decimal{}
	for _, u := range summary.UsageByKind {
		usage[u.Kind] = u.Credits
	}
	s.True(usage[domain.KindImageGeneration].Equal(decimal.NewFromInt(2)))
	s.True(usage[domain.KindImageEdit].Equal(decimal.NewFromInt(2)))
	s.Require().Len(summary.UsageByDay, 1)
	s.True(summary.UsageByDay[0].Credits.Equal(decimal.NewFromInt(4)))

	first, err := s.reporting.ListTransactions(ctx, accountID, 3, "")
	s.Require().NoError(err)
	s.Len(first.Transactions, 3)
	s.Require().NotEmpty(first.NextToken)

	second, err := s.reporting.ListTransactions(ctx, accountID, 3, first.NextToken)
	s.Require().NoError(err)
	s.Require().Len(second.Transactions, 1)
	s.Equal(domain.KindAdminAdd, second.Transactions[0].Kind)
	s.Empty(second.NextToken)
}

func (s *PostgresLedgerSuite) TestLogIsImmutable() {
	ctx := context.Background()
	accountID := s.newAccount(1)

	_, err := s.pool.Exec(ctx, `UPDATE credit_transactions SET amount = 100 WHERE account_id = $1`, accountID)
	s.Error(err)
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}
