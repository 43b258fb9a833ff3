package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/apperrors"
	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/utils/pagination"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
	defaultWindowDays  = 30
	maxWindowDays      = 365
	defaultPageSize    = 20
	maxPageSize        = 100
)

// reportingService implements the ReportingService interface
type reportingService struct {
	BaseService
	reportingRepo     portsrepo.ReportingRepository
	accounts          portsrepo.AccountReader
	txns              portsrepo.TransactionReader
	defaultWindowDays int
	now               func() time.Time
}

// ReportingServiceOption is a functional option for configuring the reporting service
type ReportingServiceOption func(*reportingService)

// WithDefaultWindowDays sets the usage window used when a request does not name one.
func WithDefaultWindowDays(days int) ReportingServiceOption {
	return func(s *reportingService) {
		if days > 0 {
			s.defaultWindowDays = min(days, maxWindowDays)
		}
	}
}

// WithReportingClock overrides the time source that anchors the usage window.
func WithReportingClock(now func() time.Time) ReportingServiceOption {
	return func(s *reportingService) {
		s.now = now
	}
}

// NewReportingService creates a new reporting service with the provided options
func NewReportingService(repo portsrepo.ReportingRepository, accounts portsrepo.AccountReader, txns portsrepo.TransactionReader, options ...ReportingServiceOption) portssvc.ReportingService {
	svc := &reportingService{
		reportingRepo:     repo,
		accounts:          accounts,
		txns:              txns,
		defaultWindowDays: defaultWindowDays,
		now:               func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(svc)
	}

	return svc
}

var _ portssvc.ReportingService = (*reportingService)(nil)

// GetSummary returns the balance, recent transactions and usage breakdowns of an account.
func (s *reportingService) GetSummary(ctx context.Context, accountID string, params portssvc.SummaryParams) (*domain.BalanceSummary, error) {
	recent := clamp(params.RecentLimit, defaultRecentLimit, maxRecentLimit)
	days := clamp(params.WindowDays, s.defaultWindowDays, maxWindowDays)

	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	windowEnd := s.now().UTC()
	today := time.Date(windowEnd.Year(), windowEnd.Month(), windowEnd.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := today.AddDate(0, 0, -(days - 1))

	recentTxns, err := s.txns.ListTransactions(ctx, accountID, recent, nil)
	if err != nil {
		s.LogError(ctx, err, "Failed to list recent transactions", slog.String("account_id", accountID))
		return nil, fmt.Errorf("failed to list recent transactions: %w", err)
	}

	byKind, err := s.reportingRepo.GetUsageByKind(ctx, accountID, windowStart, windowEnd)
	if err != nil {
		s.LogError(ctx, err, "Failed to retrieve usage by kind", slog.String("account_id", accountID))
		return nil, fmt.Errorf("failed to retrieve usage by kind: %w", err)
	}

	byDay, err := s.reportingRepo.GetUsageByDay(ctx, accountID, windowStart, windowEnd)
	if err != nil {
		s.LogError(ctx, err, "Failed to retrieve usage by day", slog.String("account_id", accountID))
		return nil, fmt.Errorf("failed to retrieve usage by day: %w", err)
	}

	s.LogDebug(ctx, "Balance summary generated",
		slog.String("account_id", accountID),
		slog.Int("window_days", days),
		slog.Int("recent_count", len(recentTxns)))

	return &domain.BalanceSummary{
		AccountID:          account.AccountID,
		Balance:            account.Balance,
		TotalUsed:          account.TotalUsed,
		RecentTransactions: recentTxns,
		UsageByKind:        byKind,
		UsageByDay:         byDay,
		WindowStart:        windowStart,
		WindowEnd:          windowEnd,
	}, nil
}

// ListTransactions returns one page of history, newest first. The returned token, when
// set, fetches the next older page.
func (s *reportingService) ListTransactions(ctx context.Context, accountID string, limit int, nextToken string) (*domain.TransactionPage, error) {
	limit = clamp(limit, defaultPageSize, maxPageSize)

	beforeID, err := pagination.DecodeTransactionCursor(nextToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	if _, err := s.findAccount(ctx, accountID); err != nil {
		return nil, err
	}

	txns, err := s.txns.ListTransactions(ctx, accountID, limit+1, beforeID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list transactions", slog.String("account_id", accountID))
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	page := &domain.TransactionPage{Transactions: txns}
	if len(txns) > limit {
		page.Transactions = txns[:limit]
		page.NextToken = pagination.EncodeTransactionCursor(page.Transactions[limit-1].TransactionID)
	}
	return page, nil
}

func (s *reportingService) findAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		s.LogError(ctx, err, "Failed to find account", slog.String("account_id", accountID))
		return nil, err
	}
	return account, nil
}

// clamp maps non-positive values to def and caps the rest at upper.
func clamp(v, def, upper int) int {
	if v <= 0 {
		return def
	}
	return min(v, upper)
}
