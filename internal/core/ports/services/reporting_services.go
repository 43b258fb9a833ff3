package services

import (
	"context"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
)

// SummaryParams shapes the balance summary view. Zero values select the defaults.
type SummaryParams struct {
	RecentLimit int
	WindowDays  int
}

// ReportingService defines read-only views over the transaction log
type ReportingService interface {
	// GetSummary returns balance, usage and recent activity for an account.
	GetSummary(ctx context.Context, accountID string, params SummaryParams) (*domain.BalanceSummary, error)

	// ListTransactions returns one page of an account's history, newest first.
	ListTransactions(ctx context.Context, accountID string, limit int, nextToken string) (*domain.TransactionPage, error)
}
