package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
)

// ReportingRepository defines aggregate queries over the transaction log
type ReportingRepository interface {
	// GetUsageByKind sums debited credits per operation kind for [from, to).
	GetUsageByKind(ctx context.Context, accountID string, from, to time.Time) ([]domain.KindUsage, error)

	// GetUsageByDay sums debited credits per UTC day for [from, to), oldest day first.
	GetUsageByDay(ctx context.Context, accountID string, from, to time.Time) ([]domain.DailyUsage, error)
}
