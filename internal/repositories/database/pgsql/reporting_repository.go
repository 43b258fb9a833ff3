package pgsql

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// billableKindsFilter restricts aggregates to paid operations.
const billableKindsFilter = `kind IN ('blog_generation', 'image_generation', 'image_edit')`

// reportingRepository implements the ReportingRepository interface
type reportingRepository struct {
	BaseRepository
}

// newReportingRepository creates a new reporting repository
func newReportingRepository(db *pgxpool.Pool) portsrepo.ReportingRepository {
	return &reportingRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

// GetUsageByKind sums debited credits per billable kind in [from, to)
func (r *reportingRepository) GetUsageByKind(ctx context.Context, accountID string, from, to time.Time) ([]domain.KindUsage, error) {
	query := `
		SELECT kind, SUM(-amount) AS credits, COUNT(*) AS operations
		FROM credit_transactions
		WHERE account_id = $1
			AND created_at >= $2
			AND created_at < $3
			AND amount < 0
			AND ` + billableKindsFilter + `
		GROUP BY kind
		ORDER BY kind
	`

	rows, err := r.Pool.Query(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("error querying usage by kind: %w", translateError(err))
	}
	defer rows.Close()

	result := []domain.KindUsage{}
	for rows.Next() {
		var row domain.KindUsage
		var kind string
		if err := rows.Scan(&kind, &row.Credits, &row.Count); err != nil {
			return nil, fmt.Errorf("error scanning usage by kind row: %w", err)
		}
		row.Kind = domain.OperationKind(kind)
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage by kind rows: %w", translateError(err))
	}

	return result, nil
}

// GetUsageByDay sums debited credits per UTC day in [from, to)
func (r *reportingRepository) GetUsageByDay(ctx context.Context, accountID string, from, to time.Time) ([]domain.DailyUsage, error) {
	query := `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, SUM(-amount) AS credits, COUNT(*) AS operations
		FROM credit_transactions
		WHERE account_id = $1
			AND created_at >= $2
			AND created_at < $3
			AND amount < 0
			AND ` + billableKindsFilter + `
		GROUP BY day
		ORDER BY day
	`

	rows, err := r.Pool.Query(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("error querying usage by day: %w", translateError(err))
	}
	defer rows.Close()

	result := []domain.DailyUsage{}
	for rows.Next() {
		var row domain.DailyUsage
		if err := rows.Scan(&row.Day, &row.Credits, &row.Count); err != nil {
			return nil, fmt.Errorf("error scanning usage by day row: %w", err)
		}
		row.Day = time.Date(row.Day.Year(), row.Day.Month(), row.Day.Day(), 0, 0, 0, 0, time.UTC)
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage by day rows: %w", translateError(err))
	}

	return result, nil
}
