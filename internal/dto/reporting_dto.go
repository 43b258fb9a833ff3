package dto

import (
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// SummaryParams defines query parameters for the balance summary.
type SummaryParams struct {
	Recent     int `form:"recent,default=10" binding:"min=1,max=100"`
	WindowDays int `form:"windowDays,default=30" binding:"min=1,max=365"`
}

// KindUsageResponse is the usage of one operation kind.
type KindUsageResponse struct {
	Kind    string          `json:"kind"`
	Credits decimal.Decimal `json:"credits"`
	Count   int64           `json:"count"`
}

// DailyUsageResponse is the usage of one day.
type DailyUsageResponse struct {
	Day     string          `json:"day"` // YYYY-MM-DD, UTC
	Credits decimal.Decimal `json:"credits"`
	Count   int64           `json:"count"`
}

// BalanceSummaryResponse represents the balance summary view
type BalanceSummaryResponse struct {
	AccountID          string                `json:"accountId"`
	Balance            decimal.Decimal       `json:"balance"`
	TotalUsed          decimal.Decimal       `json:"totalUsed"`
	RecentTransactions []TransactionResponse `json:"recentTransactions"`
	UsageByKind        []KindUsageResponse   `json:"usageByKind"`
	UsageByDay         []DailyUsageResponse  `json:"usageByDay"`
	WindowStart        string                `json:"windowStart"`
	WindowEnd          string                `json:"windowEnd"`
}

// ToBalanceSummaryResponse converts a domain.BalanceSummary to its response DTO
func ToBalanceSummaryResponse(s *domain.BalanceSummary) BalanceSummaryResponse {
	byKind := make([]KindUsageResponse, len(s.UsageByKind))
	for i, u := range s.UsageByKind {
		byKind[i] = KindUsageResponse{Kind: string(u.Kind), Credits: u.Credits, Count: u.Count}
	}
	byDay := make([]DailyUsageResponse, len(s.UsageByDay))
	for i, u := range s.UsageByDay {
		byDay[i] = DailyUsageResponse{Day: u.Day.Format("2006-01-02"), Credits: u.Credits, Count: u.Count}
	}
	return BalanceSummaryResponse{
		AccountID:          s.AccountID,
		Balance:            s.Balance,
		TotalUsed:          s.TotalUsed,
		RecentTransactions: ToTransactionResponses(s.RecentTransactions),
		UsageByKind:        byKind,
		UsageByDay:         byDay,
		WindowStart:        s.WindowStart.Format(time.RFC3339),
		WindowEnd:          s.WindowEnd.Format(time.RFC3339),
	}
}

// AuditReportResponse is the wire form of a replay audit.
type AuditReportResponse struct {
	AccountID        string          `json:"accountId"`
	Consistent       bool            `json:"consistent"`
	StoredBalance    decimal.Decimal `json:"storedBalance"`
	ReplayedBalance  decimal.Decimal `json:"replayedBalance"`
	TransactionCount int             `json:"transactionCount"`
	FirstMismatchID  *int64          `json:"firstMismatchId,omitempty"`
}

// ToAuditReportResponse converts a domain.AuditReport to its response DTO
func ToAuditReportResponse(r *domain.AuditReport) AuditReportResponse {
	return AuditReportResponse{
		AccountID:        r.AccountID,
		Consistent:       r.Consistent,
		StoredBalance:    r.StoredBalance,
		ReplayedBalance:  r.ReplayedBalance,
		TransactionCount: r.TransactionCount,
		FirstMismatchID:  r.FirstMismatchID,
	}
}
