package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// KindUsage is the credits spent on one operation kind over a window.
type KindUsage struct {
	Kind    OperationKind   `json:"kind"`
	Credits decimal.Decimal `json:"credits"`
	Count   int64           `json:"count"`
}

// DailyUsage is the credits spent on one UTC day.
type DailyUsage struct {
	Day     time.Time       `json:"day"`
	Credits decimal.Decimal `json:"credits"`
	Count   int64           `json:"count"`
}

// BalanceSummary is the read-only dashboard view of an account.
type BalanceSummary struct {
	AccountID          string          `json:"accountID"`
	Balance            decimal.Decimal `json:"balance"`
	TotalUsed          decimal.Decimal `json:"totalUsed"`
	RecentTransactions []Transaction   `json:"recentTransactions"`
	UsageByKind        []KindUsage     `json:"usageByKind"`
	UsageByDay         []DailyUsage    `json:"usageByDay"`
	WindowStart        time.Time       `json:"windowStart"`
	WindowEnd          time.Time       `json:"windowEnd"`
}

// AuditReport is the result of replaying an account's transaction log.
type AuditReport struct {
	AccountID        string          `json:"accountID"`
	Consistent       bool            `json:"consistent"`
	StoredBalance    decimal.Decimal `json:"storedBalance"`
	ReplayedBalance  decimal.Decimal `json:"replayedBalance"`
	TransactionCount int             `json:"transactionCount"`
	FirstMismatchID  *int64          `json:"firstMismatchID,omitempty"`
}

// TransactionPage is one page of an account's history.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	NextToken    string        `json:"nextToken,omitempty"`
}
