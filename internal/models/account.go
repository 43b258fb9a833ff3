package models

import (
	"github.com/shopspring/decimal"
)

// Account is a row of credit_accounts.
type Account struct {
	AccountID string          `db:"account_id"`
	Name      string          `db:"name"`
	Balance   decimal.Decimal `db:"balance"`
	TotalUsed decimal.Decimal `db:"total_used"`
	Version   int64           `db:"version"`
	AuditFields
}
