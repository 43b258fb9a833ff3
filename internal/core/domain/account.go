package domain

import (
	"github.com/shopspring/decimal"
)

// Account is a paying tenant owning one credit balance.
type Account struct {
	AccountID   string          `json:"accountID"`
	Name        string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`   // never negative
	TotalUsed   decimal.Decimal `json:"totalUsed"` // cumulative debits, never decreases
	Version     int64           `json:"version"`   // bumped on every committed mutation
	AuditFields
}
