package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable audit record of one balance change.
type Transaction struct {
	TransactionID  int64           `json:"transactionID"` // assigned on insert, increases with commit order
	AccountID      string          `json:"accountID"`
	Amount         decimal.Decimal `json:"amount"` // negative for debits
	BalanceAfter   decimal.Decimal `json:"balanceAfter"`
	Kind           OperationKind   `json:"kind"`
	Description    string          `json:"description"`
	Metadata       Metadata        `json:"-"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	RefundOf       *int64          `json:"refundOf,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	CreatedBy      string          `json:"createdBy"`
}

// IsDebit reports whether the transaction lowered the balance.
func (t Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// LedgerResult is the outcome of a committed (or replayed) ledger mutation.
type LedgerResult struct {
	AccountID     string          `json:"accountID"`
	NewBalance    decimal.Decimal `json:"newBalance"`
	TransactionID int64           `json:"transactionID"`
	Replayed      bool            `json:"replayed"`
}
