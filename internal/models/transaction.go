package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a row of credit_transactions. Nullable columns are pointers and
// metadata holds the encoded envelope as stored in the JSONB column.
type Transaction struct {
	TransactionID  int64           `db:"transaction_id"`
	AccountID      string          `db:"account_id"`
	Amount         decimal.Decimal `db:"amount"`
	BalanceAfter   decimal.Decimal `db:"balance_after"`
	Kind           string          `db:"kind"`
	Description    string          `db:"description"`
	Metadata       []byte          `db:"metadata"`
	IdempotencyKey *string         `db:"idempotency_key"`
	RefundOf       *int64          `db:"refund_of"`
	CreatedAt      time.Time       `db:"created_at"`
	CreatedBy      string          `db:"created_by"`
}
