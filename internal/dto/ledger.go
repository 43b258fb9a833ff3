package dto

import (
	"encoding/json"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DebitRequest charges an account for a billable operation.
// Cost defaults to the catalog price of Kind when omitted.
type DebitRequest struct {
	AccountID      string           `json:"accountId" binding:"required"`
	Kind           string           `json:"kind" binding:"required,billable_kind"`
	Cost           *decimal.Decimal `json:"cost"`
	Description    string           `json:"description" binding:"max=1000"`
	Metadata       json.RawMessage  `json:"metadata" swaggertype:"object"`
	IdempotencyKey string           `json:"idempotencyKey" binding:"max=128"`
}

// AdjustRequest is an admin grant (positive amount) or deduction (negative amount).
type AdjustRequest struct {
	AccountID   string           `json:"accountId" binding:"required"`
	Amount      *decimal.Decimal `json:"amount" binding:"required"`
	Description string           `json:"description" binding:"max=1000"`
	Note        string           `json:"note" binding:"max=1000"`
}

// RefundRequest compensates a debit whose paid operation failed.
type RefundRequest struct {
	AccountID     string `json:"accountId" binding:"required"`
	TransactionID int64  `json:"transactionId" binding:"required,gt=0"`
	Reason        string `json:"reason" binding:"max=1000"`
}

// LedgerResponse is the result envelope of every ledger mutation.
type LedgerResponse struct {
	Success       bool             `json:"success"`
	NewBalance    *decimal.Decimal `json:"newBalance,omitempty"`
	TransactionID int64            `json:"transactionId,omitempty"`
	Replayed      bool             `json:"replayed,omitempty"`
	Error         string           `json:"error,omitempty"`
	Required      *decimal.Decimal `json:"required,omitempty"`
	Available     *decimal.Decimal `json:"available,omitempty"`
}

// ToLedgerResponse converts a committed result into a success envelope.
func ToLedgerResponse(res *domain.LedgerResult) LedgerResponse {
	balance := res.NewBalance
	return LedgerResponse{
		Success:       true,
		NewBalance:    &balance,
		TransactionID: res.TransactionID,
		Replayed:      res.Replayed,
	}
}

// CatalogEntryResponse is one priced operation.
type CatalogEntryResponse struct {
	Kind  string          `json:"kind"`
	Price decimal.Decimal `json:"price"`
}

// ToCatalogResponse converts the cost catalog into its wire form.
func ToCatalogResponse(catalog domain.CostCatalog) []CatalogEntryResponse {
	entries := catalog.Entries()
	res := make([]CatalogEntryResponse, len(entries))
	for i, e := range entries {
		res[i] = CatalogEntryResponse{Kind: string(e.Kind), Price: e.Price}
	}
	return res
}
