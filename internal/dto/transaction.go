package dto

import (
	"encoding/json"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// TransactionResponse defines the data returned for a transaction.
type TransactionResponse struct {
	TransactionID int64           `json:"transactionId"`
	AccountID     string          `json:"accountId"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Kind          string          `json:"kind"`
	Description   string          `json:"description"`
	Metadata      json.RawMessage `json:"metadata,omitempty" swaggertype:"object"`
	RefundOf      *int64          `json:"refundOf,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	CreatedBy     string          `json:"createdBy"`
}

// ToTransactionResponse converts a domain.Transaction to TransactionResponse DTO.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	// Stored metadata was validated on the way in, so encoding cannot fail here.
	metadata, _ := domain.MarshalMetadata(txn.Metadata)
	return TransactionResponse{
		TransactionID: txn.TransactionID,
		AccountID:     txn.AccountID,
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		Kind:          string(txn.Kind),
		Description:   txn.Description,
		Metadata:      metadata,
		RefundOf:      txn.RefundOf,
		CreatedAt:     txn.CreatedAt,
		CreatedBy:     txn.CreatedBy,
	}
}

// ToTransactionResponses converts a slice of domain.Transaction to []TransactionResponse.
func ToTransactionResponses(txns []domain.Transaction) []TransactionResponse {
	responses := make([]TransactionResponse, len(txns))
	for i := range txns {
		responses[i] = ToTransactionResponse(&txns[i])
	}
	return responses
}

// ListTransactionsParams defines query parameters for listing transactions.
type ListTransactionsParams struct {
	Limit     int    `form:"limit,default=20" binding:"min=1,max=100"`
	NextToken string `form:"nextToken"`
}

// ListTransactionsResponse wraps one page of transactions.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextToken    string                `json:"nextToken,omitempty"`
}

// ToListTransactionsResponse converts a domain page to its wire form.
func ToListTransactionsResponse(page *domain.TransactionPage) ListTransactionsResponse {
	return ListTransactionsResponse{
		Transactions: ToTransactionResponses(page.Transactions),
		NextToken:    page.NextToken,
	}
}
