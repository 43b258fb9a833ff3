package mapping

import (
	"testing"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/SscSPs/credit_ledger_app/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToModelTransaction_NullableColumns(t *testing.T) {
	row, err := ToModelTransaction(domain.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.NewFromInt(5),
		Kind:      domain.KindAdminAdd,
	})
	require.NoError(t, err)

	assert.Nil(t, row.IdempotencyKey)
	assert.Nil(t, row.Metadata)
	assert.Nil(t, row.RefundOf)
	assert.Equal(t, "admin_add", row.Kind)
}

func TestToDomainTransaction_DecodesMetadata(t *testing.T) {
	key := "req-1"
	refundOf := int64(3)
	row := models.Transaction{
		TransactionID:  9,
		AccountID:      "acc-1",
		Amount:         decimal.NewFromInt(2),
		BalanceAfter:   decimal.NewFromInt(7),
		Kind:           "refund",
		Metadata:       []byte(`{"type":"refund","data":{"originalTransactionId":3,"reason":"render failed"}}`),
		IdempotencyKey: &key,
		RefundOf:       &refundOf,
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		CreatedBy:      "user-1",
	}

	txn, err := ToDomainTransaction(row)
	require.NoError(t, err)

	assert.Equal(t, domain.KindRefund, txn.Kind)
	assert.Equal(t, "req-1", txn.IdempotencyKey)
	assert.Equal(t, domain.RefundContext{OriginalTransactionID: 3, Reason: "render failed"}, txn.Metadata)
	require.NotNil(t, txn.RefundOf)
	assert.Equal(t, int64(3), *txn.RefundOf)
}

func TestToDomainTransaction_CorruptMetadata(t *testing.T) {
	_, err := ToDomainTransaction(models.Transaction{TransactionID: 4, Metadata: []byte(`{"type":"video","data":{}}`)})
	assert.ErrorContains(t, err, "transaction 4")
}

func TestAccountMapping_PreservesVersion(t *testing.T) {
	in := domain.Account{
		AccountID: "acc-1",
		Name:      "Acme",
		Balance:   decimal.NewFromInt(12),
		TotalUsed: decimal.NewFromInt(3),
		Version:   4,
		AuditFields: domain.AuditFields{
			CreatedBy:     "admin",
			LastUpdatedBy: "user-1",
		},
	}

	out := ToDomainAccount(ToModelAccount(in))
	assert.Equal(t, in.AccountID, out.AccountID)
	assert.Equal(t, int64(4), out.Version)
	assert.True(t, out.Balance.Equal(in.Balance))
	assert.Equal(t, "user-1", out.LastUpdatedBy)
}
