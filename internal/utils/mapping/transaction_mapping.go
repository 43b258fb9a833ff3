package mapping

import (
	"fmt"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/SscSPs/credit_ledger_app/internal/models"
)

// ToModelTransaction converts a domain Transaction to its row form, encoding the metadata
// envelope. An empty idempotency key is stored as NULL.
func ToModelTransaction(d domain.Transaction) (models.Transaction, error) {
	metadata, err := domain.MarshalMetadata(d.Metadata)
	if err != nil {
		return models.Transaction{}, err
	}

	var idempotencyKey *string
	if d.IdempotencyKey != "" {
		key := d.IdempotencyKey
		idempotencyKey = &key
	}

	return models.Transaction{
		TransactionID:  d.TransactionID,
		AccountID:      d.AccountID,
		Amount:         d.Amount,
		BalanceAfter:   d.BalanceAfter,
		Kind:           string(d.Kind),
		Description:    d.Description,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
		RefundOf:       d.RefundOf,
		CreatedAt:      d.CreatedAt,
		CreatedBy:      d.CreatedBy,
	}, nil
}

// ToDomainTransaction converts a transaction row to a domain Transaction.
func ToDomainTransaction(m models.Transaction) (domain.Transaction, error) {
	metadata, err := domain.UnmarshalMetadata(m.Metadata)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %d: %w", m.TransactionID, err)
	}

	d := domain.Transaction{
		TransactionID: m.TransactionID,
		AccountID:     m.AccountID,
		Amount:        m.Amount,
		BalanceAfter:  m.BalanceAfter,
		Kind:          domain.OperationKind(m.Kind),
		Description:   m.Description,
		Metadata:      metadata,
		RefundOf:      m.RefundOf,
		CreatedAt:     m.CreatedAt,
		CreatedBy:     m.CreatedBy,
	}
	if m.IdempotencyKey != nil {
		d.IdempotencyKey = *m.IdempotencyKey
	}
	return d, nil
}
