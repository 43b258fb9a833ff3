package accounting

import (
	"fmt"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ValidateSignedAmount checks that a transaction moves credits in the direction its kind implies.
// Billable debits and admin_deduct remove credits, refunds add them, and admin_add adds
// credits or records a zero adjustment.
func ValidateSignedAmount(txn domain.Transaction) error {
	switch {
	case txn.Kind.IsBillable(), txn.Kind == domain.KindAdminDeduct:
		if !txn.Amount.IsNegative() {
			return fmt.Errorf("%s transaction %d must have a negative amount, got %s", txn.Kind, txn.TransactionID, txn.Amount)
		}
	case txn.Kind == domain.KindRefund:
		if !txn.Amount.IsPositive() {
			return fmt.Errorf("refund transaction %d must have a positive amount, got %s", txn.TransactionID, txn.Amount)
		}
	case txn.Kind == domain.KindAdminAdd:
		if txn.Amount.IsNegative() {
			return fmt.Errorf("admin_add transaction %d must not be negative, got %s", txn.TransactionID, txn.Amount)
		}
	default:
		return fmt.Errorf("unknown kind '%s' for transaction %d", txn.Kind, txn.TransactionID)
	}
	return nil
}

// ReplayResult is the balance implied by a transaction log.
type ReplayResult struct {
	Balance         decimal.Decimal
	FirstMismatchID *int64
}

// ReplayBalance sums a log in commit order starting from zero. The first transaction whose
// recorded balance disagrees with the running sum, whose sign contradicts its kind, or that
// leaves the running sum negative is reported as the first mismatch.
func ReplayBalance(transactions []domain.Transaction) ReplayResult {
	res := ReplayResult{Balance: decimal.Zero}

	for _, txn := range transactions {
		res.Balance = res.Balance.Add(txn.Amount)
		if res.FirstMismatchID != nil {
			continue
		}
		if ValidateSignedAmount(txn) != nil ||
			res.Balance.IsNegative() ||
			!res.Balance.Equal(txn.BalanceAfter) {
			id := txn.TransactionID
			res.FirstMismatchID = &id
		}
	}

	return res
}
