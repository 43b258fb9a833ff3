package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/middleware"
)

// BillableOperation is a paid action that must be charged before it runs.
type BillableOperation interface {
	Kind() domain.OperationKind
	Describe() string
	Metadata() domain.Metadata
	Run(ctx context.Context) error
}

// RunBillable charges the catalog price of op, then runs it. When op fails the charge is
// refunded and the operation's error is returned. If the refund also fails the credits are
// written off: both errors are returned joined and the write-off is logged.
func RunBillable(ctx context.Context, ledger portssvc.LedgerWriterSvc, accountID string, op BillableOperation, actorID string) (*domain.LedgerResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	charged, err := ledger.Charge(ctx, portssvc.ChargeCommand{
		AccountID:   accountID,
		Kind:        op.Kind(),
		Description: op.Describe(),
		Metadata:    op.Metadata(),
		ActorID:     actorID,
	})
	if err != nil {
		return nil, err
	}

	runErr := op.Run(ctx)
	if runErr == nil {
		return charged, nil
	}

	// The refund must land even when the caller's context is already done.
	refunded, refundErr := ledger.Refund(context.WithoutCancel(ctx), portssvc.RefundCommand{
		AccountID:             accountID,
		OriginalTransactionID: charged.TransactionID,
		Reason:                runErr.Error(),
		ActorID:               actorID,
	})
	if refundErr != nil {
		logger.ErrorContext(ctx, "Billable operation failed and its charge could not be refunded; credits written off",
			slog.String("account_id", accountID),
			slog.Int64("transaction_id", charged.TransactionID),
			slog.String("operation_error", runErr.Error()),
			slog.String("refund_error", refundErr.Error()))
		return nil, errors.Join(runErr, fmt.Errorf("refund of transaction %d failed: %w", charged.TransactionID, refundErr))
	}

	logger.InfoContext(ctx, "Billable operation failed, charge refunded",
		slog.String("account_id", accountID),
		slog.Int64("transaction_id", charged.TransactionID),
		slog.Int64("refund_transaction_id", refunded.TransactionID))
	return refunded, runErr
}
