package services

import (
	"context"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DebitCommand asks for amount credits to be taken from an account for a billable operation.
type DebitCommand struct {
	AccountID      string
	Amount         decimal.Decimal
	Kind           domain.OperationKind
	Description    string
	Metadata       domain.Metadata
	IdempotencyKey string
	ActorID        string
}

// ChargeCommand is a DebitCommand priced from the cost catalog.
type ChargeCommand struct {
	AccountID      string
	Kind           domain.OperationKind
	Description    string
	Metadata       domain.Metadata
	IdempotencyKey string
	ActorID        string
}

// AdjustCommand is a manual grant (positive Amount) or deduction (negative Amount).
type AdjustCommand struct {
	AccountID   string
	Amount      decimal.Decimal
	Description string
	Note        string
	ActorID     string
}

// RefundCommand compensates a billable debit whose paid action did not happen.
type RefundCommand struct {
	AccountID             string
	OriginalTransactionID int64
	Reason                string
	ActorID               string
}

// LedgerWriterSvc defines the balance-changing ledger operations.
// Errors are drawn from the ledger taxonomy in apperrors.
type LedgerWriterSvc interface {
	Debit(ctx context.Context, cmd DebitCommand) (*domain.LedgerResult, error)
	Charge(ctx context.Context, cmd ChargeCommand) (*domain.LedgerResult, error)
	AdminAdjust(ctx context.Context, cmd AdjustCommand) (*domain.LedgerResult, error)
	Refund(ctx context.Context, cmd RefundCommand) (*domain.LedgerResult, error)
}

// LedgerReaderSvc defines read-only ledger operations.
type LedgerReaderSvc interface {
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	VerifyAccount(ctx context.Context, accountID string) (*domain.AuditReport, error)
	CostCatalog() domain.CostCatalog
}

// LedgerSvcFacade combines all ledger service interfaces
type LedgerSvcFacade interface {
	LedgerWriterSvc
	LedgerReaderSvc
}
