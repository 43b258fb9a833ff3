package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/apperrors"
	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/utils/accounting"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultMaxRetries      = 3
	defaultInitialInterval = 25 * time.Millisecond
	maxRetryInterval       = time.Second
)

// Operation labels used for logs and metrics.
const (
	opDebit  = "debit"
	opAdjust = "admin_adjust"
	opRefund = "refund"
)

// attemptKeyPrefix marks idempotency keys the ledger assigns to debits sent without one.
const attemptKeyPrefix = "attempt:"

// LedgerService applies balance changes to credit accounts. Every mutation runs as one
// locked unit of work: the balance update and its transaction record commit together or
// not at all.
type LedgerService struct {
	BaseService
	uow       portsrepo.LedgerUnitOfWork
	accounts  portsrepo.AccountReader
	txns      portsrepo.TransactionReader
	catalog   domain.CostCatalog
	cache     portsrepo.BalanceCache
	publisher portssvc.LedgerEventPublisher
	metrics   portssvc.LedgerMetrics

	maxRetries      uint64
	initialInterval time.Duration
	now             func() time.Time
}

// LedgerServiceOption is a functional option for configuring the ledger service
type LedgerServiceOption func(*LedgerService)

// WithBalanceCache enables the read-through balance cache.
func WithBalanceCache(cache portsrepo.BalanceCache) LedgerServiceOption {
	return func(s *LedgerService) {
		s.cache = cache
	}
}

// WithEventPublisher publishes every committed transaction.
func WithEventPublisher(publisher portssvc.LedgerEventPublisher) LedgerServiceOption {
	return func(s *LedgerService) {
		s.publisher = publisher
	}
}

// WithLedgerMetrics records operation outcomes, retries and moved credits.
func WithLedgerMetrics(metrics portssvc.LedgerMetrics) LedgerServiceOption {
	return func(s *LedgerService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithRetryPolicy bounds how often a conflicting unit of work is retried.
// A zero maxRetries disables retrying.
func WithRetryPolicy(maxRetries uint64, initialInterval time.Duration) LedgerServiceOption {
	return func(s *LedgerService) {
		s.maxRetries = maxRetries
		if initialInterval > 0 {
			s.initialInterval = initialInterval
		}
	}
}

// WithCostCatalog replaces the default price list.
func WithCostCatalog(catalog domain.CostCatalog) LedgerServiceOption {
	return func(s *LedgerService) {
		s.catalog = catalog
	}
}

// WithClock overrides the time source used for audit fields.
func WithClock(now func() time.Time) LedgerServiceOption {
	return func(s *LedgerService) {
		s.now = now
	}
}

// NewLedgerService creates a new ledger service with the provided options
func NewLedgerService(uow portsrepo.LedgerUnitOfWork, accounts portsrepo.AccountReader, txns portsrepo.TransactionReader, options ...LedgerServiceOption) *LedgerService {
	svc := &LedgerService{
		uow:             uow,
		accounts:        accounts,
		txns:            txns,
		catalog:         domain.DefaultCostCatalog(),
		metrics:         noopMetrics{},
		maxRetries:      defaultMaxRetries,
		initialInterval: defaultInitialInterval,
		now:             func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(svc)
	}

	return svc
}

var _ portssvc.LedgerSvcFacade = (*LedgerService)(nil)

// mutation is what one committed unit of work produced.
type mutation struct {
	result    domain.LedgerResult
	account   domain.Account
	committed *domain.Transaction // nil when an earlier transaction was replayed
	original  *domain.Transaction // the replayed transaction
}

// Debit takes cmd.Amount credits from an account for a billable operation.
//
// A debit without an idempotency key is given one for the duration of the call, so a
// retried attempt finds the row of an earlier attempt whose commit reply was lost and
// reports it as this call's own charge.
func (s *LedgerService) Debit(ctx context.Context, cmd portssvc.DebitCommand) (*domain.LedgerResult, error) {
	if err := validateDebit(cmd); err != nil {
		s.metrics.ObserveOperation(opDebit, outcomeOf(err), 0)
		return nil, err
	}

	attemptKey := cmd.IdempotencyKey == ""
	if attemptKey {
		cmd.IdempotencyKey = attemptKeyPrefix + uuid.NewString()
	}

	return s.mutate(ctx, opDebit, cmd.AccountID, func(ctx context.Context, tx portsrepo.LedgerTx) (*mutation, error) {
		account, err := lockAccount(ctx, tx, cmd.AccountID)
		if err != nil {
			return nil, err
		}

		replayed, err := replay(ctx, tx, *account, cmd)
		if err != nil {
			return nil, err
		}
		if replayed != nil {
			if attemptKey {
				replayed.committed = replayed.original
			}
			return replayed, nil
		}

		if account.Balance.LessThan(cmd.Amount) {
			return nil, &apperrors.InsufficientCreditsError{Required: cmd.Amount, Available: account.Balance}
		}

		account.Balance = account.Balance.Sub(cmd.Amount)
		account.TotalUsed = account.TotalUsed.Add(cmd.Amount)
		txn := &domain.Transaction{
			AccountID:      cmd.AccountID,
			Amount:         cmd.Amount.Neg(),
			Kind:           cmd.Kind,
			Description:    cmd.Description,
			Metadata:       cmd.Metadata,
			IdempotencyKey: cmd.IdempotencyKey,
		}
		return s.apply(ctx, tx, *account, txn, cmd.ActorID)
	})
}

// Charge debits the catalog price of cmd.Kind.
func (s *LedgerService) Charge(ctx context.Context, cmd portssvc.ChargeCommand) (*domain.LedgerResult, error) {
	price, ok := s.catalog.Price(cmd.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: operation kind %q has no price", apperrors.ErrValidation, cmd.Kind)
	}
	return s.Debit(ctx, portssvc.DebitCommand{
		AccountID:      cmd.AccountID,
		Amount:         price,
		Kind:           cmd.Kind,
		Description:    cmd.Description,
		Metadata:       cmd.Metadata,
		IdempotencyKey: cmd.IdempotencyKey,
		ActorID:        cmd.ActorID,
	})
}

// AdminAdjust grants (positive amount) or removes (negative amount) credits manually.
// It never changes TotalUsed.
func (s *LedgerService) AdminAdjust(ctx context.Context, cmd portssvc.AdjustCommand) (*domain.LedgerResult, error) {
	if err := validateAdjust(cmd); err != nil {
		s.metrics.ObserveOperation(opAdjust, outcomeOf(err), 0)
		return nil, err
	}

	kind := domain.KindAdminAdd
	if cmd.Amount.IsNegative() {
		kind = domain.KindAdminDeduct
	}

	return s.mutate(ctx, opAdjust, cmd.AccountID, func(ctx context.Context, tx portsrepo.LedgerTx) (*mutation, error) {
		account, err := lockAccount(ctx, tx, cmd.AccountID)
		if err != nil {
			return nil, err
		}

		newBalance := account.Balance.Add(cmd.Amount)
		if newBalance.IsNegative() {
			return nil, fmt.Errorf("%w: balance %s, adjustment %s", apperrors.ErrResultingBalanceNegative,
				account.Balance.String(), cmd.Amount.String())
		}

		account.Balance = newBalance
		txn := &domain.Transaction{
			AccountID:   cmd.AccountID,
			Amount:      cmd.Amount,
			Kind:        kind,
			Description: cmd.Description,
			Metadata:    domain.AdminNote{Note: cmd.Note, AdminID: cmd.ActorID},
		}
		return s.apply(ctx, tx, *account, txn, cmd.ActorID)
	})
}

// Refund credits back a billable debit whose paid action did not happen.
// A debit can be refunded at most once. Like an unkeyed debit, each call carries its own
// attempt key so a retry after a lost commit reply returns the refund it already made.
func (s *LedgerService) Refund(ctx context.Context, cmd portssvc.RefundCommand) (*domain.LedgerResult, error) {
	if strings.TrimSpace(cmd.AccountID) == "" || cmd.OriginalTransactionID <= 0 {
		err := fmt.Errorf("%w: account id and original transaction id are required", apperrors.ErrValidation)
		s.metrics.ObserveOperation(opRefund, outcomeOf(err), 0)
		return nil, err
	}

	attempt := attemptKeyPrefix + uuid.NewString()
	return s.mutate(ctx, opRefund, cmd.AccountID, func(ctx context.Context, tx portsrepo.LedgerTx) (*mutation, error) {
		account, err := lockAccount(ctx, tx, cmd.AccountID)
		if err != nil {
			return nil, err
		}

		// An earlier attempt of this call may have committed before its reply was lost.
		if earlier, err := tx.FindTransactionByIdempotencyKey(ctx, cmd.AccountID, attempt); err == nil {
			return &mutation{
				result: domain.LedgerResult{
					AccountID:     account.AccountID,
					NewBalance:    earlier.BalanceAfter,
					TransactionID: earlier.TransactionID,
				},
				account:   *account,
				committed: earlier,
			}, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}

		original, err := tx.FindTransactionByID(ctx, cmd.AccountID, cmd.OriginalTransactionID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: transaction %d not found for account %s", apperrors.ErrNotFound,
					cmd.OriginalTransactionID, cmd.AccountID)
			}
			return nil, err
		}
		if !original.Kind.IsBillable() || !original.IsDebit() {
			return nil, fmt.Errorf("%w: transaction %d is not a billable debit", apperrors.ErrValidation, original.TransactionID)
		}

		refunded, err := tx.IsRefunded(ctx, original.TransactionID)
		if err != nil {
			return nil, err
		}
		if refunded {
			return nil, apperrors.ErrAlreadyRefunded
		}

		credit := original.Amount.Abs()
		account.Balance = account.Balance.Add(credit)
		refundOf := original.TransactionID
		txn := &domain.Transaction{
			AccountID:      cmd.AccountID,
			Amount:         credit,
			Kind:           domain.KindRefund,
			Description:    fmt.Sprintf("refund of transaction %d", original.TransactionID),
			Metadata:       domain.RefundContext{OriginalTransactionID: refundOf, Reason: cmd.Reason},
			IdempotencyKey: attempt,
			RefundOf:       &refundOf,
		}
		return s.apply(ctx, tx, *account, txn, cmd.ActorID)
	})
}

// GetBalance returns the committed balance of an account, served from the cache when
// a snapshot is present.
func (s *LedgerService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if s.cache != nil {
		cached, err := s.cache.GetBalance(ctx, accountID)
		if err != nil {
			s.LogWarn(ctx, err, "Balance cache read failed, falling back to store", slog.String("account_id", accountID))
		} else if cached != nil {
			return cached.Balance, nil
		}
	}

	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return decimal.Zero, apperrors.ErrAccountNotFound
		}
		s.LogError(ctx, err, "Failed to read account balance", slog.String("account_id", accountID))
		return decimal.Zero, ledgerError(err)
	}

	s.cacheBalance(ctx, *account)
	return account.Balance, nil
}

// VerifyAccount replays the transaction log of an account from zero and compares every
// recorded balance, and the final sum, with what the log implies.
func (s *LedgerService) VerifyAccount(ctx context.Context, accountID string) (*domain.AuditReport, error) {
	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, ledgerError(err)
	}

	txns, err := s.txns.ListAllTransactions(ctx, accountID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load transaction log for audit", slog.String("account_id", accountID))
		return nil, ledgerError(err)
	}

	replayed := accounting.ReplayBalance(txns)
	report := &domain.AuditReport{
		AccountID:        accountID,
		StoredBalance:    account.Balance,
		ReplayedBalance:  replayed.Balance,
		TransactionCount: len(txns),
		FirstMismatchID:  replayed.FirstMismatchID,
	}
	report.Consistent = report.FirstMismatchID == nil && report.ReplayedBalance.Equal(account.Balance)

	if !report.Consistent {
		s.GetLogger(ctx).WarnContext(ctx, "Ledger audit found an inconsistent account",
			slog.String("account_id", accountID),
			slog.String("stored_balance", report.StoredBalance.String()),
			slog.String("replayed_balance", report.ReplayedBalance.String()))
	}
	return report, nil
}

// CostCatalog returns the price list used by Charge.
func (s *LedgerService) CostCatalog() domain.CostCatalog {
	return s.catalog
}

// apply stamps and writes the account update and its transaction record.
func (s *LedgerService) apply(ctx context.Context, tx portsrepo.LedgerTx, account domain.Account, txn *domain.Transaction, actorID string) (*mutation, error) {
	now := s.now()
	account.Version++
	account.LastUpdatedAt = now
	account.LastUpdatedBy = actorID

	txn.BalanceAfter = account.Balance
	txn.CreatedBy = actorID

	if err := tx.UpdateAccountBalance(ctx, account); err != nil {
		return nil, err
	}
	if err := tx.AppendTransaction(ctx, txn); err != nil {
		return nil, err
	}

	return &mutation{
		result: domain.LedgerResult{
			AccountID:     account.AccountID,
			NewBalance:    account.Balance,
			TransactionID: txn.TransactionID,
		},
		account:   account,
		committed: txn,
	}, nil
}

// mutate runs work in a retried unit of work and handles what follows a commit.
func (s *LedgerService) mutate(ctx context.Context, op, accountID string, work func(ctx context.Context, tx portsrepo.LedgerTx) (*mutation, error)) (*domain.LedgerResult, error) {
	start := time.Now()
	logger := s.GetLogger(ctx).With(slog.String("operation", op), slog.String("account_id", accountID))

	var out *mutation
	err := s.retry(ctx, op, func() error {
		return s.uow.RunInTx(ctx, func(ctx context.Context, tx portsrepo.LedgerTx) error {
			m, err := work(ctx, tx)
			if err != nil {
				return err
			}
			out = m
			return nil
		})
	})
	if err != nil {
		err = ledgerError(err)
		s.metrics.ObserveOperation(op, outcomeOf(err), time.Since(start))
		if isBusinessError(err) {
			logger.InfoContext(ctx, "Ledger operation rejected", slog.String("reason", err.Error()))
		} else {
			logger.ErrorContext(ctx, "Ledger operation failed", slog.String("error", err.Error()))
		}
		return nil, err
	}

	if out.committed == nil {
		out.result.Replayed = true
		s.metrics.ObserveOperation(op, "replayed", time.Since(start))
		logger.InfoContext(ctx, "Idempotent ledger request replayed", slog.Int64("transaction_id", out.result.TransactionID))
		return &out.result, nil
	}

	s.afterCommit(ctx, out)
	s.metrics.ObserveOperation(op, "success", time.Since(start))
	logger.InfoContext(ctx, "Ledger operation committed",
		slog.Int64("transaction_id", out.committed.TransactionID),
		slog.String("kind", string(out.committed.Kind)),
		slog.String("amount", out.committed.Amount.String()),
		slog.String("balance_after", out.committed.BalanceAfter.String()))
	return &out.result, nil
}

// retry runs fn until it succeeds, fails permanently, or the retry budget is spent.
func (s *LedgerService) retry(ctx context.Context, op string, fn func() error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.initialInterval
	expBackoff.MaxInterval = maxRetryInterval

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, s.maxRetries), ctx)

	operation := func() error {
		err := fn()
		if err == nil || apperrors.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		s.metrics.IncRetry(op)
		s.LogDebug(ctx, "Retrying ledger unit of work",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.Duration("wait", wait))
	}
	return backoff.RetryNotify(operation, policy, notify)
}

// afterCommit refreshes the cache, publishes the event and counts credits. Failures here
// are logged and never change the committed result.
func (s *LedgerService) afterCommit(ctx context.Context, m *mutation) {
	s.cacheBalance(ctx, m.account)

	if s.publisher != nil {
		if err := s.publisher.PublishTransaction(ctx, *m.committed); err != nil {
			s.LogWarn(ctx, err, "Failed to publish ledger event",
				slog.Int64("transaction_id", m.committed.TransactionID))
		}
	}

	credits, _ := m.committed.Amount.Abs().Float64()
	s.metrics.AddCredits(m.committed.Kind, credits)
}

func (s *LedgerService) cacheBalance(ctx context.Context, account domain.Account) {
	if s.cache == nil {
		return
	}
	snapshot := portsrepo.CachedBalance{Balance: account.Balance, Version: account.Version}
	if err := s.cache.SetBalance(ctx, account.AccountID, snapshot); err != nil {
		s.LogWarn(ctx, err, "Failed to cache balance", slog.String("account_id", account.AccountID))
		if invErr := s.cache.Invalidate(ctx, account.AccountID, account.Version); invErr != nil {
			s.LogWarn(ctx, invErr, "Failed to invalidate cached balance", slog.String("account_id", account.AccountID))
		}
	}
}

func lockAccount(ctx context.Context, tx portsrepo.LedgerTx, accountID string) (*domain.Account, error) {
	account, err := tx.LockAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// replay returns the earlier result of an idempotency key, or nil when the key is unused.
func replay(ctx context.Context, tx portsrepo.LedgerTx, account domain.Account, cmd portssvc.DebitCommand) (*mutation, error) {
	existing, err := tx.FindTransactionByIdempotencyKey(ctx, cmd.AccountID, cmd.IdempotencyKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.Kind != cmd.Kind || !existing.Amount.Equal(cmd.Amount.Neg()) {
		return nil, fmt.Errorf("%w: idempotency key %q was used for a different request", apperrors.ErrValidation, cmd.IdempotencyKey)
	}
	return &mutation{
		result: domain.LedgerResult{
			AccountID:     account.AccountID,
			NewBalance:    existing.BalanceAfter,
			TransactionID: existing.TransactionID,
		},
		account:  account,
		original: existing,
	}, nil
}

func validateDebit(cmd portssvc.DebitCommand) error {
	if strings.TrimSpace(cmd.AccountID) == "" {
		return fmt.Errorf("%w: account id is required", apperrors.ErrValidation)
	}
	if !cmd.Amount.IsPositive() {
		return fmt.Errorf("%w: debit amount must be positive, got %s", apperrors.ErrValidation, cmd.Amount.String())
	}
	if !domain.FitsCreditScale(cmd.Amount) {
		return fmt.Errorf("%w: debit amount %s has more than %d decimal places", apperrors.ErrValidation, cmd.Amount.String(), domain.CreditScale)
	}
	if !cmd.Kind.IsBillable() {
		return fmt.Errorf("%w: operation kind %q is not billable", apperrors.ErrValidation, cmd.Kind)
	}
	if err := domain.ValidateMetadata(cmd.Kind, cmd.Metadata); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return nil
}

func validateAdjust(cmd portssvc.AdjustCommand) error {
	if strings.TrimSpace(cmd.AccountID) == "" {
		return fmt.Errorf("%w: account id is required", apperrors.ErrValidation)
	}
	if !domain.FitsCreditScale(cmd.Amount) {
		return fmt.Errorf("%w: adjustment %s has more than %d decimal places", apperrors.ErrValidation, cmd.Amount.String(), domain.CreditScale)
	}
	return nil
}

// ledgerError narrows err to the ledger error set. Anything unrecognised is reported as a
// storage failure.
func ledgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isBusinessError(err),
		errors.Is(err, apperrors.ErrConcurrencyConflict),
		errors.Is(err, apperrors.ErrStorageFailure):
		return err
	}
	return fmt.Errorf("%w: %v", apperrors.ErrStorageFailure, err)
}

func isBusinessError(err error) bool {
	return errors.Is(err, apperrors.ErrAccountNotFound) ||
		errors.Is(err, apperrors.ErrInsufficientCredits) ||
		errors.Is(err, apperrors.ErrResultingBalanceNegative) ||
		errors.Is(err, apperrors.ErrAlreadyRefunded) ||
		errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrNotFound)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, apperrors.ErrResultingBalanceNegative):
		return "negative_balance"
	case errors.Is(err, apperrors.ErrAlreadyRefunded):
		return "already_refunded"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "storage_failure"
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}
func (noopMetrics) IncRetry(string)                                {}
func (noopMetrics) AddCredits(domain.OperationKind, float64)       {}
