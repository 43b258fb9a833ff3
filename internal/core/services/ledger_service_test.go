package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/apperrors"
	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/credit_ledger_app/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_app/internal/core/services"
	"github.com/SscSPs/credit_ledger_app/internal/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockBalanceCache is a mock type for the BalanceCache interface
type MockBalanceCache struct {
	mock.Mock
}

func (m *MockBalanceCache) GetBalance(ctx context.Context, accountID string) (*portsrepo.CachedBalance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portsrepo.CachedBalance), args.Error(1)
}

func (m *MockBalanceCache) SetBalance(ctx context.Context, accountID string, snapshot portsrepo.CachedBalance) error {
	args := m.Called(ctx, accountID, snapshot)
	return args.Error(0)
}

func (m *MockBalanceCache) Invalidate(ctx context.Context, accountID string, version int64) error {
	args := m.Called(ctx, accountID, version)
	return args.Error(0)
}

// MockEventPublisher is a mock type for the LedgerEventPublisher interface
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishTransaction(ctx context.Context, txn domain.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// recordingMetrics counts what the ledger reports.
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	retries  int
	credits  map[domain.OperationKind]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[string]int{}, credits: map[domain.OperationKind]float64{}}
}

func (r *recordingMetrics) ObserveOperation(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[op+"/"+outcome]++
}

func (r *recordingMetrics) IncRetry(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *recordingMetrics) AddCredits(kind domain.OperationKind, credits float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credits[kind] += credits
}

// --- Test Suite Setup ---

type LedgerServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	metrics *recordingMetrics
	service *services.LedgerService
}

func (suite *LedgerServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = memory.NewStore()
	suite.metrics = newRecordingMetrics()
	suite.service = suite.newService()
}

func (suite *LedgerServiceTestSuite) newService(opts ...services.LedgerServiceOption) *services.LedgerService {
	base := []services.LedgerServiceOption{
		services.WithRetryPolicy(3, time.Millisecond),
		services.WithLedgerMetrics(suite.metrics),
	}
	return services.NewLedgerService(suite.store, suite.store, suite.store, append(base, opts...)...)
}

func (suite *LedgerServiceTestSuite) createAccount(accountID string, credits int64) {
	err := suite.store.SaveAccount(suite.ctx, domain.Account{AccountID: accountID, Name: "Tenant " + accountID})
	suite.Require().NoError(err)
	if credits > 0 {
		_, err = suite.service.AdminAdjust(suite.ctx, portssvc.AdjustCommand{
			AccountID:   accountID,
			Amount:      decimal.NewFromInt(credits),
			Description: "initial grant",
			ActorID:     "admin-1",
		})
		suite.Require().NoError(err)
	}
}

func (suite *LedgerServiceTestSuite) balanceOf(accountID string) decimal.Decimal {
	acc, err := suite.store.FindAccountByID(suite.ctx, accountID)
	suite.Require().NoError(err)
	return acc.Balance
}

func (suite *LedgerServiceTestSuite) history(accountID string) []domain.Transaction {
	txns, err := suite.store.ListAllTransactions(suite.ctx, accountID)
	suite.Require().NoError(err)
	return txns
}

func (suite *LedgerServiceTestSuite) debit(accountID string, amount int64, kind domain.OperationKind) (*domain.LedgerResult, error) {
	return suite.service.Debit(suite.ctx, portssvc.DebitCommand{
		AccountID: accountID,
		Amount:    decimal.NewFromInt(amount),
		Kind:      kind,
		ActorID:   "user-1",
	})
}

func (suite *LedgerServiceTestSuite) assertConsistent(accountID string) {
	report, err := suite.service.VerifyAccount(suite.ctx, accountID)
	suite.Require().NoError(err)
	suite.True(report.Consistent, "audit should find the account consistent")
	suite.Nil(report.FirstMismatchID)
}

// --- Test Cases ---

func (suite *LedgerServiceTestSuite) TestDebitAdjustWalkthrough() {
	suite.createAccount("acc-1", 12)

	res, err := suite.debit("acc-1", 10, domain.KindBlogGeneration)
	suite.Require().NoError(err)
	suite.True(res.NewBalance.Equal(decimal.NewFromInt(2)))
	suite.False(res.Replayed)

	txns := suite.history("acc-1")
	suite.Require().Len(txns, 2)
	suite.True(txns[1].Amount.Equal(decimal.NewFromInt(-10)))
	suite.True(txns[1].BalanceAfter.Equal(decimal.NewFromInt(2)))
	suite.Equal(res.TransactionID, txns[1].TransactionID)

	_, err = suite.debit("acc-1", 5, domain.KindImageGeneration)
	suite.ErrorIs(err, apperrors.ErrInsufficientCredits)
	var insufficient *apperrors.InsufficientCreditsError
	suite.Require().ErrorAs(err, &insufficient)
	suite.True(insufficient.Required.Equal(decimal.NewFromInt(5)))
	suite.True(insufficient.Available.Equal(decimal.NewFromInt(2)))
	suite.True(suite.balanceOf("acc-1").Equal(decimal.NewFromInt(2)))
	suite.Len(suite.history("acc-1"), 2, "a rejected debit must not be recorded")

	res, err = suite.service.AdminAdjust(suite.ctx, portssvc.AdjustCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(20), ActorID: "admin-1"})
	suite.Require().NoError(err)
	suite.True(res.NewBalance.Equal(decimal.NewFromInt(22)))

	_, err = suite.service.AdminAdjust(suite.ctx, portssvc.AdjustCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(-30), ActorID: "admin-1"})
	suite.ErrorIs(err, apperrors.ErrResultingBalanceNegative)
	suite.True(suite.balanceOf("acc-1").Equal(decimal.NewFromInt(22)))

	acc, err := suite.store.FindAccountByID(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.True(acc.TotalUsed.Equal(decimal.NewFromInt(10)), "adjustments never change total used")
	suite.assertConsistent("acc-1")

	suite.Equal(1, suite.metrics.outcomes["debit/insufficient_credits"])
	suite.Equal(1, suite.metrics.outcomes["admin_adjust/negative_balance"])
}

func (suite *LedgerServiceTestSuite) TestDebit_ExactBalanceReachesZero() {
	suite.createAccount("acc-1", 10)

	res, err := suite.debit("acc-1", 10, domain.KindBlogGeneration)
	suite.Require().NoError(err)
	suite.True(res.NewBalance.IsZero())
}

func (suite *LedgerServiceTestSuite) TestDebit_Validation() {
	suite.createAccount("acc-1", 50)

	tests := []struct {
		name string
		cmd  portssvc.DebitCommand
	}{
		{"zero amount", portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.Zero, Kind: domain.KindImageEdit}},
		{"negative amount", portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(-3), Kind: domain.KindImageEdit}},
		{"admin kind", portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(1), Kind: domain.KindAdminAdd}},
		{"unknown kind", portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(1), Kind: "video_generation"}},
		{"metadata for another kind", portssvc.DebitCommand{
			AccountID: "acc-1", Amount: decimal.NewFromInt(1), Kind: domain.KindBlogGeneration,
			Metadata: domain.ImageContext{ImageID: "img-1"},
		}},
		{"missing account", portssvc.DebitCommand{Amount: decimal.NewFromInt(1), Kind: domain.KindImageEdit}},
		{"five decimal places", portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.RequireFromString("0.00005"), Kind: domain.KindImageEdit}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.service.Debit(suite.ctx, tt.cmd)
			suite.ErrorIs(err, apperrors.ErrValidation)
		})
	}
	suite.True(suite.balanceOf("acc-1").Equal(decimal.NewFromInt(50)))
	suite.Len(suite.history("acc-1"), 1)
}

func (suite *LedgerServiceTestSuite) TestDebit_AccountNotFound() {
	_, err := suite.debit("missing", 1, domain.KindImageGeneration)
	suite.ErrorIs(err, apperrors.ErrAccountNotFound)

	_, err = suite.service.AdminAdjust(suite.ctx, portssvc.AdjustCommand{AccountID: "missing", Amount: decimal.NewFromInt(5)})
	suite.ErrorIs(err, apperrors.ErrAccountNotFound)
}

func (suite *LedgerServiceTestSuite) TestCharge_UsesCatalogPrice() {
	catalog, err := domain.NewCostCatalog(map[domain.OperationKind]decimal.Decimal{
		domain.KindImageEdit: decimal.RequireFromString("2.5"),
	})
	suite.Require().NoError(err)
	suite.service = suite.newService(services.WithCostCatalog(catalog))
	suite.createAccount("acc-1", 20)

	res, err := suite.service.Charge(suite.ctx, portssvc.ChargeCommand{
		AccountID: "acc-1",
		Kind:      domain.KindImageEdit,
		Metadata:  domain.ImageContext{ImageID: "img-7"},
	})
	suite.Require().NoError(err)
	suite.True(res.NewBalance.Equal(decimal.RequireFromString("17.5")))

	txns := suite.history("acc-1")
	suite.Equal(domain.ImageContext{ImageID: "img-7"}, txns[len(txns)-1].Metadata)

	_, err = suite.service.Charge(suite.ctx, portssvc.ChargeCommand{AccountID: "acc-1", Kind: domain.KindRefund})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *LedgerServiceTestSuite) TestDebit_IdempotentReplay() {
	suite.createAccount("acc-1", 30)
	cmd := portssvc.DebitCommand{
		AccountID:      "acc-1",
		Amount:         decimal.NewFromInt(10),
		Kind:           domain.KindBlogGeneration,
		IdempotencyKey: "req-123",
	}

	first, err := suite.service.Debit(suite.ctx, cmd)
	suite.Require().NoError(err)
	suite.False(first.Replayed)

	// A later debit changes the balance; the replay must still report the original result.
	_, err = suite.debit("acc-1", 5, domain.KindImageEdit)
	suite.Require().NoError(err)

	second, err := suite.service.Debit(suite.ctx, cmd)
	suite.Require().NoError(err)
	suite.True(second.Replayed)
	suite.Equal(first.TransactionID, second.TransactionID)
	suite.True(second.NewBalance.Equal(decimal.NewFromInt(20)))
	suite.True(suite.balanceOf("acc-1").Equal(decimal.NewFromInt(15)))
	suite.Len(suite.history("acc-1"), 3)

	cmd.Amount = decimal.NewFromInt(11)
	_, err = suite.service.Debit(suite.ctx, cmd)
	suite.ErrorIs(err, apperrors.ErrValidation, "a reused key with a different amount is rejected")
	suite.Equal(1, suite.metrics.outcomes["debit/replayed"])
}

func (suite *LedgerServiceTestSuite) TestDebit_ConcurrentOverBudget() {
	suite.createAccount("acc-1", 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = suite.debit("acc-1", 10, domain.KindBlogGeneration)
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrInsufficientCredits):
			rejected++
		default:
			suite.Failf("unexpected error", "%v", err)
		}
	}
	suite.Equal(1, succeeded)
	suite.Equal(1, rejected)
	suite.True(suite.balanceOf("acc-1").IsZero())
	suite.assertConsistent("acc-1")
}

func (suite *LedgerServiceTestSuite) TestDebit_ManyConcurrentWritersConserveCredits() {
	suite.createAccount("acc-1", 30)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := suite.debit("acc-1", 1, domain.KindImageGeneration); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	suite.Equal(30, succeeded)
	suite.True(suite.balanceOf("acc-1").IsZero())
	suite.Len(suite.history("acc-1"), 31)

	acc, err := suite.store.FindAccountByID(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.True(acc.TotalUsed.Equal(decimal.NewFromInt(30)))
	suite.assertConsistent("acc-1")
}

func (suite *LedgerServiceTestSuite) TestRetry_TransientConflictIsRetried() {
	suite.createAccount("acc-1", 10)
	suite.store.FailNextCommits(apperrors.ErrConcurrencyConflict, apperrors.ErrStorageFailure)

	res, err := suite.debit("acc-1", 4, domain.KindImageEdit)
	suite.Require().NoError(err)
	suite.True(res.NewBalance.Equal(decimal.NewFromInt(6)))
	suite.Len(suite.history("acc-1"), 2, "failed attempts leave nothing behind")
	suite.Equal(2, suite.metrics.retries)
}

func (suite *LedgerServiceTestSuite) TestRetry_ExhaustedBudget() {
	suite.createAccount("acc-1", 10)
	suite.store.FailNextCommits(
		apperrors.ErrConcurrencyConflict,
		apperrors.ErrConcurrencyConflict,
		apperrors.ErrConcurrencyConflict,
		apperrors.ErrConcurrencyConflict,
	)

	_, err := suite.debit("acc-1", 4, domain.KindImageEdit)
	suite.ErrorIs(err, apperrors.ErrConcurrencyConflict)
	suite.True(suite.balanceOf("acc-1").Equal(decimal.NewFromInt(10)))
	suite.Len(suite.history("acc-1"), 1)
	suite.Equal(3, suite.metrics.retries)
}

func (suite *LedgerServiceTestSuite) TestRetry_UnknownFailureIsNotRetried() {
	suite.createAccount("acc-1", 10)
	suite.store.FailNextCommits(errors.New("disk full"))

	_, err := suite.debit("acc-1", 4, domain.KindImageEdit)
	suite.ErrorIs(err, apperrors.ErrStorageFailure)
	suite.Zero(suite.metrics.retries)

	_, err = suite.debit("acc-1", 4, domain.KindImageEdit)
	suite.NoError(err, "the next call commits normally")
}

func (suite *LedgerServiceTestSuite) TestRetry_LostCommitReplyChargesOnce() {
	suite.createAccount("acc-1", 10)
	publisher := new(MockEventPublisher)
	svc := suite.newService(services.WithEventPublisher(publisher))
	publisher.On("PublishTransaction", mock.Anything, mock.MatchedBy(func(txn domain.Transaction) bool {
		return txn.Kind == domain.KindImageEdit && txn.Amount.Equal(decimal.NewFromInt(-4))
	})).Return(nil).Once()

	// The first attempt commits but its caller only sees a transient failure.
	suite.store.FailCommitsAfterApplying(apperrors.ErrStorageFailure)

	res, err := svc.Debit(suite.ctx, portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(4), Kind: domain.KindImageEdit})
	suite.Require().NoError(err)
	suite.False(res.Replayed)
	suite.True(res.NewBalance.Equal(decimal.NewFromInt(6)))
	suite.True(suite.balanceOf("acc-1").Equal(decimal.NewFromInt(6)))

	txns := suite.history("acc-1")
	suite.Require().Len(txns, 2, "the retry must not charge a second time")
	suite.Equal(txns[1].TransactionID, res.TransactionID)
	suite.Equal(1, suite.metrics.retries)
	publisher.AssertExpectations(suite.T())
	suite.assertConsistent("acc-1")
}

func (suite *LedgerServiceTestSuite) TestRetry_LostCommitReplyOnCharge() {
	suite.createAccount("acc-1", 10)
	suite.store.FailCommitsAfterApplying(apperrors.ErrConcurrencyConflict)

	res, err := suite.service.Charge(suite.ctx, portssvc.ChargeCommand{AccountID: "acc-1", Kind: domain.KindImageGeneration})
	suite.Require().NoError(err)
	suite.True(res.NewBalance.Equal(decimal.NewFromInt(9)))
	suite.Len(suite.history("acc-1"), 2)
}

func (suite *LedgerServiceTestSuite) TestRefund() {
	suite.createAccount("acc-1", 12)
	charged, err := suite.debit("acc-1", 10, domain.KindBlogGeneration)
	suite.Require().NoError(err)

	res, err := suite.service.Refund(suite.ctx, portssvc.RefundCommand{
		AccountID:             "acc-1",
		OriginalTransactionID: charged.TransactionID,
		Reason:                "generation timed out",
		ActorID:               "user-1",
	})
	suite.Require().NoError(err)
	suite.True(res.NewBalance.Equal(decimal.NewFromInt(12)))

	txns := suite.history("acc-1")
	refund := txns[len(txns)-1]
	suite.Equal(domain.KindRefund, refund.Kind)
	suite.True(refund.Amount.Equal(decimal.NewFromInt(10)))
	suite.Require().NotNil(refund.RefundOf)
	suite.Equal(charged.TransactionID, *refund.RefundOf)
	suite.Equal(domain.RefundContext{OriginalTransactionID: charged.TransactionID, Reason: "generation timed out"}, refund.Metadata)

	acc, err := suite.store.FindAccountByID(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.True(acc.TotalUsed.Equal(decimal.NewFromInt(10)), "refunds do not lower total used")

	_, err = suite.service.Refund(suite.ctx, portssvc.RefundCommand{AccountID: "acc-1", OriginalTransactionID: charged.TransactionID})
	suite.ErrorIs(err, apperrors.ErrAlreadyRefunded)
	suite.True(suite.balanceOf("acc-1").Equal(decimal.NewFromInt(12)))
	suite.assertConsistent("acc-1")
}

func (suite *LedgerServiceTestSuite) TestRefund_LostCommitReplyReturnsTheRefund() {
	suite.createAccount("acc-1", 10)
	charged, err := suite.debit("acc-1", 10, domain.KindBlogGeneration)
	suite.Require().NoError(err)
	suite.store.FailCommitsAfterApplying(apperrors.ErrStorageFailure)

	res, err := suite.service.Refund(suite.ctx, portssvc.RefundCommand{AccountID: "acc-1", OriginalTransactionID: charged.TransactionID})
	suite.Require().NoError(err, "the committed refund is reported, not ErrAlreadyRefunded")
	suite.True(res.NewBalance.Equal(decimal.NewFromInt(10)))
	txns := suite.history("acc-1")
	suite.Require().Len(txns, 3)
	suite.Equal(txns[2].TransactionID, res.TransactionID)
	suite.assertConsistent("acc-1")
}

func (suite *LedgerServiceTestSuite) TestRefund_Rejections() {
	suite.createAccount("acc-1", 12)
	suite.createAccount("acc-2", 12)
	grant := suite.history("acc-1")[0]
	charged, err := suite.debit("acc-2", 1, domain.KindImageGeneration)
	suite.Require().NoError(err)

	_, err = suite.service.Refund(suite.ctx, portssvc.RefundCommand{AccountID: "acc-1", OriginalTransactionID: grant.TransactionID})
	suite.ErrorIs(err, apperrors.ErrValidation, "admin grants are not refundable")

	_, err = suite.service.Refund(suite.ctx, portssvc.RefundCommand{AccountID: "acc-1", OriginalTransactionID: charged.TransactionID})
	suite.ErrorIs(err, apperrors.ErrNotFound, "a debit of another account is not visible")

	_, err = suite.service.Refund(suite.ctx, portssvc.RefundCommand{AccountID: "acc-1", OriginalTransactionID: 9999})
	suite.ErrorIs(err, apperrors.ErrNotFound)

	_, err = suite.service.Refund(suite.ctx, portssvc.RefundCommand{AccountID: "acc-1"})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *LedgerServiceTestSuite) TestRefund_ConcurrentRefundsApplyOnce() {
	suite.createAccount("acc-1", 10)
	charged, err := suite.debit("acc-1", 10, domain.KindBlogGeneration)
	suite.Require().NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = suite.service.Refund(suite.ctx, portssvc.RefundCommand{AccountID: "acc-1", OriginalTransactionID: charged.TransactionID})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			suite.ErrorIs(err, apperrors.ErrAlreadyRefunded)
		}
	}
	suite.Equal(1, succeeded)
	suite.True(suite.balanceOf("acc-1").Equal(decimal.NewFromInt(10)))
}

func (suite *LedgerServiceTestSuite) TestAdminAdjust_ZeroAndDeduct() {
	suite.createAccount("acc-1", 5)

	_, err := suite.service.AdminAdjust(suite.ctx, portssvc.AdjustCommand{AccountID: "acc-1", Amount: decimal.Zero, Note: "noop", ActorID: "admin-1"})
	suite.Require().NoError(err)
	_, err = suite.service.AdminAdjust(suite.ctx, portssvc.AdjustCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(-5), Note: "chargeback", ActorID: "admin-1"})
	suite.Require().NoError(err)

	txns := suite.history("acc-1")
	suite.Require().Len(txns, 3)
	suite.Equal(domain.KindAdminAdd, txns[1].Kind)
	suite.Equal(domain.KindAdminDeduct, txns[2].Kind)
	suite.Equal(domain.AdminNote{Note: "chargeback", AdminID: "admin-1"}, txns[2].Metadata)
	suite.True(suite.balanceOf("acc-1").IsZero())
	suite.assertConsistent("acc-1")
}

func (suite *LedgerServiceTestSuite) TestAdminAdjust_RejectsExcessPrecision() {
	suite.createAccount("acc-1", 5)

	_, err := suite.service.AdminAdjust(suite.ctx, portssvc.AdjustCommand{AccountID: "acc-1", Amount: decimal.RequireFromString("1.00001"), ActorID: "admin-1"})
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.AdminAdjust(suite.ctx, portssvc.AdjustCommand{AccountID: "acc-1", Amount: decimal.RequireFromString("-0.0001"), ActorID: "admin-1"})
	suite.Require().NoError(err, "four decimal places fit the ledger")
	suite.True(suite.balanceOf("acc-1").Equal(decimal.RequireFromString("4.9999")))
	suite.Len(suite.history("acc-1"), 2)
	suite.assertConsistent("acc-1")
}

func (suite *LedgerServiceTestSuite) TestGetBalance_ReadThroughCache() {
	suite.createAccount("acc-1", 7)
	cache := new(MockBalanceCache)
	svc := suite.newService(services.WithBalanceCache(cache))

	cache.On("GetBalance", mock.Anything, "acc-1").Return(nil, nil).Once()
	cache.On("SetBalance", mock.Anything, "acc-1", mock.MatchedBy(func(s portsrepo.CachedBalance) bool {
		return s.Balance.Equal(decimal.NewFromInt(7)) && s.Version == 1
	})).Return(nil).Once()

	balance, err := svc.GetBalance(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.True(balance.Equal(decimal.NewFromInt(7)))

	cache.On("GetBalance", mock.Anything, "acc-1").Return(&portsrepo.CachedBalance{Balance: decimal.NewFromInt(7), Version: 1}, nil).Once()
	balance, err = svc.GetBalance(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.True(balance.Equal(decimal.NewFromInt(7)))

	cache.AssertExpectations(suite.T())
}

func (suite *LedgerServiceTestSuite) TestGetBalance_CacheFailureFallsBackToStore() {
	suite.createAccount("acc-1", 3)
	cache := new(MockBalanceCache)
	svc := suite.newService(services.WithBalanceCache(cache))

	cache.On("GetBalance", mock.Anything, "acc-1").Return(nil, errors.New("connection refused"))
	cache.On("GetBalance", mock.Anything, "missing").Return(nil, nil)
	cache.On("SetBalance", mock.Anything, "acc-1", mock.Anything).Return(errors.New("connection refused"))
	cache.On("Invalidate", mock.Anything, "acc-1", int64(1)).Return(nil)

	balance, err := svc.GetBalance(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.True(balance.Equal(decimal.NewFromInt(3)))

	_, err = svc.GetBalance(suite.ctx, "missing")
	suite.ErrorIs(err, apperrors.ErrAccountNotFound)
}

func (suite *LedgerServiceTestSuite) TestCommittedMutationsUpdateCacheAndPublish() {
	suite.createAccount("acc-1", 10)
	cache := new(MockBalanceCache)
	publisher := new(MockEventPublisher)
	svc := suite.newService(services.WithBalanceCache(cache), services.WithEventPublisher(publisher))

	cache.On("SetBalance", mock.Anything, "acc-1", mock.MatchedBy(func(s portsrepo.CachedBalance) bool {
		return s.Balance.Equal(decimal.NewFromInt(8)) && s.Version == 2
	})).Return(nil).Once()
	publisher.On("PublishTransaction", mock.Anything, mock.MatchedBy(func(txn domain.Transaction) bool {
		return txn.AccountID == "acc-1" && txn.Amount.Equal(decimal.NewFromInt(-2)) && txn.Kind == domain.KindImageEdit
	})).Return(errors.New("broker unavailable")).Once()

	res, err := svc.Debit(suite.ctx, portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(2), Kind: domain.KindImageEdit})
	suite.Require().NoError(err, "publish failures never fail a committed debit")
	suite.True(res.NewBalance.Equal(decimal.NewFromInt(8)))

	// Rejected debits have no side effects.
	_, err = svc.Debit(suite.ctx, portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(100), Kind: domain.KindImageEdit})
	suite.ErrorIs(err, apperrors.ErrInsufficientCredits)

	cache.AssertExpectations(suite.T())
	publisher.AssertExpectations(suite.T())
	suite.InDelta(2.0, suite.metrics.credits[domain.KindImageEdit], 0.0001)
}

func (suite *LedgerServiceTestSuite) TestFailedCacheRefreshLeavesVersionTombstone() {
	suite.createAccount("acc-1", 10)
	cache := new(MockBalanceCache)
	svc := suite.newService(services.WithBalanceCache(cache))

	cache.On("SetBalance", mock.Anything, "acc-1", mock.Anything).Return(errors.New("i/o timeout")).Once()
	cache.On("Invalidate", mock.Anything, "acc-1", int64(2)).Return(nil).Once()

	res, err := svc.Debit(suite.ctx, portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(2), Kind: domain.KindImageEdit})
	suite.Require().NoError(err, "cache failures never fail a committed debit")
	suite.True(res.NewBalance.Equal(decimal.NewFromInt(8)))
	cache.AssertExpectations(suite.T())
}

func (suite *LedgerServiceTestSuite) TestVerifyAccount() {
	suite.createAccount("acc-1", 12)
	_, err := suite.debit("acc-1", 10, domain.KindBlogGeneration)
	suite.Require().NoError(err)

	report, err := suite.service.VerifyAccount(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.True(report.Consistent)
	suite.Equal(2, report.TransactionCount)
	suite.True(report.ReplayedBalance.Equal(decimal.NewFromInt(2)))
	suite.True(report.StoredBalance.Equal(decimal.NewFromInt(2)))

	// A balance with no transactions behind it cannot be explained by the log.
	err = suite.store.SaveAccount(suite.ctx, domain.Account{AccountID: "acc-2", Balance: decimal.NewFromInt(5)})
	suite.Require().NoError(err)
	report, err = suite.service.VerifyAccount(suite.ctx, "acc-2")
	suite.Require().NoError(err)
	suite.False(report.Consistent)
	suite.True(report.ReplayedBalance.IsZero())

	_, err = suite.service.VerifyAccount(suite.ctx, "missing")
	suite.ErrorIs(err, apperrors.ErrAccountNotFound)
}

func (suite *LedgerServiceTestSuite) TestCanceledContextStopsWaiting() {
	suite.createAccount("acc-1", 10)

	// Hold the account lock so the debit has to wait for it.
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = suite.store.RunInTx(suite.ctx, func(ctx context.Context, tx portsrepo.LedgerTx) error {
			if _, err := tx.LockAccount(ctx, "acc-1"); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(suite.ctx, 20*time.Millisecond)
	defer cancel()
	_, err := suite.service.Debit(ctx, portssvc.DebitCommand{AccountID: "acc-1", Amount: decimal.NewFromInt(1), Kind: domain.KindImageEdit})
	suite.ErrorIs(err, context.DeadlineExceeded)
	suite.True(suite.balanceOf("acc-1").Equal(decimal.NewFromInt(10)))
}

// --- Run Test Suite ---

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}
