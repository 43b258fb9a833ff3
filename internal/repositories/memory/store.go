// Package memory is an in-process implementation of the repository ports.
// Writes to one account are serialized with a per-account lock, which is only sound when
// every writer for that account runs in the same process; use the pgsql package otherwise.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/apperrors"
	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
)

// Store keeps accounts and the transaction log in memory.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]domain.Account
	transactions []domain.Transaction // commit order

	locksMu sync.Mutex
	locks   map[string]*accountLock

	nextID atomic.Int64
	now    func() time.Time

	faultsMu         sync.Mutex
	commitFaults     []error
	lostCommitFaults []error
}

// accountLock serializes writers of one account. refs counts the transactions holding or
// waiting for it; the lock is dropped from the map when refs reaches zero.
type accountLock struct {
	ch   chan struct{}
	refs int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts: make(map[string]domain.Account),
		locks:    make(map[string]*accountLock),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRepositoryProvider returns a provider where every port is served by one Store.
func NewRepositoryProvider(s *Store) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		AccountRepo:     s,
		TransactionRepo: s,
		LedgerUoW:       s,
		ReportingRepo:   s,
	}
}

var (
	_ portsrepo.AccountRepositoryFacade = (*Store)(nil)
	_ portsrepo.TransactionReader       = (*Store)(nil)
	_ portsrepo.LedgerUnitOfWork        = (*Store)(nil)
	_ portsrepo.ReportingRepository     = (*Store)(nil)
)

// FailNextCommits makes the next commits fail with the given errors, one per commit.
// The failing unit of work is rolled back as a real storage failure would be.
func (s *Store) FailNextCommits(errs ...error) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	s.commitFaults = append(s.commitFaults, errs...)
}

// FailCommitsAfterApplying makes the next commits apply their writes and then report the
// given errors, one per commit, as when a connection drops before the commit reply arrives.
func (s *Store) FailCommitsAfterApplying(errs ...error) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	s.lostCommitFaults = append(s.lostCommitFaults, errs...)
}

func popFault(mu *sync.Mutex, faults *[]error) error {
	mu.Lock()
	defer mu.Unlock()
	if len(*faults) == 0 {
		return nil
	}
	err := (*faults)[0]
	*faults = (*faults)[1:]
	return err
}

func (s *Store) acquireLock(accountID string) *accountLock {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[accountID]
	if !ok {
		lock = &accountLock{ch: make(chan struct{}, 1)}
		s.locks[accountID] = lock
	}
	lock.refs++
	return lock
}

func (s *Store) dropLock(accountID string, lock *accountLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, accountID)
	}
}

// SaveAccount inserts a new account.
func (s *Store) SaveAccount(_ context.Context, account domain.Account) error {
	if account.Balance.IsNegative() || account.TotalUsed.IsNegative() {
		return fmt.Errorf("%w: account %s violates balance constraints", apperrors.ErrValidation, account.AccountID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.AccountID]; exists {
		return fmt.Errorf("%w: account with ID %s already exists", apperrors.ErrDuplicate, account.AccountID)
	}
	s.accounts[account.AccountID] = account
	return nil
}

// FindAccountByID returns the committed state of an account.
func (s *Store) FindAccountByID(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &acc, nil
}

// ListTransactions returns a page of an account's transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, accountID string, limit int, beforeID *int64) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.Transaction{}
	for i := len(s.transactions) - 1; i >= 0 && len(result) < limit; i-- {
		txn := s.transactions[i]
		if txn.AccountID != accountID {
			continue
		}
		if beforeID != nil && txn.TransactionID >= *beforeID {
			continue
		}
		result = append(result, txn)
	}
	return result, nil
}

// ListAllTransactions returns the full log of an account in commit order.
func (s *Store) ListAllTransactions(_ context.Context, accountID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.Transaction{}
	for _, txn := range s.transactions {
		if txn.AccountID == accountID {
			result = append(result, txn)
		}
	}
	return result, nil
}

// GetUsageByKind sums debited credits per billable kind in [from, to).
func (s *Store) GetUsageByKind(_ context.Context, accountID string, from, to time.Time) ([]domain.KindUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKind := map[domain.OperationKind]*domain.KindUsage{}
	for _, txn := range s.transactions {
		if !countsAsUsage(txn, accountID, from, to) {
			continue
		}
		u, ok := byKind[txn.Kind]
		if !ok {
			u = &domain.KindUsage{Kind: txn.Kind}
			byKind[txn.Kind] = u
		}
		u.Credits = u.Credits.Add(txn.Amount.Neg())
		u.Count++
	}

	result := make([]domain.KindUsage, 0, len(byKind))
	for _, u := range byKind {
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Kind < result[j].Kind })
	return result, nil
}

// GetUsageByDay sums debited credits per UTC day in [from, to), oldest first.
func (s *Store) GetUsageByDay(_ context.Context, accountID string, from, to time.Time) ([]domain.DailyUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := map[time.Time]*domain.DailyUsage{}
	for _, txn := range s.transactions {
		if !countsAsUsage(txn, accountID, from, to) {
			continue
		}
		created := txn.CreatedAt.UTC()
		day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
		u, ok := byDay[day]
		if !ok {
			u = &domain.DailyUsage{Day: day}
			byDay[day] = u
		}
		u.Credits = u.Credits.Add(txn.Amount.Neg())
		u.Count++
	}

	result := make([]domain.DailyUsage, 0, len(byDay))
	for _, u := range byDay {
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day.Before(result[j].Day) })
	return result, nil
}

func countsAsUsage(txn domain.Transaction, accountID string, from, to time.Time) bool {
	return txn.AccountID == accountID &&
		txn.Kind.IsBillable() &&
		txn.Amount.IsNegative() &&
		!txn.CreatedAt.Before(from) &&
		txn.CreatedAt.Before(to)
}

// RunInTx runs fn with staged writes that are applied only when fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx portsrepo.LedgerTx) error) error {
	tx := &memTx{
		store:  s,
		held:   map[string]*accountLock{},
		staged: map[string]domain.Account{},
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := popFault(&s.faultsMu, &s.commitFaults); err != nil {
		return err
	}
	tx.commit()
	return popFault(&s.faultsMu, &s.lostCommitFaults)
}

// memTx is the LedgerTx of one RunInTx call.
type memTx struct {
	store    *Store
	held     map[string]*accountLock
	staged   map[string]domain.Account
	appended []domain.Transaction
}

var _ portsrepo.LedgerTx = (*memTx)(nil)

func (t *memTx) LockAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	if _, ok := t.held[accountID]; !ok {
		lock := t.store.acquireLock(accountID)
		select {
		case lock.ch <- struct{}{}:
			t.held[accountID] = lock
		case <-ctx.Done():
			t.store.dropLock(accountID, lock)
			return nil, ctx.Err()
		}
	}

	if acc, ok := t.staged[accountID]; ok {
		return &acc, nil
	}
	return t.store.FindAccountByID(ctx, accountID)
}

func (t *memTx) FindTransactionByIdempotencyKey(_ context.Context, accountID string, key string) (*domain.Transaction, error) {
	match := func(txn domain.Transaction) bool {
		return txn.AccountID == accountID && txn.IdempotencyKey == key
	}
	if txn, ok := t.find(match); ok {
		return &txn, nil
	}
	return nil, apperrors.ErrNotFound
}

func (t *memTx) FindTransactionByID(_ context.Context, accountID string, transactionID int64) (*domain.Transaction, error) {
	match := func(txn domain.Transaction) bool {
		return txn.AccountID == accountID && txn.TransactionID == transactionID
	}
	if txn, ok := t.find(match); ok {
		return &txn, nil
	}
	return nil, apperrors.ErrNotFound
}

func (t *memTx) IsRefunded(_ context.Context, transactionID int64) (bool, error) {
	_, ok := t.find(func(txn domain.Transaction) bool {
		return txn.RefundOf != nil && *txn.RefundOf == transactionID
	})
	return ok, nil
}

func (t *memTx) find(match func(domain.Transaction) bool) (domain.Transaction, bool) {
	for _, txn := range t.appended {
		if match(txn) {
			return txn, true
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, txn := range t.store.transactions {
		if match(txn) {
			return txn, true
		}
	}
	return domain.Transaction{}, false
}

func (t *memTx) UpdateAccountBalance(_ context.Context, account domain.Account) error {
	if _, ok := t.held[account.AccountID]; !ok {
		return fmt.Errorf("account %s updated without holding its lock", account.AccountID)
	}
	if account.Balance.IsNegative() || account.TotalUsed.IsNegative() {
		return fmt.Errorf("%w: balance update for account %s rejected by constraint", apperrors.ErrValidation, account.AccountID)
	}
	t.staged[account.AccountID] = account
	return nil
}

func (t *memTx) AppendTransaction(ctx context.Context, txn *domain.Transaction) error {
	if _, ok := t.held[txn.AccountID]; !ok {
		return fmt.Errorf("transaction appended for account %s without holding its lock", txn.AccountID)
	}
	if txn.BalanceAfter.IsNegative() || !txn.Kind.IsValid() {
		return fmt.Errorf("%w: transaction for account %s rejected by constraint", apperrors.ErrValidation, txn.AccountID)
	}
	if txn.RefundOf != nil {
		refunded, _ := t.IsRefunded(ctx, *txn.RefundOf)
		if refunded {
			return apperrors.ErrAlreadyRefunded
		}
	}
	if txn.IdempotencyKey != "" {
		if _, err := t.FindTransactionByIdempotencyKey(ctx, txn.AccountID, txn.IdempotencyKey); err == nil {
			return fmt.Errorf("%w: idempotency key %q already used", apperrors.ErrConcurrencyConflict, txn.IdempotencyKey)
		}
	}

	txn.TransactionID = t.store.nextID.Add(1)
	txn.CreatedAt = t.store.now()
	t.appended = append(t.appended, *txn)
	return nil
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id, acc := range t.staged {
		t.store.accounts[id] = acc
	}
	t.store.transactions = append(t.store.transactions, t.appended...)
}

func (t *memTx) release() {
	for id, lock := range t.held {
		<-lock.ch
		t.store.dropLock(id, lock)
		delete(t.held, id)
	}
}
