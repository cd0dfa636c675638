package consumer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/domain/audit"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the relational store with row locks held
// until the end of the unit of work and rollback through an undo log
type memStore struct {
	mu        sync.Mutex
	accounts  map[string]*account.Account
	txs       map[string]*transaction.Transaction
	audits    map[uuid.UUID]int
	mutations int

	rowLocks sync.Map // row id -> *sync.Mutex

	// failAudits makes the next n audit writes fail
	failAudits atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*account.Account),
		txs:      make(map[string]*transaction.Transaction),
		audits:   make(map[uuid.UUID]int),
	}
}

func (s *memStore) seed(key string, vault, wallet int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[key] = &account.Account{
		AccountKey:    key,
		VaultBalance:  decimal.NewFromInt(vault),
		WalletBalance: decimal.NewFromInt(wallet),
	}
}

func (s *memStore) account(key string) account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[key]
}

func (s *memStore) transaction(key string) *transaction.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[key]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

func (s *memStore) auditCount(key string) int {
	t := s.transaction(key)
	if t == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audits[t.ID]
}

func (s *memStore) mutationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations
}

func (s *memStore) total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, a := range s.accounts {
		sum = sum.Add(a.VaultBalance).Add(a.WalletBalance)
	}
	return sum
}

func (s *memStore) rowLock(id string) *sync.Mutex {
	m, _ := s.rowLocks.LoadOrStore(id, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// ExecuteTx implements persistence.UnitOfWork
func (s *memStore) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx := &memTx{store: s, held: make(map[string]*sync.Mutex)}
	defer tx.release()

	if err := fn(tx); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

type memTx struct {
	pgx.Tx
	store *memStore
	held  map[string]*sync.Mutex
	undo  []func()
}

func (t *memTx) lock(id string) {
	if t == nil {
		return
	}
	if _, ok := t.held[id]; ok {
		return
	}
	m := t.store.rowLock(id)
	m.Lock()
	t.held[id] = m
}

func (t *memTx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
}

// onRollback must be called with store.mu held
func (t *memTx) onRollback(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

func asMemTx(tx pgx.Tx) *memTx {
	if m, ok := tx.(*memTx); ok {
		return m
	}
	return nil
}

type memTransactionRepo struct {
	store *memStore
	tx    *memTx
}

func (r *memTransactionRepo) InsertIfAbsent(ctx context.Context, t *transaction.Transaction) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", transaction.ErrInvariantViolation, err)
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[t.IdempotencyKey]; ok {
		return false, nil
	}
	c := *t
	s.txs[t.IdempotencyKey] = &c
	r.tx.onRollback(func() { delete(s.txs, t.IdempotencyKey) })
	return true, nil
}

func (r *memTransactionRepo) LockByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	r.tx.lock("tx:" + key)
	return r.GetByIdempotencyKey(ctx, key)
}

func (r *memTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	t := r.store.transaction(key)
	if t == nil {
		return nil, transaction.ErrTransactionNotFound{IdempotencyKey: key}
	}
	return t, nil
}

func (r *memTransactionRepo) MarkConfirmed(ctx context.Context, key string, at time.Time) error {
	return r.mark(key, shared.TransactionStatusConfirmed, nil, at)
}

func (r *memTransactionRepo) MarkFailed(ctx context.Context, key string, reason string, at time.Time) error {
	return r.mark(key, shared.TransactionStatusFailed, &reason, at)
}

func (r *memTransactionRepo) mark(key string, status shared.TransactionStatus, reason *string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[key]
	if !ok || t.Status != shared.TransactionStatusPending {
		return fmt.Errorf("%w: %s is not pending", transaction.ErrInvariantViolation, key)
	}
	before := *t
	t.Status = status
	t.FailureReason = reason
	t.ConfirmedAt = &at
	r.tx.onRollback(func() { *t = before })
	return nil
}

func (r *memTransactionRepo) WithTx(tx pgx.Tx) transaction.Repository {
	return &memTransactionRepo{store: r.store, tx: asMemTx(tx)}
}

type memAccountRepo struct {
	store *memStore
	tx    *memTx
}

func (r *memAccountRepo) GetByKey(ctx context.Context, key string) (*account.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.accounts[key]
	if !ok {
		return nil, account.ErrAccountNotFound{AccountKey: key}
	}
	c := *a
	return &c, nil
}

func (r *memAccountRepo) LockAccounts(ctx context.Context, keys ...string) ([]*account.Account, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var locked []*account.Account
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		r.tx.lock("acc:" + key)
		a, err := r.GetByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		locked = append(locked, a)
	}
	return locked, nil
}

func (r *memAccountRepo) MoveVaultToWallet(ctx context.Context, key string, amount decimal.Decimal) error {
	return r.apply(key, func(a *account.Account) bool {
		if a.VaultBalance.LessThan(amount) {
			return false
		}
		a.VaultBalance = a.VaultBalance.Sub(amount)
		a.WalletBalance = a.WalletBalance.Add(amount)
		return true
	})
}

func (r *memAccountRepo) MoveWalletToVault(ctx context.Context, key string, amount decimal.Decimal) error {
	return r.apply(key, func(a *account.Account) bool {
		if a.WalletBalance.LessThan(amount) {
			return false
		}
		a.WalletBalance = a.WalletBalance.Sub(amount)
		a.VaultBalance = a.VaultBalance.Add(amount)
		return true
	})
}

func (r *memAccountRepo) DebitWallet(ctx context.Context, key string, amount decimal.Decimal) error {
	return r.apply(key, func(a *account.Account) bool {
		if a.WalletBalance.LessThan(amount) {
			return false
		}
		a.WalletBalance = a.WalletBalance.Sub(amount)
		return true
	})
}

func (r *memAccountRepo) CreditWallet(ctx context.Context, key string, amount decimal.Decimal) error {
	return r.apply(key, func(a *account.Account) bool {
		a.WalletBalance = a.WalletBalance.Add(amount)
		return true
	})
}

func (r *memAccountRepo) apply(key string, change func(a *account.Account) bool) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[key]
	if !ok {
		return account.ErrAccountNotFound{AccountKey: key}
	}
	before := *a
	if !change(a) {
		return account.ErrInsufficientFunds{AccountKey: key}
	}
	s.mutations++
	r.tx.onRollback(func() {
		*a = before
		s.mutations--
	})
	return nil
}

func (r *memAccountRepo) WithTx(tx pgx.Tx) account.Repository {
	return &memAccountRepo{store: r.store, tx: asMemTx(tx)}
}

type memAuditRepo struct {
	store *memStore
	tx    *memTx
}

func (r *memAuditRepo) Create(ctx context.Context, record *audit.Record) error {
	s := r.store
	if s.failAudits.Load() > 0 && s.failAudits.Add(-1) >= 0 {
		return errAuditUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[record.TransactionID]++
	r.tx.onRollback(func() { s.audits[record.TransactionID]-- })
	return nil
}

func (r *memAuditRepo) CountByTransactionID(ctx context.Context, id uuid.UUID) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.audits[id], nil
}

func (r *memAuditRepo) WithTx(tx pgx.Tx) audit.Repository {
	return &memAuditRepo{store: r.store, tx: asMemTx(tx)}
}

var errAuditUnavailable = fmt.Errorf("audit store unavailable")
