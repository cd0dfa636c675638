package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/domain/ledger"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByKey(ctx context.Context, key string) (*account.Account, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) LockAccounts(ctx context.Context, keys ...string) ([]*account.Account, error) {
	args := m.Called(ctx, keys)
	return nil, args.Error(1)
}

func (m *MockAccountRepository) MoveVaultToWallet(ctx context.Context, key string, amount decimal.Decimal) error {
	return m.Called(ctx, key, amount).Error(0)
}

func (m *MockAccountRepository) MoveWalletToVault(ctx context.Context, key string, amount decimal.Decimal) error {
	return m.Called(ctx, key, amount).Error(0)
}

func (m *MockAccountRepository) DebitWallet(ctx context.Context, key string, amount decimal.Decimal) error {
	return m.Called(ctx, key, amount).Error(0)
}

func (m *MockAccountRepository) CreditWallet(ctx context.Context, key string, amount decimal.Decimal) error {
	return m.Called(ctx, key, amount).Error(0)
}

func (m *MockAccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return m
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) InsertIfAbsent(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	args := m.Called(ctx, tx)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) LockByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	return m.GetByIdempotencyKey(ctx, key)
}

func (m *MockTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) MarkConfirmed(ctx context.Context, key string, at time.Time) error {
	return m.Called(ctx, key, at).Error(0)
}

func (m *MockTransactionRepository) MarkFailed(ctx context.Context, key string, reason string, at time.Time) error {
	return m.Called(ctx, key, reason, at).Error(0)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return m
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockLedgerRepository) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Entry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

type MockTransactionCache struct {
	mock.Mock
}

func (m *MockTransactionCache) Get(ctx context.Context, key string) (*transaction.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionCache) Set(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	args := m.Called(ctx, tx)
	return args.Bool(0), args.Error(1)
}
