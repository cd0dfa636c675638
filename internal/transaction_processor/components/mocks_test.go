package components

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/domain/audit"
	"github.com/settlement-ledger/internal/domain/outbox"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) GetByKey(ctx context.Context, key string) (*account.Account, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepo) LockAccounts(ctx context.Context, keys ...string) ([]*account.Account, error) {
	args := m.Called(ctx, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepo) MoveVaultToWallet(ctx context.Context, key string, amount decimal.Decimal) error {
	return m.Called(ctx, key, amount).Error(0)
}

func (m *MockAccountRepo) MoveWalletToVault(ctx context.Context, key string, amount decimal.Decimal) error {
	return m.Called(ctx, key, amount).Error(0)
}

func (m *MockAccountRepo) DebitWallet(ctx context.Context, key string, amount decimal.Decimal) error {
	return m.Called(ctx, key, amount).Error(0)
}

func (m *MockAccountRepo) CreditWallet(ctx context.Context, key string, amount decimal.Decimal) error {
	return m.Called(ctx, key, amount).Error(0)
}

func (m *MockAccountRepo) WithTx(tx pgx.Tx) account.Repository {
	return m
}

type MockAuditRepo struct {
	mock.Mock
}

func (m *MockAuditRepo) Create(ctx context.Context, record *audit.Record) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockAuditRepo) CountByTransactionID(ctx context.Context, id uuid.UUID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockAuditRepo) WithTx(tx pgx.Tx) audit.Repository {
	return m
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
