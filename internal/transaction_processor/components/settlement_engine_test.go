package components

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pending(typ shared.TransactionType, origin, destination string, amount int64) *transaction.Transaction {
	return transaction.NewPending(&envelope.SettlementRequest{
		IdempotencyKey: "k-" + string(typ),
		Type:           typ,
		OriginKey:      origin,
		DestinationKey: destination,
		Amount:         decimal.NewFromInt(amount),
	}, time.Now())
}

func TestSettlementEngine_Apply(t *testing.T) {
	ctx := context.Background()
	forty := decimal.NewFromInt(40)

	tests := []struct {
		name            string
		tx              *transaction.Transaction
		setupMocks      func(repo *MockAccountRepo)
		expectedFailure *account.BusinessFailure
		expectedErr     error
	}{
		{
			name: "deposit moves vault to wallet",
			tx:   pending(shared.TransactionTypeDeposit, "", "X", 40),
			setupMocks: func(repo *MockAccountRepo) {
				repo.On("LockAccounts", ctx, []string{"X"}).Return([]*account.Account{{AccountKey: "X"}}, nil)
				repo.On("MoveVaultToWallet", ctx, "X", forty).Return(nil)
			},
		},
		{
			name: "withdraw moves wallet to vault",
			tx:   pending(shared.TransactionTypeWithdraw, "Y", "", 40),
			setupMocks: func(repo *MockAccountRepo) {
				repo.On("LockAccounts", ctx, []string{"Y"}).Return([]*account.Account{{AccountKey: "Y"}}, nil)
				repo.On("MoveWalletToVault", ctx, "Y", forty).Return(nil)
			},
		},
		{
			name: "withdraw with insufficient wallet fails",
			tx:   pending(shared.TransactionTypeWithdraw, "Y", "", 40),
			setupMocks: func(repo *MockAccountRepo) {
				repo.On("LockAccounts", ctx, []string{"Y"}).Return([]*account.Account{{AccountKey: "Y"}}, nil)
				repo.On("MoveWalletToVault", ctx, "Y", forty).Return(account.ErrInsufficientFunds{AccountKey: "Y"})
			},
			expectedFailure: &account.BusinessFailure{Reason: shared.FailureReasonInsufficientFunds, AccountKey: "Y"},
		},
		{
			name: "transfer debits origin then credits destination",
			tx:   pending(shared.TransactionTypeTransfer, "B", "A", 40),
			setupMocks: func(repo *MockAccountRepo) {
				repo.On("LockAccounts", ctx, []string{"B", "A"}).Return([]*account.Account{{AccountKey: "A"}, {AccountKey: "B"}}, nil)
				repo.On("DebitWallet", ctx, "B", forty).Return(nil)
				repo.On("CreditWallet", ctx, "A", forty).Return(nil)
			},
		},
		{
			name: "transfer to unknown account fails before any mutation",
			tx:   pending(shared.TransactionTypeTransfer, "A", "UNKNOWN", 40),
			setupMocks: func(repo *MockAccountRepo) {
				repo.On("LockAccounts", ctx, []string{"A", "UNKNOWN"}).Return(nil, account.ErrAccountNotFound{AccountKey: "UNKNOWN"})
			},
			expectedFailure: &account.BusinessFailure{Reason: shared.FailureReasonAccountNotFound, AccountKey: "UNKNOWN"},
		},
		{
			name: "transfer with insufficient origin wallet fails",
			tx:   pending(shared.TransactionTypeTransfer, "A", "B", 40),
			setupMocks: func(repo *MockAccountRepo) {
				repo.On("LockAccounts", ctx, []string{"A", "B"}).Return([]*account.Account{{AccountKey: "A"}, {AccountKey: "B"}}, nil)
				repo.On("DebitWallet", ctx, "A", forty).Return(account.ErrInsufficientFunds{AccountKey: "A"})
			},
			expectedFailure: &account.BusinessFailure{Reason: shared.FailureReasonInsufficientFunds, AccountKey: "A"},
		},
		{
			name: "credit failure after debit aborts",
			tx:   pending(shared.TransactionTypeTransfer, "A", "B", 40),
			setupMocks: func(repo *MockAccountRepo) {
				repo.On("LockAccounts", ctx, []string{"A", "B"}).Return([]*account.Account{{AccountKey: "A"}, {AccountKey: "B"}}, nil)
				repo.On("DebitWallet", ctx, "A", forty).Return(nil)
				repo.On("CreditWallet", ctx, "B", forty).Return(account.ErrAccountNotFound{AccountKey: "B"})
			},
			expectedErr: transaction.ErrInvariantViolation,
		},
		{
			name: "lock error is infrastructure",
			tx:   pending(shared.TransactionTypeDeposit, "", "X", 40),
			setupMocks: func(repo *MockAccountRepo) {
				repo.On("LockAccounts", ctx, []string{"X"}).Return(nil, errConnReset)
			},
			expectedErr: errConnReset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAccountRepo)
			tt.setupMocks(repo)
			engine := NewSettlementEngine(repo, newTestLogger())

			failure, err := engine.Apply(ctx, nil, tt.tx)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, failure)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedFailure, failure)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestSettlementEngine_NotFoundNeverMutates(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepo)
	repo.On("LockAccounts", ctx, []string{"Q"}).Return(nil, account.ErrAccountNotFound{AccountKey: "Q"})

	failure, err := NewSettlementEngine(repo, newTestLogger()).
		Apply(ctx, nil, pending(shared.TransactionTypeDeposit, "", "Q", 10))

	require.NoError(t, err)
	assert.Equal(t, shared.FailureReasonAccountNotFound, failure.Reason)
	repo.AssertNotCalled(t, "MoveVaultToWallet", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementEngine_RejectsRowWithoutParties(t *testing.T) {
	tx := pending(shared.TransactionTypeDeposit, "", "X", 10)
	tx.DestinationKey = nil

	failure, err := NewSettlementEngine(new(MockAccountRepo), newTestLogger()).Apply(context.Background(), nil, tx)

	assert.Nil(t, failure)
	assert.ErrorIs(t, err, transaction.ErrInvariantViolation)
}

var errConnReset = errors.New("connection reset by peer")
