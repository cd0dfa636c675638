package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/settlement-ledger/internal/transaction_processor/service"
)

type SettlementEngineImpl struct {
	accountRepo account.Repository
	logger      *slog.Logger
}

func NewSettlementEngine(accountRepo account.Repository, logger *slog.Logger) service.SettlementEngine {
	return &SettlementEngineImpl{
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// Apply locks every account the transaction touches, then moves the balances.
// All locks are taken before the first mutation, so an unknown account fails the
// transaction without any partial write.
func (e *SettlementEngineImpl) Apply(ctx context.Context, tx pgx.Tx, t *transaction.Transaction) (*account.BusinessFailure, error) {
	repo := e.accountRepo.WithTx(tx)
	logger := e.logger.With("idempotency_key", t.IdempotencyKey, "type", string(t.Type))

	keys, err := partyKeys(t)
	if err != nil {
		return nil, err
	}

	if _, err := repo.LockAccounts(ctx, keys...); err != nil {
		return classify(err)
	}

	switch t.Type {
	case shared.TransactionTypeDeposit:
		err = repo.MoveVaultToWallet(ctx, *t.DestinationKey, t.Amount)
	case shared.TransactionTypeWithdraw:
		err = repo.MoveWalletToVault(ctx, *t.OriginKey, t.Amount)
	case shared.TransactionTypeTransfer:
		if err = repo.DebitWallet(ctx, *t.OriginKey, t.Amount); err != nil {
			break
		}
		if err = repo.CreditWallet(ctx, *t.DestinationKey, t.Amount); err != nil {
			// The debit already happened, so even a business error here must abort.
			if failure := account.AsBusinessFailure(err); failure != nil {
				return nil, fmt.Errorf("%w: credit of locked account %s failed: %v",
					transaction.ErrInvariantViolation, failure.AccountKey, err)
			}
			return nil, err
		}
	}

	failure, err := classify(err)
	if failure != nil {
		logger.Info("Settlement rejected", "reason", string(failure.Reason), "account_key", failure.AccountKey)
	}
	return failure, err
}

func partyKeys(t *transaction.Transaction) ([]string, error) {
	switch t.Type {
	case shared.TransactionTypeDeposit:
		if t.DestinationKey != nil {
			return []string{*t.DestinationKey}, nil
		}
	case shared.TransactionTypeWithdraw:
		if t.OriginKey != nil {
			return []string{*t.OriginKey}, nil
		}
	case shared.TransactionTypeTransfer:
		if t.OriginKey != nil && t.DestinationKey != nil {
			return []string{*t.OriginKey, *t.DestinationKey}, nil
		}
	default:
		return nil, fmt.Errorf("%w: %w %q", transaction.ErrInvariantViolation, shared.ErrInvalidTransactionType, t.Type)
	}
	return nil, fmt.Errorf("%w: %s transaction %s has no party keys", transaction.ErrInvariantViolation, t.Type, t.IdempotencyKey)
}

// classify splits business failures from infrastructure errors
func classify(err error) (*account.BusinessFailure, error) {
	if err == nil {
		return nil, nil
	}
	if failure := account.AsBusinessFailure(err); failure != nil {
		return failure, nil
	}
	return nil, err
}
