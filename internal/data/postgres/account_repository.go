// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository runs against a persistence.Querier so the same code serves the
// pool and a unit of work started with PostgresDB.ExecuteTx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

const accountColumns = `account_key, vault_balance::text, wallet_balance::text, created_at, updated_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(logger *slog.Logger, querier persistence.Querier) account.Repository {
	return &AccountRepository{
		querier: querier,
		logger:  logger,
	}
}

// WithTx returns a repository bound to the given transaction
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByKey reads an account without locking it
func (r *AccountRepository) GetByKey(ctx context.Context, accountKey string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_key = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, accountKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountKey: accountKey}
		}
		r.logger.Error("Failed to get account", "account_key", accountKey, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// LockAccounts takes row locks in ascending key order so two settlements touching
// the same pair of accounts always queue on the same first row.
func (r *AccountRepository) LockAccounts(ctx context.Context, accountKeys ...string) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_key = $1 FOR UPDATE`

	keys := sortedDistinct(accountKeys)
	locked := make([]*account.Account, 0, len(keys))
	for _, key := range keys {
		acc, err := scanAccount(r.querier.QueryRow(ctx, query, key))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, account.ErrAccountNotFound{AccountKey: key}
			}
			r.logger.Error("Failed to lock account", "account_key", key, "error", err)
			return nil, fmt.Errorf("failed to lock account %s: %w", key, err)
		}
		locked = append(locked, acc)
	}
	return locked, nil
}

// MoveVaultToWallet applies a deposit to the account
func (r *AccountRepository) MoveVaultToWallet(ctx context.Context, accountKey string, amount decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET vault_balance = vault_balance - $2::numeric, wallet_balance = wallet_balance + $2::numeric, updated_at = NOW()
		WHERE account_key = $1 AND vault_balance >= $2::numeric
	`
	return r.applyGuarded(ctx, "move vault to wallet", query, accountKey, amount, true)
}

// MoveWalletToVault applies a withdrawal to the account
func (r *AccountRepository) MoveWalletToVault(ctx context.Context, accountKey string, amount decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET wallet_balance = wallet_balance - $2::numeric, vault_balance = vault_balance + $2::numeric, updated_at = NOW()
		WHERE account_key = $1 AND wallet_balance >= $2::numeric
	`
	return r.applyGuarded(ctx, "move wallet to vault", query, accountKey, amount, true)
}

// DebitWallet is the origin side of a transfer
func (r *AccountRepository) DebitWallet(ctx context.Context, accountKey string, amount decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET wallet_balance = wallet_balance - $2::numeric, updated_at = NOW()
		WHERE account_key = $1 AND wallet_balance >= $2::numeric
	`
	return r.applyGuarded(ctx, "debit wallet", query, accountKey, amount, true)
}

// CreditWallet is the destination side of a transfer
func (r *AccountRepository) CreditWallet(ctx context.Context, accountKey string, amount decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET wallet_balance = wallet_balance + $2::numeric, updated_at = NOW()
		WHERE account_key = $1
	`
	return r.applyGuarded(ctx, "credit wallet", query, accountKey, amount, false)
}

// applyGuarded runs a single conditional UPDATE. When nothing matched it tells a
// missing account apart from a failed balance guard.
func (r *AccountRepository) applyGuarded(ctx context.Context, op, query, accountKey string, amount decimal.Decimal, guarded bool) error {
	result, err := r.querier.Exec(ctx, query, accountKey, amount.String())
	if err != nil {
		r.logger.Error("Failed to update account balance", "op", op, "account_key", accountKey, "error", err)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	if !guarded {
		return account.ErrAccountNotFound{AccountKey: accountKey}
	}

	var exists bool
	err = r.querier.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE account_key = $1)`, accountKey).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check account existence", "account_key", accountKey, "error", err)
		return fmt.Errorf("failed to check account existence: %w", err)
	}
	if !exists {
		return account.ErrAccountNotFound{AccountKey: accountKey}
	}
	return account.ErrInsufficientFunds{AccountKey: accountKey}
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acc           account.Account
		vault, wallet string
	)
	if err := row.Scan(&acc.AccountKey, &vault, &wallet, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if acc.VaultBalance, err = decimal.NewFromString(vault); err != nil {
		return nil, fmt.Errorf("invalid vault balance %q: %w", vault, err)
	}
	if acc.WalletBalance, err = decimal.NewFromString(wallet); err != nil {
		return nil, fmt.Errorf("invalid wallet balance %q: %w", wallet, err)
	}
	return &acc, nil
}

func sortedDistinct(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
