package account

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository defines account persistence operations. Every mutation combines its
// guard and its update in one conditional statement.
type Repository interface {
	GetByKey(ctx context.Context, accountKey string) (*Account, error)

	// LockAccounts locks the distinct keys FOR UPDATE in ascending key order and
	// returns the rows in that order. Fails with ErrAccountNotFound for the first missing key.
	LockAccounts(ctx context.Context, accountKeys ...string) ([]*Account, error)

	// MoveVaultToWallet: vault -= amount (guard vault >= amount), wallet += amount
	MoveVaultToWallet(ctx context.Context, accountKey string, amount decimal.Decimal) error
	// MoveWalletToVault: wallet -= amount (guard wallet >= amount), vault += amount
	MoveWalletToVault(ctx context.Context, accountKey string, amount decimal.Decimal) error
	// DebitWallet: wallet -= amount (guard wallet >= amount)
	DebitWallet(ctx context.Context, accountKey string, amount decimal.Decimal) error
	// CreditWallet: wallet += amount
	CreditWallet(ctx context.Context, accountKey string, amount decimal.Decimal) error

	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountKey string
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountKey
}

// Is matches any ErrAccountNotFound when the target key is empty
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.AccountKey == "" || t.AccountKey == e.AccountKey
}

// ErrInsufficientFunds indicates a failed balance guard
type ErrInsufficientFunds struct {
	AccountKey string
}

func (e ErrInsufficientFunds) Error() string {
	return "insufficient funds in account: " + e.AccountKey
}

// Is matches any ErrInsufficientFunds when the target key is empty
func (e ErrInsufficientFunds) Is(target error) bool {
	t, ok := target.(ErrInsufficientFunds)
	if !ok {
		return false
	}
	return t.AccountKey == "" || t.AccountKey == e.AccountKey
}
