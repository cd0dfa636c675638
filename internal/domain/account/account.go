package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Account holds the two balance pools of one account key.
// Deposits move vault to wallet, withdrawals move wallet to vault, transfers move wallet to wallet.
type Account struct {
	AccountKey    string          `json:"account_key"`
	VaultBalance  decimal.Decimal `json:"vault_balance"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Total is the sum of both pools
func (a *Account) Total() decimal.Decimal {
	return a.VaultBalance.Add(a.WalletBalance)
}

// BusinessFailure is an expected settlement outcome (insufficient funds, unknown account).
// It moves the transaction to FAILED instead of aborting the unit of work.
type BusinessFailure struct {
	Reason     shared.FailureReason
	AccountKey string
}

func (f *BusinessFailure) String() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.AccountKey)
}

// AsBusinessFailure maps store errors that represent business rules onto a BusinessFailure.
// Any other error is returned as nil.
func AsBusinessFailure(err error) *BusinessFailure {
	var notFound ErrAccountNotFound
	if errors.As(err, &notFound) {
		return &BusinessFailure{Reason: shared.FailureReasonAccountNotFound, AccountKey: notFound.AccountKey}
	}
	var insufficient ErrInsufficientFunds
	if errors.As(err, &insufficient) {
		return &BusinessFailure{Reason: shared.FailureReasonInsufficientFunds, AccountKey: insufficient.AccountKey}
	}
	return nil
}
