package service

import (
	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/settlement-ledger/internal/domain/transaction"
)

// Outcome is the terminal state a Settle call observed or produced
type Outcome struct {
	Transaction *transaction.Transaction
	// Transitioned is true only for the call that moved the row out of PENDING
	Transitioned bool
	Failure      *account.BusinessFailure
}

// Status of the transaction after the call
func (o *Outcome) Status() shared.TransactionStatus {
	return o.Transaction.Status
}

// FreshlyConfirmed reports whether this call confirmed the transaction, the only
// case in which a confirmation is published
func (o *Outcome) FreshlyConfirmed() bool {
	return o.Transitioned && o.Transaction.Status == shared.TransactionStatusConfirmed
}
