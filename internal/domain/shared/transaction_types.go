package shared

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTransactionType = errors.New("invalid transaction type")

// TransactionType is the closed set of settlement operations
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "DEPOSIT"
	TransactionTypeWithdraw TransactionType = "WITHDRAW"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// transactionTypeAliases maps every accepted spelling (upper-cased) to its canonical type
var transactionTypeAliases = map[string]TransactionType{
	"DEPOSIT":       TransactionTypeDeposit,
	"DEPOSITO":      TransactionTypeDeposit,
	"WITHDRAW":      TransactionTypeWithdraw,
	"WITHDRAWAL":    TransactionTypeWithdraw,
	"RETIRO":        TransactionTypeWithdraw,
	"TRANSFER":      TransactionTypeTransfer,
	"TRANSFERENCIA": TransactionTypeTransfer,
}

// ParseTransactionType normalizes case and localized aliases into a TransactionType.
func ParseTransactionType(raw string) (TransactionType, error) {
	t, ok := transactionTypeAliases[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
	}
	return t, nil
}

// Valid reports whether t is one of the canonical types
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeTransfer:
		return true
	}
	return false
}

// TransactionStatus is the settlement state machine: PENDING -> CONFIRMED | FAILED
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusConfirmed TransactionStatus = "CONFIRMED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusConfirmed || s == TransactionStatusFailed
}

// FailureReason defines business failure categories
type FailureReason string

const (
	FailureReasonAccountNotFound   FailureReason = "ACCOUNT_NOT_FOUND"
	FailureReasonInsufficientFunds FailureReason = "INSUFFICIENT_FUNDS"
)

// OutboxStatus defines confirmation relay states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// EventKind tags audit records and outbound events
type EventKind string

const (
	EventKindTransactionConfirmed EventKind = "TRANSACTION_CONFIRMED"
	EventKindTransactionFailed    EventKind = "TRANSACTION_FAILED"
)
