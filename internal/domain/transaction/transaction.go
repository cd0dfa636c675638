package transaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvariantViolation signals store state that should be impossible, such as
	// the transaction row vanishing right after insert-if-absent.
	ErrInvariantViolation = errors.New("transaction invariant violation")
	// ErrAlreadyTerminal is returned when a transition is attempted on a CONFIRMED or FAILED row
	ErrAlreadyTerminal = errors.New("transaction already in a terminal state")
)

// Transaction is one logical settlement, keyed by its client-supplied idempotency key
type Transaction struct {
	ID             uuid.UUID                `json:"id"`
	IdempotencyKey string                   `json:"idempotency_key"`
	Type           shared.TransactionType   `json:"type"`
	OriginKey      *string                  `json:"origin_key,omitempty"`
	DestinationKey *string                  `json:"destination_key,omitempty"`
	Amount         decimal.Decimal          `json:"amount"`
	Status         shared.TransactionStatus `json:"status"`
	FailureReason  *string                  `json:"failure_reason,omitempty"`
	ConfirmedAt    *time.Time               `json:"confirmed_at,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
}

// NewPending builds the PENDING row for a parsed request, with party nulls normalized per type
func NewPending(req *envelope.SettlementRequest, now time.Time) *Transaction {
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &Transaction{
		ID:             uuid.New(),
		IdempotencyKey: req.IdempotencyKey,
		Type:           req.Type,
		OriginKey:      optional(req.OriginKey),
		DestinationKey: optional(req.DestinationKey),
		Amount:         req.Amount,
		Status:         shared.TransactionStatusPending,
		CreatedAt:      createdAt.UTC(),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Validate checks the row-level invariants
func (t *Transaction) Validate() error {
	if t.IdempotencyKey == "" {
		return errors.New("idempotency key is required")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", t.Amount)
	}
	switch t.Type {
	case shared.TransactionTypeDeposit:
		if t.OriginKey != nil || t.DestinationKey == nil {
			return errors.New("deposit must have only a destination")
		}
	case shared.TransactionTypeWithdraw:
		if t.OriginKey == nil || t.DestinationKey != nil {
			return errors.New("withdraw must have only an origin")
		}
	case shared.TransactionTypeTransfer:
		if t.OriginKey == nil || t.DestinationKey == nil || *t.OriginKey == *t.DestinationKey {
			return errors.New("transfer must have distinct origin and destination")
		}
	default:
		return fmt.Errorf("%w: %q", shared.ErrInvalidTransactionType, t.Type)
	}
	if t.Status.IsTerminal() != (t.ConfirmedAt != nil) {
		return errors.New("confirmed_at must be set exactly when the status is terminal")
	}
	return nil
}

// Confirm moves a PENDING transaction to CONFIRMED, keeping an existing confirmed_at
func (t *Transaction) Confirm(now time.Time) error {
	return t.finish(shared.TransactionStatusConfirmed, nil, now)
}

// Fail moves a PENDING transaction to FAILED with the business reason
func (t *Transaction) Fail(reason string, now time.Time) error {
	return t.finish(shared.TransactionStatusFailed, &reason, now)
}

func (t *Transaction) finish(status shared.TransactionStatus, reason *string, now time.Time) error {
	if t.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	t.Status = status
	t.FailureReason = reason
	if t.ConfirmedAt == nil {
		ts := now.UTC()
		t.ConfirmedAt = &ts
	}
	return nil
}
