package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/settlement-ledger/internal/domain/transaction"
)

// Processor settles parsed requests. Business failures are part of the Outcome;
// a returned error always means the unit of work was rolled back.
type Processor interface {
	Settle(ctx context.Context, request *envelope.SettlementRequest) (*Outcome, error)
}

// SettlementEngine moves balances for one PENDING transaction inside tx
type SettlementEngine interface {
	Apply(ctx context.Context, tx pgx.Tx, t *transaction.Transaction) (*account.BusinessFailure, error)
}

// AuditRecorder appends the audit record of a terminal transition inside tx
type AuditRecorder interface {
	Record(ctx context.Context, tx pgx.Tx, t *transaction.Transaction, eventType shared.EventKind, rawPayload []byte) error
}

// GapRecorder keeps confirmations whose publish failed after commit
type GapRecorder interface {
	RecordGap(ctx context.Context, t *transaction.Transaction, confirmation *envelope.Confirmation) error
}
