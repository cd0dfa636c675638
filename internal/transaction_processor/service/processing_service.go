package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/settlement-ledger/internal/platform/persistence"
)

type ProcessingServiceImpl struct {
	uow     persistence.UnitOfWork
	txRepo  transaction.Repository
	engine  SettlementEngine
	auditor AuditRecorder
	logger  *slog.Logger
	now     func() time.Time
}

func NewProcessingService(
	uow persistence.UnitOfWork,
	txRepo transaction.Repository,
	engine SettlementEngine,
	auditor AuditRecorder,
	logger *slog.Logger,
) *ProcessingServiceImpl {
	return &ProcessingServiceImpl{
		uow:     uow,
		txRepo:  txRepo,
		engine:  engine,
		auditor: auditor,
		logger:  logger,
		now:     time.Now,
	}
}

// Settle runs the PENDING -> CONFIRMED|FAILED transition for one idempotency key in a
// single unit of work. The transaction row lock is the idempotency boundary: whoever
// holds it and still sees PENDING is the only caller that applies balances.
func (s *ProcessingServiceImpl) Settle(ctx context.Context, request *envelope.SettlementRequest) (*Outcome, error) {
	logger := s.logger.With("idempotency_key", request.IdempotencyKey, "type", string(request.Type))

	var outcome *Outcome
	err := s.uow.ExecuteTx(ctx, func(tx pgx.Tx) error {
		outcome = nil
		txRepo := s.txRepo.WithTx(tx)

		// 1. Insert-if-absent
		inserted, err := txRepo.InsertIfAbsent(ctx, transaction.NewPending(request, s.now()))
		if err != nil {
			return err
		}

		// 2. Lock the row
		current, err := txRepo.LockByIdempotencyKey(ctx, request.IdempotencyKey)
		if err != nil {
			if errors.Is(err, transaction.ErrTransactionNotFound{}) {
				return fmt.Errorf("%w: row for %s missing after insert", transaction.ErrInvariantViolation, request.IdempotencyKey)
			}
			return err
		}

		// 3. Terminal rows are never touched again
		if current.Status.IsTerminal() {
			logger.Info("Transaction already settled, skipping", "status", string(current.Status))
			outcome = &Outcome{Transaction: current}
			return nil
		}
		if !inserted && !sameRequest(current, request) {
			logger.Warn("Idempotency key reused with a different request, settling the stored one",
				"stored_type", string(current.Type),
				"stored_amount", current.Amount.String())
		}

		// 4. Move balances
		failure, err := s.engine.Apply(ctx, tx, current)
		if err != nil {
			return err
		}

		// 5./6. Record the terminal state and its audit trail
		now := s.now()
		eventType := shared.EventKindTransactionConfirmed
		if failure != nil {
			eventType = shared.EventKindTransactionFailed
			if err := current.Fail(string(failure.Reason), now); err != nil {
				return err
			}
			if err := txRepo.MarkFailed(ctx, current.IdempotencyKey, string(failure.Reason), *current.ConfirmedAt); err != nil {
				return err
			}
		} else {
			if err := current.Confirm(now); err != nil {
				return err
			}
			if err := txRepo.MarkConfirmed(ctx, current.IdempotencyKey, *current.ConfirmedAt); err != nil {
				return err
			}
		}

		if err := s.auditor.Record(ctx, tx, current, eventType, request.RawPayload); err != nil {
			return err
		}

		outcome = &Outcome{Transaction: current, Transitioned: true, Failure: failure}
		return nil
	})
	if err != nil {
		// 7. Infrastructure failure, nothing was committed
		logger.Error("Settlement aborted", "error", err)
		return nil, err
	}

	if outcome.Failure != nil {
		logger.Info("Transaction failed", "reason", string(outcome.Failure.Reason), "account_key", outcome.Failure.AccountKey)
	} else if outcome.Transitioned {
		logger.Info("Transaction confirmed", "amount", outcome.Transaction.Amount.String())
	}
	return outcome, nil
}

func sameRequest(t *transaction.Transaction, r *envelope.SettlementRequest) bool {
	return t.Type == r.Type && t.Amount.Equal(r.Amount) &&
		deref(t.OriginKey) == r.OriginKey && deref(t.DestinationKey) == r.DestinationKey
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
