package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/outbox"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/settlement-ledger/internal/transaction_processor/service"
)

type GapRecorderImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewGapRecorder(outboxRepo outbox.Repository, logger *slog.Logger) service.GapRecorder {
	return &GapRecorderImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// RecordGap stores a confirmation the relay still has to publish. It runs after the
// settlement commit, outside any unit of work.
func (r *GapRecorderImpl) RecordGap(ctx context.Context, t *transaction.Transaction, confirmation *envelope.Confirmation) error {
	msg, err := outbox.NewMessage(t.ID, confirmation)
	if err != nil {
		return fmt.Errorf("encode confirmation gap: %w", err)
	}

	if err := r.outboxRepo.Create(ctx, msg); err != nil {
		return fmt.Errorf("store confirmation gap: %w", err)
	}

	r.logger.Info("Confirmation gap recorded", "idempotency_key", t.IdempotencyKey)
	return nil
}
