package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/audit"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/settlement-ledger/internal/transaction_processor/service"
)

type AuditRecorderImpl struct {
	auditRepo audit.Repository
	logger    *slog.Logger
}

func NewAuditRecorder(auditRepo audit.Repository, logger *slog.Logger) service.AuditRecorder {
	return &AuditRecorderImpl{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record writes the audit record in the same unit of work as the status change
func (r *AuditRecorderImpl) Record(ctx context.Context, tx pgx.Tx, t *transaction.Transaction, eventType shared.EventKind, rawPayload []byte) error {
	record := audit.NewRecord(t.ID, eventType, rawPayload, time.Now())
	if err := r.auditRepo.WithTx(tx).Create(ctx, record); err != nil {
		r.logger.Error("Failed to write audit record",
			"idempotency_key", t.IdempotencyKey,
			"event_type", string(eventType),
			"error", err)
		return err
	}
	return nil
}
