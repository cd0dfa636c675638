// Package audit_sink consumes TRANSACTION_CONFIRMED envelopes and records each
// settlement once in the downstream ledger.
package audit_sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/ledger"
	"github.com/settlement-ledger/internal/platform/messaging/consumers"
)

// ConfirmationHandler writes confirmations to the ledger store
type ConfirmationHandler struct {
	ledgerRepo ledger.Repository
	dlq        consumers.DeadLetterPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewConfirmationHandler creates the handler. dlq may be nil.
func NewConfirmationHandler(ledgerRepo ledger.Repository, dlq consumers.DeadLetterPublisher, logger *slog.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{
		ledgerRepo: ledgerRepo,
		dlq:        dlq,
		logger:     logger,
		now:        time.Now,
	}
}

// Handle is the consumers.Handler of the confirmation topic
func (h *ConfirmationHandler) Handle(ctx context.Context, msg *consumers.Message) {
	if err := h.Process(ctx, msg); err != nil {
		msg.Nack(err)
		return
	}
	msg.Ack()
}

// Process returns an error only when the message should be redelivered
func (h *ConfirmationHandler) Process(ctx context.Context, msg *consumers.Message) error {
	logger := h.logger.With("partition", msg.Partition, "offset", msg.Offset)

	confirmation, err := envelope.ParseConfirmation(msg.Headers, msg.Value)
	if err != nil {
		logger.Error("Rejecting malformed confirmation", "error", err)
		h.deadLetter(ctx, msg, err, logger)
		return nil
	}
	logger = logger.With("idempotency_key", confirmation.IdempotencyKey)

	entry := ledger.NewEntry(confirmation, ledger.Source{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}, h.now())

	if err := h.ledgerRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry{}) {
			logger.Info("Confirmation already recorded, skipping")
			return nil
		}
		logger.Error("Failed to record confirmation", "error", err)
		return err
	}

	logger.Info("Confirmation recorded", "type", string(entry.Type), "amount", entry.Amount)
	return nil
}

// deadLetter parks a malformed confirmation; it is acknowledged whether or not the copy succeeds
func (h *ConfirmationHandler) deadLetter(ctx context.Context, msg *consumers.Message, reason error, logger *slog.Logger) {
	if h.dlq == nil {
		logger.Warn("No dead letter publisher configured, dropping malformed confirmation")
		return
	}
	if err := h.dlq.PublishToDLQ(ctx, string(msg.Key), msg.Value, reason.Error()); err != nil {
		logger.Error("Failed to publish malformed confirmation to DLQ, dropping it",
			"dlq_error", err,
			"value", string(msg.Value))
	}
}
