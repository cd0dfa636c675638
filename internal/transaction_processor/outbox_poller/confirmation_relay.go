package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/settlement-ledger/internal/domain/outbox"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/settlement-ledger/internal/platform/messaging/producers"
)

// ErrUndecodablePayload marks a gap whose stored confirmation cannot be read back.
// Such a gap is never retried.
var ErrUndecodablePayload = errors.New("undecodable confirmation payload")

// ConfirmationRelay republishes one recorded confirmation gap
type ConfirmationRelay interface {
	Relay(ctx context.Context, message *outbox.Message) error
}

type ConfirmationRelayImpl struct {
	outboxRepo outbox.Repository
	publisher  producers.ConfirmationPublisher
	logger     *slog.Logger
}

func NewConfirmationRelay(
	outboxRepo outbox.Repository,
	publisher producers.ConfirmationPublisher,
	logger *slog.Logger,
) ConfirmationRelay {
	return &ConfirmationRelayImpl{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// Relay publishes the stored confirmation and marks the gap PROCESSED
func (r *ConfirmationRelayImpl) Relay(ctx context.Context, message *outbox.Message) error {
	logger := r.logger.With("outbox_id", message.ID, "idempotency_key", message.IdempotencyKey)

	confirmation, err := message.Confirmation()
	if err != nil {
		logger.Error("Failed to decode confirmation from outbox payload", "error", err)
		if updateErr := r.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "update_error", updateErr)
		}
		return fmt.Errorf("%w: outbox %d: %v", ErrUndecodablePayload, message.ID, err)
	}

	if err := r.publisher.Publish(ctx, confirmation); err != nil {
		return fmt.Errorf("publish confirmation %s: %w", message.IdempotencyKey, err)
	}

	if err := r.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		// The confirmation went out; a later relay may publish it again, which the
		// audit sink absorbs by idempotency key.
		logger.Error("Confirmation published but failed to mark outbox message as PROCESSED", "error", err)
		return nil
	}

	logger.Info("Confirmation gap closed")
	return nil
}
