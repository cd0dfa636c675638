package outbox

import (
	"context"
	"strconv"

	"github.com/settlement-ledger/internal/domain/shared"
)

// Repository persists confirmation gaps
type Repository interface {
	// Create records a gap; a second gap for the same idempotency key is ignored
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}
