package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/shared"
)

// Message is a confirmation whose inline publish failed after commit.
// The relay republishes it until it succeeds or runs out of attempts.
type Message struct {
	ID             int64               `json:"id"`
	TransactionID  uuid.UUID           `json:"transaction_id"`
	IdempotencyKey string              `json:"idempotency_key"`
	Payload        json.RawMessage     `json:"payload"`
	Status         shared.OutboxStatus `json:"status"`
	Attempts       int                 `json:"attempts"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAttemptAt  *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage records a confirmation gap. The inline publish counts as the first attempt.
func NewMessage(transactionID uuid.UUID, confirmation *envelope.Confirmation) (*Message, error) {
	payload, err := confirmation.Marshal()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Message{
		TransactionID:  transactionID,
		IdempotencyKey: confirmation.IdempotencyKey,
		Payload:        payload,
		Status:         shared.OutboxStatusPending,
		Attempts:       1,
		CreatedAt:      now,
		LastAttemptAt:  &now,
	}, nil
}

// Confirmation decodes the stored envelope
func (m *Message) Confirmation() (*envelope.Confirmation, error) {
	var c envelope.Confirmation
	if err := json.Unmarshal(m.Payload, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
