package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/shared"
)

// Record is an append-only trace of a terminal transition
type Record struct {
	ID            uuid.UUID        `json:"id"`
	TransactionID uuid.UUID        `json:"transaction_id"`
	EventType     shared.EventKind `json:"event_type"`
	Payload       json.RawMessage  `json:"payload"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewRecord snapshots the raw inbound payload. Non-JSON payloads are stored as a JSON string
// so the jsonb column always accepts them.
func NewRecord(transactionID uuid.UUID, eventType shared.EventKind, rawPayload []byte, now time.Time) *Record {
	payload := json.RawMessage(rawPayload)
	if !json.Valid(rawPayload) {
		payload, _ = json.Marshal(string(rawPayload))
	}
	return &Record{
		ID:            uuid.New(),
		TransactionID: transactionID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now.UTC(),
	}
}

// Repository appends audit records
type Repository interface {
	Create(ctx context.Context, record *Record) error
	CountByTransactionID(ctx context.Context, transactionID uuid.UUID) (int, error)
	WithTx(tx pgx.Tx) Repository
}
