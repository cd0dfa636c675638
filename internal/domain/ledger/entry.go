package ledger

import (
	"time"

	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/shared"
)

// Entry is the downstream record of one confirmed settlement, keyed by idempotency key
type Entry struct {
	IdempotencyKey  string                 `json:"idempotency_key" bson:"idempotency_key"`
	EventKind       shared.EventKind       `json:"event_kind" bson:"event_kind"`
	Type            shared.TransactionType `json:"type" bson:"type"`
	OriginKey       *string                `json:"origin_key,omitempty" bson:"origin_key,omitempty"`
	DestinationKey  *string                `json:"destination_key,omitempty" bson:"destination_key,omitempty"`
	Amount          string                 `json:"amount" bson:"amount"` // fixed two-digit decimal text
	OriginalPayload string                 `json:"original_payload,omitempty" bson:"original_payload,omitempty"`
	ConfirmedAt     time.Time              `json:"confirmed_at" bson:"confirmed_at"`
	Source          Source                 `json:"source" bson:"source"`
	ReceivedAt      time.Time              `json:"received_at" bson:"received_at"`
}

// Source locates the broker message an entry was built from
type Source struct {
	Topic     string `json:"topic" bson:"topic"`
	Partition int    `json:"partition" bson:"partition"`
	Offset    int64  `json:"offset" bson:"offset"`
}

// NewEntry builds an entry from a parsed confirmation
func NewEntry(c *envelope.Confirmation, source Source, now time.Time) *Entry {
	return &Entry{
		IdempotencyKey:  c.IdempotencyKey,
		EventKind:       c.EventKind,
		Type:            c.Type,
		OriginKey:       c.OriginKey,
		DestinationKey:  c.DestinationKey,
		Amount:          c.Amount.StringFixed(2),
		OriginalPayload: c.OriginalPayload,
		ConfirmedAt:     c.Timestamp.UTC(),
		Source:          source,
		ReceivedAt:      now.UTC(),
	}
}
