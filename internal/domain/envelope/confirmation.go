package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Transport attribute names set on every confirmation
const (
	AttrIdempotencyKey = "idempotency_key"
	AttrEventID        = "event_id"
	AttrEventKind      = "event_kind"
	AttrType           = "type"
)

// Confirmation is the TRANSACTION_CONFIRMED envelope published after a fresh confirmation
type Confirmation struct {
	IdempotencyKey  string                 `json:"idempotency_key"`
	EventKind       shared.EventKind       `json:"event_kind"`
	Type            shared.TransactionType `json:"type"`
	OriginKey       *string                `json:"origin_key"`
	DestinationKey  *string                `json:"destination_key"`
	Amount          decimal.Decimal        `json:"amount"`
	Timestamp       time.Time              `json:"timestamp"`
	OriginalPayload string                 `json:"original_payload"`
}

// NewConfirmation builds a confirmation stamped with the given server time
func NewConfirmation(idempotencyKey string, txType shared.TransactionType, origin, destination *string, amount decimal.Decimal, originalPayload []byte, now time.Time) *Confirmation {
	return &Confirmation{
		IdempotencyKey:  idempotencyKey,
		EventKind:       shared.EventKindTransactionConfirmed,
		Type:            txType,
		OriginKey:       origin,
		DestinationKey:  destination,
		Amount:          amount,
		Timestamp:       now.UTC(),
		OriginalPayload: string(originalPayload),
	}
}

// Attributes returns the transport attributes that duplicate the routing fields of the body
func (c *Confirmation) Attributes() map[string]string {
	return map[string]string{
		AttrIdempotencyKey: c.IdempotencyKey,
		AttrEventID:        c.IdempotencyKey,
		AttrEventKind:      string(c.EventKind),
		AttrType:           string(c.Type),
	}
}

// ParseConfirmation reads a confirmation the same way requests are read: attributes
// first, then body aliases. Any envelope that is not a TRANSACTION_CONFIRMED is malformed.
func ParseConfirmation(attrs map[string]string, body []byte) (*Confirmation, error) {
	f, err := newFields(attrs, body)
	if err != nil {
		return nil, err
	}

	c := &Confirmation{IdempotencyKey: f.lookup(idempotencyKeyAliases)}
	if c.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: missing idempotency key", ErrMalformed)
	}

	kind := shared.EventKind(f.lookup(eventKindAliases))
	if kind != shared.EventKindTransactionConfirmed {
		return nil, fmt.Errorf("%w: unexpected event kind %q", ErrMalformed, kind)
	}
	c.EventKind = kind

	rawType := f.lookup(typeAliases)
	if c.Type, err = shared.ParseTransactionType(rawType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if c.Amount, err = parseAmount(f.lookup(amountAliases)); err != nil {
		return nil, err
	}

	if origin := f.lookup(originAliases); origin != "" {
		c.OriginKey = &origin
	}
	if destination := f.lookup(destinationAliases); destination != "" {
		c.DestinationKey = &destination
	}

	if ts := f.lookup(createdAtAliases); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			c.Timestamp = parsed
		}
	}
	c.OriginalPayload = f.lookup(originalPayloadAlias)

	return c, nil
}

// Marshal renders the JSON body
func (c *Confirmation) Marshal() ([]byte, error) {
	return json.Marshal(c)
}
