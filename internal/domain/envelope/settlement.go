package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// maxAmount keeps amounts inside NUMERIC(20,2)
var maxAmount = decimal.New(1, 18)

// SettlementRequest is a parsed and normalized inbound envelope
type SettlementRequest struct {
	IdempotencyKey string
	Type           shared.TransactionType
	OriginKey      string // empty for DEPOSIT
	DestinationKey string // empty for WITHDRAW
	Amount         decimal.Decimal
	CreatedAt      time.Time // zero when the producer did not send one
	RawPayload     []byte
}

// ParseSettlementRequest builds a SettlementRequest from transport attributes and body.
// Every error it returns wraps ErrMalformed.
func ParseSettlementRequest(attrs map[string]string, body []byte) (*SettlementRequest, error) {
	f, err := newFields(attrs, body)
	if err != nil {
		return nil, err
	}

	req := &SettlementRequest{
		IdempotencyKey: f.lookup(idempotencyKeyAliases),
		OriginKey:      f.lookup(originAliases),
		DestinationKey: f.lookup(destinationAliases),
	}
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: missing idempotency key", ErrMalformed)
	}

	rawType := f.lookup(typeAliases)
	if rawType == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if req.Type, err = shared.ParseTransactionType(rawType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if req.Amount, err = parseAmount(f.lookup(amountAliases)); err != nil {
		return nil, err
	}

	if err := req.normalizeParties(); err != nil {
		return nil, err
	}

	if ts := f.lookup(createdAtAliases); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			req.CreatedAt = parsed
		}
	}

	req.RawPayload = snapshot(body, req)
	return req, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: missing amount", ErrMalformed)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a decimal", ErrMalformed, raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive, got %s", ErrMalformed, amount)
	}
	if !amount.Equal(amount.Truncate(2)) {
		return decimal.Zero, fmt.Errorf("%w: amount %s has more than 2 decimal places", ErrMalformed, amount)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, fmt.Errorf("%w: amount %s out of range", ErrMalformed, amount)
	}
	return amount, nil
}

// normalizeParties enforces the per-type party shape. Single-account operations accept
// the account in either slot, since legacy producers put the user in the origin field.
func (r *SettlementRequest) normalizeParties() error {
	switch r.Type {
	case shared.TransactionTypeDeposit:
		if r.DestinationKey == "" {
			r.DestinationKey = r.OriginKey
		}
		r.OriginKey = ""
		if r.DestinationKey == "" {
			return fmt.Errorf("%w: deposit requires a destination account", ErrMalformed)
		}
	case shared.TransactionTypeWithdraw:
		if r.OriginKey == "" {
			r.OriginKey = r.DestinationKey
		}
		r.DestinationKey = ""
		if r.OriginKey == "" {
			return fmt.Errorf("%w: withdraw requires an origin account", ErrMalformed)
		}
	case shared.TransactionTypeTransfer:
		if r.OriginKey == "" || r.DestinationKey == "" {
			return fmt.Errorf("%w: transfer requires origin and destination accounts", ErrMalformed)
		}
		if r.OriginKey == r.DestinationKey {
			return fmt.Errorf("%w: transfer origin and destination must differ", ErrMalformed)
		}
	}
	return nil
}

// AccountKeys returns the accounts the request touches
func (r *SettlementRequest) AccountKeys() []string {
	var keys []string
	if r.OriginKey != "" {
		keys = append(keys, r.OriginKey)
	}
	if r.DestinationKey != "" {
		keys = append(keys, r.DestinationKey)
	}
	return keys
}

// snapshot keeps the inbound body verbatim when there is one. Attribute-only
// envelopes get a JSON rendering of the normalized request instead.
func snapshot(body []byte, r *SettlementRequest) []byte {
	if len(body) > 0 && json.Valid(body) {
		return body
	}
	doc := map[string]string{
		"idempotency_key": r.IdempotencyKey,
		"type":            string(r.Type),
		"amount":          r.Amount.StringFixed(2),
	}
	if r.OriginKey != "" {
		doc["origin_key"] = r.OriginKey
	}
	if r.DestinationKey != "" {
		doc["destination_key"] = r.DestinationKey
	}
	if !r.CreatedAt.IsZero() {
		doc["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	out, _ := json.Marshal(doc)
	return out
}
