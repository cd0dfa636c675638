package envelope

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettlementRequest_Body(t *testing.T) {
	body := []byte(`{"idempotency_key":"k-1","type":"transfer","origin_key":"A","destination_key":"B","amount":"10.50","created_at":"2024-05-01T10:00:00Z"}`)

	req, err := ParseSettlementRequest(nil, body)
	require.NoError(t, err)

	assert.Equal(t, "k-1", req.IdempotencyKey)
	assert.Equal(t, shared.TransactionTypeTransfer, req.Type)
	assert.Equal(t, "A", req.OriginKey)
	assert.Equal(t, "B", req.DestinationKey)
	assert.True(t, decimal.RequireFromString("10.5").Equal(req.Amount))
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), req.CreatedAt)
	assert.Equal(t, body, req.RawPayload)
	assert.Equal(t, []string{"A", "B"}, req.AccountKeys())
}

func TestParseSettlementRequest_AttributesWin(t *testing.T) {
	attrs := map[string]string{
		"event_id": "attr-key",
		"tipo":     "RETIRO",
	}
	body := []byte(`{"idempotency_key":"body-key","type":"DEPOSIT","curp_origen":"CURP1","monto":25}`)

	req, err := ParseSettlementRequest(attrs, body)
	require.NoError(t, err)

	assert.Equal(t, "attr-key", req.IdempotencyKey)
	assert.Equal(t, shared.TransactionTypeWithdraw, req.Type)
	assert.Equal(t, "CURP1", req.OriginKey)
	assert.Empty(t, req.DestinationKey)
	assert.True(t, decimal.NewFromInt(25).Equal(req.Amount))
}

func TestParseSettlementRequest_AliasOrder(t *testing.T) {
	body := []byte(`{"id":"third","txId":"second","tipo":"DEPOSITO","toCurp":"X","amount":1}`)

	req, err := ParseSettlementRequest(nil, body)
	require.NoError(t, err)
	assert.Equal(t, "second", req.IdempotencyKey)
	assert.Equal(t, shared.TransactionTypeDeposit, req.Type)
	assert.Equal(t, "X", req.DestinationKey)
}

func TestParseSettlementRequest_PartyNormalization(t *testing.T) {
	t.Run("DepositWithUserInOrigin", func(t *testing.T) {
		req, err := ParseSettlementRequest(nil, []byte(`{"id":"d","type":"DEPOSIT","origin_key":"U","amount":"5"}`))
		require.NoError(t, err)
		assert.Empty(t, req.OriginKey)
		assert.Equal(t, "U", req.DestinationKey)
	})

	t.Run("DepositWithBothKeepsDestination", func(t *testing.T) {
		req, err := ParseSettlementRequest(nil, []byte(`{"id":"d","type":"DEPOSIT","origin_key":"O","destination_key":"D","amount":"5"}`))
		require.NoError(t, err)
		assert.Empty(t, req.OriginKey)
		assert.Equal(t, "D", req.DestinationKey)
	})

	t.Run("WithdrawWithUserInDestination", func(t *testing.T) {
		req, err := ParseSettlementRequest(nil, []byte(`{"id":"w","type":"WITHDRAW","destination_key":"U","amount":"5"}`))
		require.NoError(t, err)
		assert.Equal(t, "U", req.OriginKey)
		assert.Empty(t, req.DestinationKey)
	})
}

func TestParseSettlementRequest_AttributeOnlySnapshot(t *testing.T) {
	attrs := map[string]string{
		"idempotency_key": "k-9",
		"type":            "deposit",
		"destination_key": "D",
		"amount":          "12",
	}

	req, err := ParseSettlementRequest(attrs, nil)
	require.NoError(t, err)

	var doc map[string]string
	require.NoError(t, json.Unmarshal(req.RawPayload, &doc))
	assert.Equal(t, "k-9", doc["idempotency_key"])
	assert.Equal(t, "DEPOSIT", doc["type"])
	assert.Equal(t, "12.00", doc["amount"])
	assert.Equal(t, "D", doc["destination_key"])
}

func TestParseSettlementRequest_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"NotJSON", `amount=10`},
		{"JSONArray", `[1,2]`},
		{"MissingKey", `{"type":"DEPOSIT","destination_key":"A","amount":"1"}`},
		{"MissingType", `{"id":"k","destination_key":"A","amount":"1"}`},
		{"UnknownType", `{"id":"k","type":"REFUND","destination_key":"A","amount":"1"}`},
		{"MissingAmount", `{"id":"k","type":"DEPOSIT","destination_key":"A"}`},
		{"ZeroAmount", `{"id":"k","type":"DEPOSIT","destination_key":"A","amount":"0"}`},
		{"NegativeAmount", `{"id":"k","type":"DEPOSIT","destination_key":"A","amount":-3}`},
		{"GarbageAmount", `{"id":"k","type":"DEPOSIT","destination_key":"A","amount":"ten"}`},
		{"TooPrecise", `{"id":"k","type":"DEPOSIT","destination_key":"A","amount":"1.001"}`},
		{"TooLarge", `{"id":"k","type":"DEPOSIT","destination_key":"A","amount":"1000000000000000000"}`},
		{"DepositWithoutAccount", `{"id":"k","type":"DEPOSIT","amount":"1"}`},
		{"WithdrawWithoutAccount", `{"id":"k","type":"WITHDRAW","amount":"1"}`},
		{"TransferMissingDestination", `{"id":"k","type":"TRANSFER","origin_key":"A","amount":"1"}`},
		{"TransferToSelf", `{"id":"k","type":"TRANSFER","origin_key":"A","destination_key":"A","amount":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseSettlementRequest(nil, []byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, req)
			assert.True(t, errors.Is(err, ErrMalformed), err.Error())
		})
	}

	t.Run("EmptyEverything", func(t *testing.T) {
		_, err := ParseSettlementRequest(map[string]string{}, nil)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestParseSettlementRequest_UnstorableText(t *testing.T) {
	valid := []byte(`{"id":"k","type":"DEPOSIT","destination_key":"A","amount":"1"}`)

	tests := []struct {
		name  string
		attrs map[string]string
		body  []byte
	}{
		{"BodyInvalidUTF8", nil, []byte("{\"id\":\"k\xff\",\"type\":\"DEPOSIT\",\"destination_key\":\"A\",\"amount\":\"1\"}")},
		{"BodyEscapedNUL", nil, []byte(`{"id":"k","type":"DEPOSIT","destination_key":"A\u0000","amount":"1"}`)},
		{"NestedEscapedNUL", nil, []byte(`{"id":"k","type":"DEPOSIT","destination_key":"A","amount":"1","meta":{"note":["x\u0000"]}}`)},
		{"AttributeInvalidUTF8", map[string]string{"idempotency_key": "k\xfe"}, valid},
		{"AttributeNUL", map[string]string{"destination_key": "A\x00"}, valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseSettlementRequest(tt.attrs, tt.body)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, req)
		})
	}

	t.Run("UnrelatedHeaderIgnored", func(t *testing.T) {
		req, err := ParseSettlementRequest(map[string]string{"trace": "\xff"}, valid)
		require.NoError(t, err)
		assert.Equal(t, "k", req.IdempotencyKey)
	})

	t.Run("EscapedBackslashIsFine", func(t *testing.T) {
		req, err := ParseSettlementRequest(nil,
			[]byte(`{"id":"k","type":"DEPOSIT","destination_key":"A","amount":"1","note":"\\u0000"}`))
		require.NoError(t, err)
		assert.Equal(t, "A", req.DestinationKey)
	})
}

func TestConfirmation_RoundTripThroughParse(t *testing.T) {
	origin := "A"
	destination := "B"
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	original := []byte(`{"id":"k-1","type":"TRANSFER"}`)

	c := NewConfirmation("k-1", shared.TransactionTypeTransfer, &origin, &destination, decimal.RequireFromString("7.25"), original, now)
	body, err := c.Marshal()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "TRANSACTION_CONFIRMED", raw["event_kind"])
	assert.Equal(t, "7.25", raw["amount"])
	assert.Equal(t, string(original), raw["original_payload"])

	parsed, err := ParseConfirmation(c.Attributes(), body)
	require.NoError(t, err)
	assert.Equal(t, "k-1", parsed.IdempotencyKey)
	assert.Equal(t, shared.TransactionTypeTransfer, parsed.Type)
	assert.Equal(t, "A", *parsed.OriginKey)
	assert.Equal(t, "B", *parsed.DestinationKey)
	assert.True(t, c.Amount.Equal(parsed.Amount))
	assert.Equal(t, now, parsed.Timestamp)
	assert.Equal(t, string(original), parsed.OriginalPayload)
}

func TestParseConfirmation_RejectsOtherKinds(t *testing.T) {
	_, err := ParseConfirmation(nil, []byte(`{"event_id":"k","tipo_evento":"TRANSACTION_FAILED","tipo":"DEPOSITO","monto":"1"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	c, err := ParseConfirmation(nil, []byte(`{"event_id":"k","tipo_evento":"TRANSACTION_CONFIRMED","tipo":"DEPOSITO","curp_destino":"D","monto":"1","payload_original":"{}"}`))
	require.NoError(t, err)
	assert.Nil(t, c.OriginKey)
	assert.Equal(t, "D", *c.DestinationKey)
	assert.Equal(t, "{}", c.OriginalPayload)
}
