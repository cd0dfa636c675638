package outbox

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	destination := "X"
	confirmation := envelope.NewConfirmation("k-1", shared.TransactionTypeDeposit, nil, &destination,
		decimal.NewFromInt(40), []byte(`{"id":"k-1"}`), time.Now())
	txID := uuid.New()

	beforeCreation := time.Now()
	msg, err := NewMessage(txID, confirmation)
	require.NoError(t, err)

	assert.Equal(t, txID, msg.TransactionID)
	assert.Equal(t, "k-1", msg.IdempotencyKey)
	assert.Equal(t, shared.OutboxStatusPending, msg.Status)
	assert.Equal(t, 1, msg.Attempts)
	require.NotNil(t, msg.LastAttemptAt)
	assert.WithinDuration(t, beforeCreation, msg.CreatedAt, time.Second)

	decoded, err := msg.Confirmation()
	require.NoError(t, err)
	assert.Equal(t, "k-1", decoded.IdempotencyKey)
	assert.Equal(t, shared.EventKindTransactionConfirmed, decoded.EventKind)
	assert.True(t, decimal.NewFromInt(40).Equal(decoded.Amount))
	assert.Equal(t, "X", *decoded.DestinationKey)
}

func TestMessage_ConfirmationRejectsGarbage(t *testing.T) {
	msg := &Message{Payload: []byte(`not-json`)}
	_, err := msg.Confirmation()
	assert.Error(t, err)
}
