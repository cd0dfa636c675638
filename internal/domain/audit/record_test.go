package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestNewRecord(t *testing.T) {
	txID := uuid.New()
	now := time.Now()

	t.Run("JSONPayloadKeptVerbatim", func(t *testing.T) {
		r := NewRecord(txID, shared.EventKindTransactionConfirmed, []byte(`{"id":"k"}`), now)
		assert.NotEqual(t, uuid.Nil, r.ID)
		assert.Equal(t, txID, r.TransactionID)
		assert.Equal(t, shared.EventKindTransactionConfirmed, r.EventType)
		assert.JSONEq(t, `{"id":"k"}`, string(r.Payload))
	})

	t.Run("TextPayloadQuoted", func(t *testing.T) {
		r := NewRecord(txID, shared.EventKindTransactionFailed, []byte(`plain text`), now)
		assert.Equal(t, `"plain text"`, string(r.Payload))
	})
}
