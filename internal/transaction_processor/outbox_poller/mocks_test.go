package outbox_poller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/outbox"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockConfirmationPublisher struct {
	mock.Mock
}

func (m *MockConfirmationPublisher) Publish(ctx context.Context, c *envelope.Confirmation) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockConfirmationPublisher) Close() error {
	return m.Called().Error(0)
}

type MockConfirmationRelay struct {
	mock.Mock
}

func (m *MockConfirmationRelay) Relay(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func gapMessage(id int64, key string, attempts int) *outbox.Message {
	destination := "X"
	msg, err := outbox.NewMessage(uuid.New(), envelope.NewConfirmation(key, shared.TransactionTypeDeposit,
		nil, &destination, decimal.NewFromInt(40), []byte(`{"id":"`+key+`"}`), time.Now()))
	if err != nil {
		panic(err)
	}
	msg.ID = id
	msg.Attempts = attempts
	return msg
}
