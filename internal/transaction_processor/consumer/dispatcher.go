package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/settlement-ledger/internal/config"
	"github.com/settlement-ledger/internal/domain/envelope"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/settlement-ledger/internal/platform/messaging/consumers"
	"github.com/settlement-ledger/internal/platform/messaging/producers"
	"github.com/settlement-ledger/internal/transaction_processor/service"
)

// Verdict tells the consumer how to settle a delivery
type Verdict int

const (
	VerdictAck Verdict = iota
	VerdictNack
)

func (v Verdict) String() string {
	if v == VerdictNack {
		return "nack"
	}
	return "ack"
}

// Dispatcher runs every inbound settlement request on a bounded worker pool and maps
// the processing result onto ack or nack
type Dispatcher struct {
	processor service.Processor
	publisher producers.ConfirmationPublisher
	gaps      service.GapRecorder
	dlq       consumers.DeadLetterPublisher
	pool      *ants.Pool
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates the dispatcher and its worker pool. dlq may be nil, in which
// case malformed messages are only logged.
func NewDispatcher(
	cfg config.WorkerPoolConfig,
	processor service.Processor,
	publisher producers.ConfirmationPublisher,
	gaps service.GapRecorder,
	dlq consumers.DeadLetterPublisher,
	logger *slog.Logger,
) (*Dispatcher, error) {
	d := &Dispatcher{
		processor: processor,
		publisher: publisher,
		gaps:      gaps,
		dlq:       dlq,
		logger:    logger,
		now:       time.Now,
	}

	pool, err := ants.NewPool(cfg.Size, ants.WithPanicHandler(func(p interface{}) {
		d.logger.Error("Worker panicked while settling message", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	d.pool = pool

	return d, nil
}

// Handle is the consumers.Handler of the settlement topic. Submit blocks while every
// worker is busy, which holds back the fetch loop.
func (d *Dispatcher) Handle(ctx context.Context, msg *consumers.Message) {
	err := d.pool.Submit(func() {
		// Only takes effect if Process panics; settling is once-only.
		defer msg.Nack(errors.New("settlement worker panicked"))

		if d.Process(ctx, msg) == VerdictNack {
			msg.Nack(errors.New("settlement not committed"))
			return
		}
		msg.Ack()
	})
	if err != nil {
		d.logger.Error("Failed to submit message to worker pool",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
		msg.Nack(err)
	}
}

// Process settles one delivery. A unit of work that has begun is never aborted by
// shutdown, so the caller's cancellation is dropped here.
func (d *Dispatcher) Process(ctx context.Context, msg *consumers.Message) Verdict {
	ctx = context.WithoutCancel(ctx)
	logger := d.logger.With("partition", msg.Partition, "offset", msg.Offset, "attempt", msg.Attempt)

	request, err := envelope.ParseSettlementRequest(msg.Headers, msg.Value)
	if err != nil {
		logger.Error("Rejecting malformed settlement request", "error", err)
		d.deadLetter(ctx, msg, err, logger)
		return VerdictAck
	}
	logger = logger.With("idempotency_key", request.IdempotencyKey, "type", string(request.Type))

	outcome, err := d.processor.Settle(ctx, request)
	if err != nil {
		if errors.Is(err, transaction.ErrInvariantViolation) {
			logger.Error("Invariant violation while settling, leaving message for redelivery", "error", err)
		} else {
			logger.Warn("Settlement failed on infrastructure error, leaving message for redelivery", "error", err)
		}
		return VerdictNack
	}

	if !outcome.FreshlyConfirmed() {
		logger.Info("Settlement acknowledged",
			"status", string(outcome.Status()),
			"transitioned", outcome.Transitioned)
		return VerdictAck
	}

	d.publishConfirmation(ctx, request, outcome.Transaction, logger)
	return VerdictAck
}

// publishConfirmation runs after commit. A failed publish never undoes the settlement;
// the confirmation is kept for the relay instead.
func (d *Dispatcher) publishConfirmation(ctx context.Context, request *envelope.SettlementRequest, t *transaction.Transaction, logger *slog.Logger) {
	confirmation := envelope.NewConfirmation(
		t.IdempotencyKey,
		t.Type,
		t.OriginKey,
		t.DestinationKey,
		t.Amount,
		request.RawPayload,
		d.now(),
	)

	err := d.publisher.Publish(ctx, confirmation)
	if err == nil {
		logger.Info("Confirmation published")
		return
	}

	logger.Error("Confirmation publish failed after commit, transaction stays CONFIRMED", "error", err)
	if d.gaps == nil {
		return
	}
	if gapErr := d.gaps.RecordGap(ctx, t, confirmation); gapErr != nil {
		logger.Error("Failed to record confirmation gap, confirmation is lost",
			"publish_error", err,
			"error", gapErr)
	}
}

// deadLetter copies a malformed message to the DLQ. Malformed input is never
// redelivered, so a failed copy only leaves the error log behind.
func (d *Dispatcher) deadLetter(ctx context.Context, msg *consumers.Message, reason error, logger *slog.Logger) {
	if d.dlq == nil {
		logger.Warn("No dead letter publisher configured, dropping malformed message")
		return
	}
	if err := d.dlq.PublishToDLQ(ctx, string(msg.Key), msg.Value, reason.Error()); err != nil {
		logger.Error("Failed to publish malformed message to DLQ, dropping it",
			"dlq_error", err,
			"key", string(msg.Key),
			"value", string(msg.Value))
		return
	}
	logger.Info("Malformed message sent to DLQ")
}

// Running returns the number of busy workers
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Close waits up to timeout for in-flight settlements, then releases the pool
func (d *Dispatcher) Close(timeout time.Duration) error {
	d.logger.Info("Shutting down worker pool", "running_workers", d.pool.Running())
	return d.pool.ReleaseTimeout(timeout)
}
