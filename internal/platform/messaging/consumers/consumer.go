package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/settlement-ledger/internal/config"
)

const commitTimeout = 5 * time.Second

// Handler receives every delivery and must eventually Ack or Nack it.
// It may return before settling; the message stays uncommitted until then.
type Handler func(ctx context.Context, msg *Message)

// Reader is the part of kafka.Reader the consumer uses
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterPublisher receives messages that exhausted their delivery attempts
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
}

// RedeliveryPolicy bounds how often a nacked message is handed back to the handler
type RedeliveryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

// delay is the wait before delivering attempt+1: Backoff doubled per previous attempt, capped at MaxBackoff
func (p RedeliveryPolicy) delay(attempt int) time.Duration {
	d := p.Backoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// KafkaConsumer fetches from one topic in a consumer group and gives the broker
// ack/nack semantics: offsets are committed only up to the contiguous acknowledged
// prefix of each partition, and nacked messages are redelivered locally after backoff.
type KafkaConsumer struct {
	reader  Reader
	logger  *slog.Logger
	dlq     DeadLetterPublisher
	policy  RedeliveryPolicy
	tracker *offsetTracker
	topic   string
	groupID string

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaConsumer creates a group consumer for topic. dlq may be nil, in which case
// exhausted messages are logged and acknowledged.
func NewKafkaConsumer(logger *slog.Logger, cfg *config.KafkaConfig, topic, groupID string, dlq DeadLetterPublisher) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Brokers},
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: cfg.StartOffset,
	})
	return newKafkaConsumer(logger, reader, dlq, RedeliveryPolicy{
		MaxAttempts: cfg.MaxDeliveryAttempts,
		Backoff:     cfg.RedeliveryBackoff,
		MaxBackoff:  cfg.RedeliveryMaxBackoff,
	}, topic, groupID)
}

func newKafkaConsumer(logger *slog.Logger, reader Reader, dlq DeadLetterPublisher, policy RedeliveryPolicy, topic, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		reader:  reader,
		logger:  logger.With("topic", topic, "group_id", groupID),
		dlq:     dlq,
		policy:  policy,
		tracker: newOffsetTracker(),
		topic:   topic,
		groupID: groupID,
	}
}

// Subscribe starts the fetch loop in the background and returns immediately
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("message handler is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("consumer is closed")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Subscribed to Kafka topic")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.fetchLoop(ctx, handler)
	}()
	return nil
}

func (c *KafkaConsumer) fetchLoop(ctx context.Context, handler Handler) {
	for {
		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Context canceled, stopping consumer")
				return
			}
			c.logger.Error("Failed to fetch message from Kafka", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if !c.tracker.track(raw) {
			c.logger.Debug("Skipping message already in flight",
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			continue
		}

		c.logger.Debug("Received message from Kafka",
			"partition", raw.Partition,
			"offset", raw.Offset,
			"key", string(raw.Key),
		)
		c.deliver(ctx, handler, raw, 1)
	}
}

func (c *KafkaConsumer) deliver(ctx context.Context, handler Handler, raw kafka.Message, attempt int) {
	msg := newMessage(raw, attempt)
	msg.ack = func() { c.commit(ctx, raw) }
	msg.nack = func(reason error) { c.redeliver(ctx, handler, raw, attempt, reason) }
	handler(ctx, msg)
}

func (c *KafkaConsumer) commit(ctx context.Context, raw kafka.Message) {
	err := c.tracker.ack(raw, func(upTo kafka.Message) error {
		// Commit even while shutting down so acknowledged work is not replayed
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		defer cancel()
		return c.reader.CommitMessages(commitCtx, upTo)
	})
	if err != nil {
		c.logger.Error("Failed to commit offset",
			"partition", raw.Partition,
			"offset", raw.Offset,
			"error", err,
		)
		return
	}
	c.logger.Debug("Message acknowledged", "partition", raw.Partition, "offset", raw.Offset)
}

func (c *KafkaConsumer) redeliver(ctx context.Context, handler Handler, raw kafka.Message, attempt int, reason error) {
	log := c.logger.With("partition", raw.Partition, "offset", raw.Offset, "key", string(raw.Key), "attempt", attempt)

	if c.policy.MaxAttempts > 0 && attempt >= c.policy.MaxAttempts {
		c.deadLetter(ctx, handler, raw, attempt, reason, log)
		return
	}

	delay := c.policy.delay(attempt)
	log.Warn("Message nacked, scheduling redelivery", "delay", delay, "reason", errString(reason))

	// Left uncommitted if shutdown wins; the partition owner redelivers it after restart
	c.after(ctx, delay, func() { c.deliver(ctx, handler, raw, attempt+1) })
}

// after runs fn once d has elapsed unless ctx ends first or the consumer is closed
func (c *KafkaConsumer) after(ctx context.Context, d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
		fn()
	}()
}

func (c *KafkaConsumer) deadLetter(ctx context.Context, handler Handler, raw kafka.Message, attempt int, reason error, log *slog.Logger) {
	dlqReason := fmt.Sprintf("delivery attempts exhausted (%d): %s", attempt, errString(reason))
	if c.dlq == nil {
		log.Error("Message exhausted delivery attempts, dropping without DLQ", "reason", dlqReason)
		c.commit(ctx, raw)
		return
	}

	if err := c.dlq.PublishToDLQ(ctx, string(raw.Key), raw.Value, dlqReason); err != nil {
		// Never commit a message that is neither handled nor parked; retry at the backoff ceiling
		log.Error("Failed to park exhausted message in DLQ, will retry", "error", err)
		c.after(ctx, c.policy.delay(attempt), func() { c.deadLetter(ctx, handler, raw, attempt, reason, log) })
		return
	}

	log.Warn("Message moved to DLQ after exhausting delivery attempts", "reason", dlqReason)
	c.commit(ctx, raw)
}

// Close stops fetching, abandons scheduled redeliveries and closes the reader.
// Unacknowledged messages stay uncommitted.
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()

	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return "unspecified"
	}
	return err.Error()
}
