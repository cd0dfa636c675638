package producers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/settlement-ledger/internal/config"
	"github.com/settlement-ledger/internal/domain/envelope"
)

// ConfirmationProducer publishes confirmations synchronously and waits for all
// in-sync replicas, bounded by the configured publish timeout.
type ConfirmationProducer struct {
	logger  *slog.Logger
	writer  KafkaWriter // Interface for testability
	topic   string
	timeout time.Duration
}

// NewConfirmationProducer creates the producer and ensures the confirmation topic exists
func NewConfirmationProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ConfirmationProducer, error) {
	if cfg.ConfirmationTopic == "" {
		return nil, fmt.Errorf("kafka confirmation topic is not configured")
	}

	if err := EnsureTopic(ctx, logger, cfg, cfg.ConfirmationTopic); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.ConfirmationTopic,
		Balancer:     &kafka.Hash{}, // same idempotency key, same partition
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.PublishTimeout,
	}

	return &ConfirmationProducer{
		logger:  logger,
		writer:  writer,
		topic:   cfg.ConfirmationTopic,
		timeout: cfg.PublishTimeout,
	}, nil
}

// Publish writes one confirmation keyed by its idempotency key, with the routing
// fields duplicated as headers
func (p *ConfirmationProducer) Publish(ctx context.Context, confirmation *envelope.Confirmation) error {
	body, err := confirmation.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal confirmation: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(confirmation.IdempotencyKey),
		Value:   body,
		Headers: headers(confirmation.Attributes()),
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish confirmation",
			"topic", p.topic,
			"idempotency_key", confirmation.IdempotencyKey,
			"error", err,
		)
		return fmt.Errorf("failed to publish confirmation to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published confirmation",
		"topic", p.topic,
		"idempotency_key", confirmation.IdempotencyKey,
	)
	return nil
}

func (p *ConfirmationProducer) Close() error {
	p.logger.Info("Closing confirmation producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close confirmation writer for topic %s: %w", p.topic, err)
	}
	return nil
}

func headers(attrs map[string]string) []kafka.Header {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(attrs[k])})
	}
	return out
}
