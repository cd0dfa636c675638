package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/settlement-ledger/internal/config"
	"github.com/settlement-ledger/internal/data/postgres"
	"github.com/settlement-ledger/internal/logger"
	"github.com/settlement-ledger/internal/platform/messaging/consumers"
	"github.com/settlement-ledger/internal/platform/messaging/producers"
	"github.com/settlement-ledger/internal/platform/persistence"
	"github.com/settlement-ledger/internal/transaction_processor/components"
	"github.com/settlement-ledger/internal/transaction_processor/consumer"
	"github.com/settlement-ledger/internal/transaction_processor/outbox_poller"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("settlement_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Settlement Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Migrations run as part of the pool setup
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	accountRepo := postgres.NewAccountRepository(log, postgresDB.Querier())
	txRepo := postgres.NewTransactionRepository(log, postgresDB.Querier())
	auditRepo := postgres.NewAuditRepository(log, postgresDB.Querier())
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB.Querier())

	if err = producers.EnsureTopic(appCtx, log, &cfg.Kafka, cfg.Kafka.SettlementTopic); err != nil {
		log.Error("Failed to ensure settlement topic", "topic", cfg.Kafka.SettlementTopic, "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// A nil *DLQProducer must not leak into the interface as a typed nil
	var dlq consumers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}

	confirmationProducer, err := producers.NewConfirmationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize confirmation Kafka producer", "error", err)
		os.Exit(1)
	}

	processor := components.CreateProcessingService(postgresDB, accountRepo, txRepo, auditRepo, log)
	gaps := components.NewGapRecorder(outboxRepo, log.With("component", "gap_recorder"))

	dispatcher, err := consumer.NewDispatcher(cfg.WorkerPool, processor, confirmationProducer, gaps, dlq, log)
	if err != nil {
		log.Error("Failed to initialize dispatcher", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.SettlementTopic, cfg.Kafka.ConsumerGroup, dlq)

	relay := outbox_poller.NewConfirmationRelay(outboxRepo, confirmationProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, relay, log)

	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.SettlementTopic,
		"group", cfg.Kafka.ConsumerGroup,
		"workers", cfg.WorkerPool.Size,
	)
	if err = kafkaConsumer.Subscribe(appCtx, dispatcher.Handle); err != nil {
		log.Error("Failed to start Kafka consumer", "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting confirmation relay",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info("Shutdown signal received")

	// Stop fetching; in-flight settlements keep running to completion
	cancelAppCtx()

	log.Info("Starting graceful shutdown...", "running_workers", dispatcher.Running())

	var shutdownErr error

	// Drain the pool before the consumer so final acks can still commit
	if err = dispatcher.Close(shutdownTimeout); err != nil {
		log.Error("Error draining worker pool", "error", err)
		shutdownErr = err
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		shutdownErr = err
	}

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Confirmation relay stopped")
	case <-time.After(shutdownTimeout):
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err = confirmationProducer.Close(); err != nil {
		log.Error("Error closing confirmation Kafka producer", "error", err)
		shutdownErr = err
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
			shutdownErr = err
		}
	}

	postgresDB.Close()

	if shutdownErr != nil {
		log.Error("Settlement Processor shutdown completed with errors", "error", shutdownErr)
		os.Exit(1)
	}
	log.Info("Settlement Processor shutdown completed successfully")
}
