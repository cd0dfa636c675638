package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/settlement-ledger/internal/audit_sink"
	"github.com/settlement-ledger/internal/config"
	"github.com/settlement-ledger/internal/data/mongo"
	"github.com/settlement-ledger/internal/logger"
	"github.com/settlement-ledger/internal/platform/messaging/consumers"
	"github.com/settlement-ledger/internal/platform/messaging/producers"
	"github.com/settlement-ledger/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("audit_sink")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Audit Sink",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())
	if err = ledgerRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure ledger indexes", "error", err)
		os.Exit(1)
	}

	if err = producers.EnsureTopic(appCtx, log, &cfg.Kafka, cfg.Kafka.ConfirmationTopic); err != nil {
		log.Error("Failed to ensure confirmation topic", "topic", cfg.Kafka.ConfirmationTopic, "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var dlq consumers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}

	handler := audit_sink.NewConfirmationHandler(ledgerRepo, dlq, log)
	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.ConfirmationTopic, cfg.Kafka.AuditConsumerGroup, dlq)

	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.ConfirmationTopic,
		"group", cfg.Kafka.AuditConsumerGroup,
	)
	if err = kafkaConsumer.Subscribe(appCtx, handler.Handle); err != nil {
		log.Error("Failed to start Kafka consumer", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info("Shutdown signal received")

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	var shutdownErr error
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		shutdownErr = err
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
			shutdownErr = err
		}
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if shutdownErr != nil {
		log.Error("Audit Sink shutdown completed with errors", "error", shutdownErr)
		os.Exit(1)
	}
	log.Info("Audit Sink shutdown completed successfully")
}
