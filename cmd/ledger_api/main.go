package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/settlement-ledger/internal/config"
	"github.com/settlement-ledger/internal/data/mongo"
	"github.com/settlement-ledger/internal/data/postgres"
	"github.com/settlement-ledger/internal/data/redis"
	"github.com/settlement-ledger/internal/ledger_api"
	"github.com/settlement-ledger/internal/ledger_api/handler"
	"github.com/settlement-ledger/internal/ledger_api/service"
	"github.com/settlement-ledger/internal/logger"
	"github.com/settlement-ledger/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	accountRepo := postgres.NewAccountRepository(log, postgresDB.Querier())
	txRepo := postgres.NewTransactionRepository(log, postgresDB.Querier())
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())
	cache := redis.NewTransactionCache(redisClient, cfg.Redis.TransactionCacheTTL)

	accountService := service.NewAccountService(accountRepo)
	transactionService := service.NewTransactionService(txRepo, ledgerRepo, cache, log.With("component", "transaction_service"))

	server := ledger_api.NewServer(log, cfg, accountService, transactionService, map[string]handler.Pinger{
		"postgres": postgresDB.Ping,
		"mongodb":  mongoDB.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop taking requests before the stores go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	postgresDB.Close()

	if closeErr := mongoDB.Close(shutdownCtx); closeErr != nil {
		log.Error("Error closing MongoDB connection", "error", closeErr)
		err = closeErr
	}

	if closeErr := redisClient.Close(); closeErr != nil {
		log.Error("Error closing Redis client", "error", closeErr)
		err = closeErr
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
