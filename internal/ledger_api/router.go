package ledger_api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/settlement-ledger/internal/ledger_api/handler"
	"github.com/settlement-ledger/internal/ledger_api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	transactionHandler *handler.TransactionHandler,
	healthHandler *handler.HealthHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints, read-only
	v1 := r.Group("/api/v1")
	{
		accounts := v1.Group("/accounts")
		{
			accounts.GET("/:account_key", accountHandler.GetByKey)
		}

		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:idempotency_key", transactionHandler.GetByKey)
			transactions.GET("/:idempotency_key/ledger", transactionHandler.GetLedgerEntry)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", healthHandler.Check)
}
