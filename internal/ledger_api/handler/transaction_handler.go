package handler

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/settlement-ledger/internal/domain/ledger"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/settlement-ledger/internal/ledger_api/service"
)

// TransactionHandler handles HTTP requests for settlement lookups
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// GetByKey returns the settlement state for an idempotency key. A PENDING row means
// a worker is still settling it or its unit of work was rolled back and awaits redelivery.
func (h *TransactionHandler) GetByKey(c *gin.Context) {
	key, ok := idempotencyKeyParam(c)
	if !ok {
		return
	}

	tx, err := h.transactionService.GetTransaction(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound{}) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		h.logger.Error("Failed to get transaction", "idempotency_key", key, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapTransactionToResponse(tx))
}

// GetLedgerEntry returns the downstream audit entry of a confirmed settlement
func (h *TransactionHandler) GetLedgerEntry(c *gin.Context) {
	key, ok := idempotencyKeyParam(c)
	if !ok {
		return
	}

	entry, err := h.transactionService.GetLedgerEntry(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound{}) {
			RespondNotFound(c, "Ledger entry not found")
			return
		}
		h.logger.Error("Failed to get ledger entry", "idempotency_key", key, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapLedgerEntryToResponse(entry))
}

func idempotencyKeyParam(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.Param("idempotency_key"))
	if key == "" {
		RespondBadRequest(c, "Idempotency key is required")
		return "", false
	}
	return key, true
}

func mapTransactionToResponse(tx *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		IdempotencyKey: tx.IdempotencyKey,
		Type:           string(tx.Type),
		OriginKey:      deref(tx.OriginKey),
		DestinationKey: deref(tx.DestinationKey),
		Amount:         tx.Amount.StringFixed(2),
		Status:         string(tx.Status),
		FailureReason:  deref(tx.FailureReason),
		CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
	}

	if tx.ConfirmedAt != nil {
		response.ConfirmedAt = tx.ConfirmedAt.Format(time.RFC3339)
	}

	return response
}

func mapLedgerEntryToResponse(entry *ledger.Entry) LedgerEntryResponse {
	return LedgerEntryResponse{
		IdempotencyKey: entry.IdempotencyKey,
		Type:           string(entry.Type),
		OriginKey:      deref(entry.OriginKey),
		DestinationKey: deref(entry.DestinationKey),
		Amount:         entry.Amount,
		ConfirmedAt:    entry.ConfirmedAt.Format(time.RFC3339),
		ReceivedAt:     entry.ReceivedAt.Format(time.RFC3339),
		Topic:          entry.Source.Topic,
		Partition:      entry.Source.Partition,
		Offset:         entry.Source.Offset,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
