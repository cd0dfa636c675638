package handler

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/ledger_api/service"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// GetByKey returns the vault and wallet balances of an account
func (h *AccountHandler) GetByKey(c *gin.Context) {
	key := strings.TrimSpace(c.Param("account_key"))
	if key == "" {
		RespondBadRequest(c, "Account key is required")
		return
	}

	acc, err := h.accountService.GetAccount(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get account", "account_key", key, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		AccountKey:    acc.AccountKey,
		VaultBalance:  acc.VaultBalance.StringFixed(2),
		WalletBalance: acc.WalletBalance.StringFixed(2),
		UpdatedAt:     acc.UpdatedAt.Format(time.RFC3339),
	}
}
