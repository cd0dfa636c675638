package components

import (
	"log/slog"

	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/domain/audit"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/settlement-ledger/internal/platform/persistence"
	"github.com/settlement-ledger/internal/transaction_processor/service"
)

// CreateProcessingService creates a new Processor with all its dependencies.
func CreateProcessingService(
	uow persistence.UnitOfWork,
	accountRepo account.Repository,
	txRepo transaction.Repository,
	auditRepo audit.Repository,
	logger *slog.Logger,
) service.Processor {
	engine := NewSettlementEngine(accountRepo, logger.With("component", "settlement_engine"))
	auditor := NewAuditRecorder(auditRepo, logger.With("component", "audit_recorder"))

	return service.NewProcessingService(
		uow,
		txRepo,
		engine,
		auditor,
		logger.With("component", "processor"),
	)
}
