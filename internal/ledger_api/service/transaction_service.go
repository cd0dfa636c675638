package service

import (
	"context"
	"log/slog"

	"github.com/settlement-ledger/internal/domain/ledger"
	"github.com/settlement-ledger/internal/domain/transaction"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	txRepo     transaction.Repository
	ledgerRepo ledger.Repository
	cache      TransactionCache
	logger     *slog.Logger
}

// NewTransactionService creates a new transaction service. cache may be nil.
func NewTransactionService(
	txRepo transaction.Repository,
	ledgerRepo ledger.Repository,
	cache TransactionCache,
	logger *slog.Logger,
) TransactionService {
	return &TransactionServiceImpl{
		txRepo:     txRepo,
		ledgerRepo: ledgerRepo,
		cache:      cache,
		logger:     logger,
	}
}

// GetTransaction reads through the cache. Cache failures never fail the read.
func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, idempotencyKey string) (*transaction.Transaction, error) {
	logger := s.logger.With("idempotency_key", idempotencyKey)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, idempotencyKey)
		if err != nil {
			logger.Warn("Transaction cache read failed, falling back to store", "error", err)
		} else if cached != nil {
			logger.Debug("Transaction served from cache")
			return cached, nil
		}
	}

	tx, err := s.txRepo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if _, err := s.cache.Set(ctx, tx); err != nil {
			logger.Warn("Failed to cache transaction", "error", err)
		}
	}
	return tx, nil
}

// GetLedgerEntry returns the downstream audit entry, or ErrEntryNotFound while the
// confirmation has not been consumed yet
func (s *TransactionServiceImpl) GetLedgerEntry(ctx context.Context, idempotencyKey string) (*ledger.Entry, error) {
	return s.ledgerRepo.GetByIdempotencyKey(ctx, idempotencyKey)
}
