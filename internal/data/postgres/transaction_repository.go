package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/shared"
	"github.com/settlement-ledger/internal/domain/transaction"
	"github.com/settlement-ledger/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, idempotency_key, type, origin_key, destination_key, amount::text, status, failure_reason, confirmed_at, created_at`

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, querier persistence.Querier) transaction.Repository {
	return &TransactionRepository{
		querier: querier,
		logger:  logger,
	}
}

// WithTx returns a repository bound to the given transaction
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// InsertIfAbsent relies on the unique idempotency key so concurrent first deliveries
// converge on one row; the loser simply sees zero affected rows.
func (r *TransactionRepository) InsertIfAbsent(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", transaction.ErrInvariantViolation, err)
	}

	query := `
		INSERT INTO transactions (id, idempotency_key, type, origin_key, destination_key, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		tx.ID,
		tx.IdempotencyKey,
		string(tx.Type),
		tx.OriginKey,
		tx.DestinationKey,
		tx.Amount.String(),
		string(tx.Status),
		tx.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert transaction", "idempotency_key", tx.IdempotencyKey, "error", err)
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// LockByIdempotencyKey serializes every processor working on the same key
func (r *TransactionRepository) LockByIdempotencyKey(ctx context.Context, idempotencyKey string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1 FOR UPDATE`
	return r.get(ctx, query, idempotencyKey, "lock")
}

// GetByIdempotencyKey reads without locking
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return r.get(ctx, query, idempotencyKey, "get")
}

func (r *TransactionRepository) get(ctx context.Context, query, idempotencyKey, op string) (*transaction.Transaction, error) {
	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{IdempotencyKey: idempotencyKey}
		}
		r.logger.Error("Failed to read transaction", "op", op, "idempotency_key", idempotencyKey, "error", err)
		return nil, fmt.Errorf("failed to %s transaction: %w", op, err)
	}
	return tx, nil
}

// MarkConfirmed moves a PENDING row to CONFIRMED
func (r *TransactionRepository) MarkConfirmed(ctx context.Context, idempotencyKey string, at time.Time) error {
	query := `
		UPDATE transactions
		SET status = $2, confirmed_at = COALESCE(confirmed_at, $3)
		WHERE idempotency_key = $1 AND status = 'PENDING'
	`
	return r.finish(ctx, query, idempotencyKey, string(shared.TransactionStatusConfirmed), at.UTC())
}

// MarkFailed moves a PENDING row to FAILED with the business reason
func (r *TransactionRepository) MarkFailed(ctx context.Context, idempotencyKey string, reason string, at time.Time) error {
	query := `
		UPDATE transactions
		SET status = $2, confirmed_at = COALESCE(confirmed_at, $3), failure_reason = $4
		WHERE idempotency_key = $1 AND status = 'PENDING'
	`
	return r.finish(ctx, query, idempotencyKey, string(shared.TransactionStatusFailed), at.UTC(), reason)
}

func (r *TransactionRepository) finish(ctx context.Context, query, idempotencyKey string, args ...interface{}) error {
	result, err := r.querier.Exec(ctx, query, append([]interface{}{idempotencyKey}, args...)...)
	if err != nil {
		r.logger.Error("Failed to update transaction status", "idempotency_key", idempotencyKey, "error", err)
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	// The caller holds the row lock and has seen it PENDING
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: no pending row for %s", transaction.ErrInvariantViolation, idempotencyKey)
	}
	return nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var (
		tx             transaction.Transaction
		txType, status string
		amount         string
	)
	err := row.Scan(
		&tx.ID,
		&tx.IdempotencyKey,
		&txType,
		&tx.OriginKey,
		&tx.DestinationKey,
		&amount,
		&status,
		&tx.FailureReason,
		&tx.ConfirmedAt,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Type = shared.TransactionType(txType)
	tx.Status = shared.TransactionStatus(status)
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return &tx, nil
}
