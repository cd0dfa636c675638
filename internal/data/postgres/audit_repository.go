package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/settlement-ledger/internal/domain/audit"
	"github.com/settlement-ledger/internal/platform/persistence"
)

// AuditRepository implements the audit.Repository interface for PostgreSQL
type AuditRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(logger *slog.Logger, querier persistence.Querier) audit.Repository {
	return &AuditRepository{
		querier: querier,
		logger:  logger,
	}
}

// WithTx returns a repository bound to the given transaction
func (r *AuditRepository) WithTx(tx pgx.Tx) audit.Repository {
	return &AuditRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends an audit record
func (r *AuditRepository) Create(ctx context.Context, record *audit.Record) error {
	query := `
		INSERT INTO audit_records (id, transaction_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query,
		record.ID,
		record.TransactionID,
		string(record.EventType),
		[]byte(record.Payload),
		record.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create audit record",
			"transaction_id", record.TransactionID.String(),
			"event_type", string(record.EventType),
			"error", err)
		return fmt.Errorf("failed to create audit record: %w", err)
	}
	return nil
}

// CountByTransactionID reports how many audit records exist for a transaction
func (r *AuditRepository) CountByTransactionID(ctx context.Context, transactionID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM audit_records WHERE transaction_id = $1`

	var count int
	if err := r.querier.QueryRow(ctx, query, transactionID).Scan(&count); err != nil {
		r.logger.Error("Failed to count audit records", "transaction_id", transactionID.String(), "error", err)
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}
