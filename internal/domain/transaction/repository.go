package transaction

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository manages transaction rows. Status changes only happen on a row
// locked through LockByIdempotencyKey within the same unit of work.
type Repository interface {
	// InsertIfAbsent stores a PENDING row unless the idempotency key already exists.
	// Reports whether this call inserted the row.
	InsertIfAbsent(ctx context.Context, tx *Transaction) (bool, error)
	LockByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Transaction, error)
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Transaction, error)
	MarkConfirmed(ctx context.Context, idempotencyKey string, at time.Time) error
	MarkFailed(ctx context.Context, idempotencyKey string, reason string, at time.Time) error
	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates a missing transaction row
type ErrTransactionNotFound struct {
	IdempotencyKey string
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.IdempotencyKey
}

// Is matches any ErrTransactionNotFound when the target key is empty
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.IdempotencyKey == "" || t.IdempotencyKey == e.IdempotencyKey
}
