package ledger

import (
	"context"
)

// Repository stores downstream ledger entries
type Repository interface {
	// Create inserts an entry. Returns ErrDuplicateEntry when the idempotency key is already recorded.
	Create(ctx context.Context, entry *Entry) error
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Entry, error)
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	IdempotencyKey string
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.IdempotencyKey
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	// An empty target key matches any ErrEntryNotFound
	if t.IdempotencyKey == "" {
		return true
	}
	return e.IdempotencyKey == t.IdempotencyKey
}

// ErrDuplicateEntry indicates idempotency key uniqueness violation
type ErrDuplicateEntry struct {
	IdempotencyKey string
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry: " + e.IdempotencyKey
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.IdempotencyKey == "" {
		return true
	}
	return e.IdempotencyKey == t.IdempotencyKey
}
