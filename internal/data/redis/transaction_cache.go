// Package redis caches settled transactions for the read API.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/settlement-ledger/internal/domain/transaction"
)

// TransactionCache keeps terminal transactions keyed by idempotency key.
// Terminal rows never change again, so a cached copy cannot go stale.
type TransactionCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewTransactionCache creates a Redis-backed transaction cache
func NewTransactionCache(client *goredis.Client, ttl time.Duration) *TransactionCache {
	return &TransactionCache{
		client: client,
		prefix: "settlement:tx:",
		ttl:    ttl,
	}
}

// Get returns nil, nil on a miss
func (c *TransactionCache) Get(ctx context.Context, idempotencyKey string) (*transaction.Transaction, error) {
	val, err := c.client.Get(ctx, c.prefix+idempotencyKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis transaction get: %w", err)
	}

	var tx transaction.Transaction
	if err := json.Unmarshal(val, &tx); err != nil {
		return nil, fmt.Errorf("redis transaction decode: %w", err)
	}
	return &tx, nil
}

// Set stores tx when it is terminal and reports whether it was cached
func (c *TransactionCache) Set(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	if !tx.Status.IsTerminal() {
		return false, nil
	}

	val, err := json.Marshal(tx)
	if err != nil {
		return false, fmt.Errorf("redis transaction encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+tx.IdempotencyKey, val, c.ttl).Err(); err != nil {
		return false, fmt.Errorf("redis transaction set: %w", err)
	}
	return true, nil
}
