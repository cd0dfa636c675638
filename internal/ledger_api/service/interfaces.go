package service

import (
	"context"

	"github.com/settlement-ledger/internal/domain/account"
	"github.com/settlement-ledger/internal/domain/ledger"
	"github.com/settlement-ledger/internal/domain/transaction"
)

// AccountService defines read operations on account balances
type AccountService interface {
	GetAccount(ctx context.Context, accountKey string) (*account.Account, error)
}

// TransactionService defines read operations on settlements
type TransactionService interface {
	GetTransaction(ctx context.Context, idempotencyKey string) (*transaction.Transaction, error)
	GetLedgerEntry(ctx context.Context, idempotencyKey string) (*ledger.Entry, error)
}

// TransactionCache holds terminal transactions in front of the relational store
type TransactionCache interface {
	Get(ctx context.Context, idempotencyKey string) (*transaction.Transaction, error)
	Set(ctx context.Context, tx *transaction.Transaction) (bool, error)
}
