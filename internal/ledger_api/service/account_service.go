package service

import (
	"context"

	"github.com/settlement-ledger/internal/domain/account"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accountRepo account.Repository
}

// NewAccountService creates a new account service
func NewAccountService(accountRepo account.Repository) AccountService {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
	}
}

// GetAccount returns both balance pools, or ErrAccountNotFound
func (s *AccountServiceImpl) GetAccount(ctx context.Context, accountKey string) (*account.Account, error) {
	return s.accountRepo.GetByKey(ctx, accountKey)
}
