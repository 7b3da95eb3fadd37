package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cashoverflow/internal/domain"
	"cashoverflow/internal/repository"
)

type AccountRepository struct {
	mu         sync.RWMutex
	accounts   map[string]*domain.BankAccount
	ownerIndex map[string][]string
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts:   make(map[string]*domain.BankAccount),
		ownerIndex: make(map[string][]string),
	}
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.BankAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.ID)
	}

	cp := *account
	cp.UpdatedAt = time.Now()
	r.accounts[cp.ID] = &cp

	r.ownerIndex[cp.OwnerID] = append(r.ownerIndex[cp.OwnerID], cp.ID)

	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.BankAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	cp := *account
	return &cp, nil
}

func (r *AccountRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]*domain.BankAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accountIDs := r.ownerIndex[ownerID]

	result := make([]*domain.BankAccount, 0, len(accountIDs))
	for _, id := range accountIDs {
		if account, exists := r.accounts[id]; exists {
			cp := *account
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// ApplyBalances validates every change against the expected prior balance
// before touching anything, so the whole set applies or none of it does.
func (r *AccountRepository) ApplyBalances(ctx context.Context, changes []repository.BalanceChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range changes {
		account, exists := r.accounts[c.AccountID]
		if !exists {
			return fmt.Errorf("%w: account %s", repository.ErrNotFound, c.AccountID)
		}
		if !account.Balance.Equal(c.OldBalance) {
			return fmt.Errorf("%w: account %s balance changed", repository.ErrTransactionConflict, c.AccountID)
		}
		if c.NewBalance.IsNegative() {
			return fmt.Errorf("%w: account %s", repository.ErrInsufficientFunds, c.AccountID)
		}
	}

	now := time.Now()
	for _, c := range changes {
		account := r.accounts[c.AccountID]
		account.Balance = c.NewBalance
		account.UpdatedAt = now
	}

	return nil
}
