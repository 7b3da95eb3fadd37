package memory

import (
	"context"
	"fmt"
	"sync"

	"cashoverflow/internal/domain"
	"cashoverflow/internal/repository"
)

type UserRepository struct {
	mu        sync.RWMutex
	users     map[string]*domain.UserAccount
	nameIndex map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:     make(map[string]*domain.UserAccount),
		nameIndex: make(map[string]string),
	}
}

func (r *UserRepository) Save(ctx context.Context, user *domain.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return fmt.Errorf("%w: user %s", repository.ErrDuplicate, user.ID)
	}
	if _, exists := r.nameIndex[user.Username]; exists {
		return fmt.Errorf("%w: username %s", repository.ErrDuplicate, user.Username)
	}

	cp := *user
	r.users[cp.ID] = &cp
	r.nameIndex[cp.Username] = cp.ID

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}
	cp := *user
	return &cp, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.nameIndex[username]
	if !exists {
		return nil, fmt.Errorf("%w: username %s", repository.ErrNotFound, username)
	}
	cp := *r.users[id]
	return &cp, nil
}
