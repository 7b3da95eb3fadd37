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

type TransferRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.TransferRequest
	index    map[string][]string
}

func NewTransferRequestRepository() *TransferRequestRepository {
	return &TransferRequestRepository{
		requests: make(map[string]*domain.TransferRequest),
		index:    make(map[string][]string),
	}
}

func (r *TransferRequestRepository) Save(ctx context.Context, request *domain.TransferRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[request.ID]; exists {
		return fmt.Errorf("%w: request %s", repository.ErrDuplicate, request.ID)
	}

	cp := *request
	cp.UpdatedAt = time.Now()
	r.requests[cp.ID] = &cp

	r.index[cp.FromAccountID] = append(r.index[cp.FromAccountID], cp.ID)
	if cp.ToAccountID != cp.FromAccountID {
		r.index[cp.ToAccountID] = append(r.index[cp.ToAccountID], cp.ID)
	}

	return nil
}

func (r *TransferRequestRepository) GetByID(ctx context.Context, id string) (*domain.TransferRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, exists := r.requests[id]
	if !exists {
		return nil, fmt.Errorf("%w: request %s", repository.ErrNotFound, id)
	}
	cp := *request
	return &cp, nil
}

func (r *TransferRequestRepository) ListByAccountIDs(ctx context.Context, accountIDs []string) ([]*domain.TransferRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var result []*domain.TransferRequest
	for _, accountID := range accountIDs {
		for _, requestID := range r.index[accountID] {
			if _, ok := seen[requestID]; ok {
				continue
			}
			seen[requestID] = struct{}{}
			cp := *r.requests[requestID]
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

func (r *TransferRequestRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, exists := r.requests[id]
	if !exists {
		return fmt.Errorf("%w: request %s", repository.ErrNotFound, id)
	}
	if request.Status != from {
		return fmt.Errorf("%w: request %s is %s, expected %s",
			repository.ErrTransactionConflict, id, request.Status, from)
	}

	request.Status = to
	request.UpdatedAt = time.Now()

	return nil
}
