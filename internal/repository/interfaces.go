package repository

import (
	"context"
	"errors"

	"cashoverflow/internal/domain"

	"github.com/shopspring/decimal"
)

// BalanceChange describes one account balance mutation. OldBalance is the
// balance the caller observed; a store must reject the whole change set if any
// account no longer holds its expected balance.
type BalanceChange struct {
	AccountID  string
	OldBalance decimal.Decimal
	NewBalance decimal.Decimal
}

type AccountRepository interface {
	Save(ctx context.Context, account *domain.BankAccount) error
	GetByID(ctx context.Context, id string) (*domain.BankAccount, error)
	GetByOwnerID(ctx context.Context, ownerID string) ([]*domain.BankAccount, error)
	// ApplyBalances applies every change or none of them.
	ApplyBalances(ctx context.Context, changes []BalanceChange) error
}

type UserRepository interface {
	Save(ctx context.Context, user *domain.UserAccount) error
	GetByID(ctx context.Context, id string) (*domain.UserAccount, error)
	GetByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
}

type TransferRequestRepository interface {
	Save(ctx context.Context, request *domain.TransferRequest) error
	GetByID(ctx context.Context, id string) (*domain.TransferRequest, error)
	// ListByAccountIDs returns requests referencing any of the given accounts
	// on either side, ordered by creation time ascending (ID as tiebreaker).
	ListByAccountIDs(ctx context.Context, accountIDs []string) ([]*domain.TransferRequest, error)
	// UpdateStatus transitions the request from one status to another and
	// fails with ErrTransactionConflict if the request is not in the expected
	// status anymore.
	UpdateStatus(ctx context.Context, id string, from, to domain.RequestStatus) error
}

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("duplicate entry")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionConflict = errors.New("transaction conflict")
)
