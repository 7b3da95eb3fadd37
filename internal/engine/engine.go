// Package engine implements the fund-transfer engine: immediate transfers
// between a user's own accounts and the pending-request lifecycle for
// transfers between different users' accounts.
//
// Every balance mutation is a single atomic unit: a debit and its matching
// credit apply together or not at all. Account access is serialized through a
// per-key lock table; transient persistence conflicts are retried a bounded
// number of times before surfacing to the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashoverflow/internal/domain"
	"cashoverflow/internal/repository"
	"cashoverflow/pkg/validator"

	"github.com/shopspring/decimal"
)

const (
	defaultLockWait   = 2 * time.Second
	defaultMaxRetries = 3
	defaultRetryBase  = 25 * time.Millisecond
)

// EventPublisher announces lifecycle transitions. Publish failures never
// abort an operation.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

type Engine struct {
	accounts   repository.AccountRepository
	requests   repository.TransferRequestRepository
	validator  *validator.TransferValidator
	events     EventPublisher
	locks      *lockTable
	logger     *slog.Logger
	maxRetries int
	retryBase  time.Duration
}

func New(
	accounts repository.AccountRepository,
	requests repository.TransferRequestRepository,
	events EventPublisher,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = nopPublisher{}
	}

	return &Engine{
		accounts:   accounts,
		requests:   requests,
		validator:  validator.NewTransferValidator(),
		events:     events,
		locks:      newLockTable(defaultLockWait),
		logger:     logger,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
}

// TransferFunds moves the amount between two accounts owned by the same user
// and returns the user's full updated account list. On any precondition
// failure no balance changes.
func (e *Engine) TransferFunds(ctx context.Context, user *domain.UserAccount, ft domain.FundTransfer) ([]*domain.BankAccount, error) {
	if err := e.validator.ValidateTransfer(ft); err != nil {
		return nil, err
	}

	unlock, err := e.locks.acquire(ctx, ft.FromAccountID, ft.ToAccountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := e.moveFunds(ctx, ft.FromAccountID, ft.ToAccountID, ft.Amount, user.ID); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Transfer completed",
		slog.String("from_account", ft.FromAccountID),
		slog.String("to_account", ft.ToAccountID),
		slog.String("amount", ft.Amount.String()))
	e.publish(ctx, "transfer.completed", map[string]string{
		"from_account_id": ft.FromAccountID,
		"to_account_id":   ft.ToAccountID,
		"amount":          ft.Amount.String(),
	})

	return e.accounts.GetByOwnerID(ctx, user.ID)
}

// CreateRequest records a pending between-users transfer. The source account
// must belong to the initiating user; the destination must exist. Balance is
// deliberately not checked here: funds only need to be available at the
// moment the recipient completes the request.
func (e *Engine) CreateRequest(ctx context.Context, user *domain.UserAccount, fromAccountID, toAccountID string, amount decimal.Decimal) (*domain.TransferRequest, error) {
	if err := e.validator.ValidateRequest(fromAccountID, toAccountID, amount); err != nil {
		return nil, err
	}

	from, err := e.accounts.GetByID(ctx, fromAccountID)
	if err != nil {
		return nil, err
	}
	if from.OwnerID != user.ID {
		return nil, fmt.Errorf("%w: account %s", ErrNotOwner, fromAccountID)
	}
	if _, err := e.accounts.GetByID(ctx, toAccountID); err != nil {
		return nil, err
	}

	request := domain.NewTransferRequest(fromAccountID, toAccountID, amount)
	if err := e.requests.Save(ctx, request); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Transfer request created",
		slog.String("request_id", request.ID),
		slog.String("from_account", fromAccountID),
		slog.String("to_account", toAccountID),
		slog.String("amount", amount.String()))
	e.publish(ctx, "request.created", request)

	return request, nil
}

// CompleteTransfer executes a pending request: the source balance is
// re-checked at this moment, the debit and credit apply atomically and the
// request becomes completed. Completing a request that is no longer pending
// fails with ErrInvalidRequestState and moves no funds. If the source account
// can no longer cover the amount the request stays pending.
func (e *Engine) CompleteTransfer(ctx context.Context, requestID string) (*domain.TransferRequest, error) {
	request, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locks.acquire(ctx, request.FromAccountID, request.ToAccountID, requestKey(request.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	request, err = e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: request %s is %s", ErrInvalidRequestState, request.ID, request.Status)
	}

	// Claim the request before touching balances so a second completer,
	// even in another process, can never move the funds twice.
	if err := e.requests.UpdateStatus(ctx, request.ID, domain.StatusPending, domain.StatusCompleted); err != nil {
		if errors.Is(err, repository.ErrTransactionConflict) {
			return nil, fmt.Errorf("%w: request %s", ErrInvalidRequestState, request.ID)
		}
		return nil, err
	}

	if err := e.moveFunds(ctx, request.FromAccountID, request.ToAccountID, request.Amount, ""); err != nil {
		// No funds moved. Put the request back so the payer can fund the
		// account and the recipient can try again.
		if revertErr := e.requests.UpdateStatus(ctx, request.ID, domain.StatusCompleted, domain.StatusPending); revertErr != nil {
			e.logger.ErrorContext(ctx, "Failed to revert request status",
				slog.String("request_id", request.ID),
				slog.String("error", revertErr.Error()))
		}
		return nil, err
	}

	request.Status = domain.StatusCompleted

	e.logger.InfoContext(ctx, "Transfer request completed",
		slog.String("request_id", request.ID),
		slog.String("amount", request.Amount.String()))
	e.publish(ctx, "request.completed", request)

	return request, nil
}

// RemoveRequest marks a pending request removed. Balances are untouched.
func (e *Engine) RemoveRequest(ctx context.Context, requestID string) (*domain.TransferRequest, error) {
	request, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locks.acquire(ctx, requestKey(request.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	request, err = e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: request %s is %s", ErrInvalidRequestState, request.ID, request.Status)
	}

	if err := e.requests.UpdateStatus(ctx, request.ID, domain.StatusPending, domain.StatusRemoved); err != nil {
		if errors.Is(err, repository.ErrTransactionConflict) {
			return nil, fmt.Errorf("%w: request %s", ErrInvalidRequestState, request.ID)
		}
		return nil, err
	}

	request.Status = domain.StatusRemoved
	e.publish(ctx, "request.removed", request)

	return request, nil
}

// ListRequestsForUser returns every request referencing one of the user's
// accounts on either side, ordered by creation time ascending.
func (e *Engine) ListRequestsForUser(ctx context.Context, user *domain.UserAccount) ([]*domain.TransferRequest, error) {
	accounts, err := e.accounts.GetByOwnerID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	accountIDs := make([]string, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.ID)
	}

	return e.requests.ListByAccountIDs(ctx, accountIDs)
}

// moveFunds applies the debit and credit as one atomic unit. The caller must
// hold the locks for both accounts. When ownerID is non-empty both accounts
// must belong to that user. Transient persistence conflicts are retried with
// exponential backoff up to maxRetries before the error surfaces.
func (e *Engine) moveFunds(ctx context.Context, fromAccountID, toAccountID string, amount decimal.Decimal, ownerID string) error {
	for attempt := 0; ; attempt++ {
		from, err := e.accounts.GetByID(ctx, fromAccountID)
		if err != nil {
			return err
		}
		to, err := e.accounts.GetByID(ctx, toAccountID)
		if err != nil {
			return err
		}

		if ownerID != "" {
			if from.OwnerID != ownerID {
				return fmt.Errorf("%w: account %s", ErrNotOwner, from.ID)
			}
			if to.OwnerID != ownerID {
				return fmt.Errorf("%w: account %s", ErrNotOwner, to.ID)
			}
		}

		if from.Balance.LessThan(amount) {
			return fmt.Errorf("%w: account %s holds %s, transfer needs %s",
				repository.ErrInsufficientFunds, from.ID, from.Balance, amount)
		}

		err = e.accounts.ApplyBalances(ctx, []repository.BalanceChange{
			{AccountID: from.ID, OldBalance: from.Balance, NewBalance: from.Balance.Sub(amount)},
			{AccountID: to.ID, OldBalance: to.Balance, NewBalance: to.Balance.Add(amount)},
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrTransactionConflict) || attempt >= e.maxRetries {
			return err
		}

		e.logger.WarnContext(ctx, "Balance write conflict, retrying",
			slog.String("from_account", fromAccountID),
			slog.Int("attempt", attempt+1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.retryBase << attempt):
		}
	}
}

func (e *Engine) publish(ctx context.Context, routingKey string, payload any) {
	if err := e.events.Publish(ctx, routingKey, payload); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			slog.String("routing_key", routingKey),
			slog.String("error", err.Error()))
	}
}

func requestKey(id string) string {
	return "request/" + id
}
