package engine

import (
	"context"
	"sync"
	"testing"

	"cashoverflow/internal/domain"
	"cashoverflow/internal/repository"
	"cashoverflow/internal/repository/memory"
	"cashoverflow/pkg/validator"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	accounts *memory.AccountRepository
	requests *memory.TransferRequestRepository
	engine   *Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	accounts := memory.NewAccountRepository()
	requests := memory.NewTransferRequestRepository()
	return &env{
		accounts: accounts,
		requests: requests,
		engine:   New(accounts, requests, nil, nil),
	}
}

func (e *env) mustAccount(t *testing.T, id, ownerID string, balance int64) {
	t.Helper()
	err := e.accounts.Save(context.Background(), &domain.BankAccount{
		ID:          id,
		OwnerID:     ownerID,
		Balance:     decimal.NewFromInt(balance),
		Name:        "acct " + id,
		AccountType: domain.TypeChecking,
	})
	require.NoError(t, err)
}

func (e *env) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	account, err := e.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func user(id string) *domain.UserAccount {
	return &domain.UserAccount{ID: id, Username: "user-" + id}
}

func transfer(from, to string, amount int64) domain.FundTransfer {
	return domain.FundTransfer{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.NewFromInt(amount),
	}
}

func TestTransferFunds_Success(t *testing.T) {
	e := newEnv(t)
	e.mustAccount(t, "a1", "u1", 100)
	e.mustAccount(t, "a2", "u1", 10)

	accounts, err := e.engine.TransferFunds(context.Background(), user("u1"), transfer("a1", "a2", 40))
	require.NoError(t, err)

	assert.True(t, e.balance(t, "a1").Equal(decimal.NewFromInt(60)))
	assert.True(t, e.balance(t, "a2").Equal(decimal.NewFromInt(50)))

	require.Len(t, accounts, 2)
	total := accounts[0].Balance.Add(accounts[1].Balance)
	assert.True(t, total.Equal(decimal.NewFromInt(110)), "money must be conserved")
}

func TestTransferFunds_InsufficientFunds(t *testing.T) {
	e := newEnv(t)
	e.mustAccount(t, "a1", "u1", 30)
	e.mustAccount(t, "a2", "u1", 5)

	_, err := e.engine.TransferFunds(context.Background(), user("u1"), transfer("a1", "a2", 50))
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)

	assert.True(t, e.balance(t, "a1").Equal(decimal.NewFromInt(30)))
	assert.True(t, e.balance(t, "a2").Equal(decimal.NewFromInt(5)))
}

func TestTransferFunds_NonPositiveAmountRejectedBeforeLookup(t *testing.T) {
	e := newEnv(t)
	// No accounts exist: validation must fire before any account read.
	_, err := e.engine.TransferFunds(context.Background(), user("u1"), transfer("a1", "a2", 0))
	assert.ErrorIs(t, err, validator.ErrInvalidAmount)

	_, err = e.engine.TransferFunds(context.Background(), user("u1"), transfer("a1", "a2", -7))
	assert.ErrorIs(t, err, validator.ErrInvalidAmount)
}

func TestTransferFunds_SameAccountRejected(t *testing.T) {
	e := newEnv(t)
	e.mustAccount(t, "a1", "u1", 100)

	_, err := e.engine.TransferFunds(context.Background(), user("u1"), transfer("a1", "a1", 10))
	assert.ErrorIs(t, err, validator.ErrSameAccount)
}

func TestTransferFunds_NotOwner(t *testing.T) {
	e := newEnv(t)
	e.mustAccount(t, "a1", "u1", 100)
	e.mustAccount(t, "b1", "u2", 10)

	_, err := e.engine.TransferFunds(context.Background(), user("u1"), transfer("a1", "b1", 10))
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.True(t, e.balance(t, "a1").Equal(decimal.NewFromInt(100)))
	assert.True(t, e.balance(t, "b1").Equal(decimal.NewFromInt(10)))
}

func TestTransferFunds_AccountNotFound(t *testing.T) {
	e := newEnv(t)
	e.mustAccount(t, "a1", "u1", 100)

	_, err := e.engine.TransferFunds(context.Background(), user("u1"), transfer("a1", "missing", 10))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.True(t, e.balance(t, "a1").Equal(decimal.NewFromInt(100)))
}

func TestTransferFunds_ConcurrentOverdraw(t *testing.T) {
	e := newEnv(t)
	e.mustAccount(t, "a1", "u1", 100)
	e.mustAccount(t, "a2", "u1", 0)

	// 20 concurrent transfers of 10 against a balance of 100: at most 10 may
	// succeed and the total debit can never exceed the original balance.
	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := e.engine.TransferFunds(context.Background(), user("u1"), transfer("a1", "a2", 10))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.True(t, e.balance(t, "a1").Equal(decimal.Zero))
	assert.True(t, e.balance(t, "a2").Equal(decimal.NewFromInt(100)))
}

func TestTransferFunds_ConcurrentConservation(t *testing.T) {
	e := newEnv(t)
	e.mustAccount(t, "a1", "u1", 500)
	e.mustAccount(t, "a2", "u1", 500)
	e.mustAccount(t, "a3", "u1", 500)

	// Transfers in both directions between overlapping account pairs.
	pairs := [][2]string{{"a1", "a2"}, {"a2", "a3"}, {"a3", "a1"}, {"a2", "a1"}}
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		pair := pairs[i%len(pairs)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.engine.TransferFunds(context.Background(), user("u1"), transfer(pair[0], pair[1], 25))
		}()
	}
	wg.Wait()

	total := e.balance(t, "a1").Add(e.balance(t, "a2")).Add(e.balance(t, "a3"))
	assert.True(t, total.Equal(decimal.NewFromInt(1500)),
		"expected total 1500, got %s", total)
}
