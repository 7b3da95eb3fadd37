package internal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"cashoverflow/internal/api"
	"cashoverflow/internal/auth"
	"cashoverflow/internal/domain"
	"cashoverflow/internal/engine"
	"cashoverflow/internal/repository/memory"
	"cashoverflow/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	accounts *memory.AccountRepository
	users    *memory.UserRepository
	requests *memory.TransferRequestRepository

	mux *http.ServeMux
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	accounts := memory.NewAccountRepository()
	users := memory.NewUserRepository()
	requests := memory.NewTransferRequestRepository()

	logger := slog.Default()
	authService := auth.NewService(users, "test-secret", 0, logger)
	transferEngine := engine.New(accounts, requests, nil, logger)
	handler := api.NewAPIHandler(transferEngine, accounts, authService, metrics.NewCollector(nil), logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &testEnv{
		accounts: accounts,
		users:    users,
		requests: requests,
		mux:      mux,
	}
}

func (env *testEnv) call(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	return w
}

func decodeInto[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

// registerAndLogin creates a user through the public endpoints and returns
// the bearer token plus user ID.
func (env *testEnv) registerAndLogin(t *testing.T, username string) (string, string) {
	t.Helper()

	creds := api.CredentialsRequest{Username: username, Password: "hunter2!"}

	w := env.call(t, "POST", "/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.call(t, "POST", "/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	login := decodeInto[api.LoginResponse](t, w)
	require.NotEmpty(t, login.Token)
	return login.Token, login.User.ID
}

// seedAccount writes an account with a starting balance directly into the
// repository, bypassing the API so tests control the opening balance.
func (env *testEnv) seedAccount(t *testing.T, ownerID, name string, balance int64) string {
	t.Helper()

	account := domain.NewBankAccount(ownerID, name, "", domain.TypeChecking)
	account.Balance = decimal.NewFromInt(balance)
	require.NoError(t, env.accounts.Save(context.Background(), account))
	return account.ID
}

func TestIntegration_RegisterLoginCreateAccount(t *testing.T) {
	env := setup(t)
	token, _ := env.registerAndLogin(t, "alice")

	w := env.call(t, "POST", "/api/account/createBankAccount", token, api.CreateAccountRequest{
		Name:        "Main",
		Description: "Daily spending",
		AccountType: "checking",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decodeInto[api.BankAccountDTO](t, w)
	assert.Equal(t, "Main", created.Name)
	assert.True(t, created.Balance.IsZero())

	w = env.call(t, "GET", "/api/account/getBankAccounts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	accounts := decodeInto[[]api.BankAccountDTO](t, w)
	require.Len(t, accounts, 1)
	assert.Equal(t, created.ID, accounts[0].ID)
}

func TestIntegration_LoginWrongPassword(t *testing.T) {
	env := setup(t)
	env.registerAndLogin(t, "alice")

	w := env.call(t, "POST", "/login", "", api.CredentialsRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
}

func TestIntegration_AuthRequired(t *testing.T) {
	env := setup(t)

	w := env.call(t, "GET", "/api/account/getBankAccounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.call(t, "GET", "/api/account/getBankAccounts", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIntegration_TransferFunds(t *testing.T) {
	env := setup(t)
	token, userID := env.registerAndLogin(t, "alice")

	fromID := env.seedAccount(t, userID, "Checking", 100)
	toID := env.seedAccount(t, userID, "Savings", 0)

	w := env.call(t, "POST", "/api/account/transferFunds", token, api.FundTransferRequest{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        decimal.NewFromInt(30),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	accounts := decodeInto[[]api.BankAccountDTO](t, w)
	require.Len(t, accounts, 2)

	balances := map[string]decimal.Decimal{}
	for _, account := range accounts {
		balances[account.ID] = account.Balance
	}
	assert.True(t, balances[fromID].Equal(decimal.NewFromInt(70)))
	assert.True(t, balances[toID].Equal(decimal.NewFromInt(30)))
}

func TestIntegration_TransferFundsInsufficient(t *testing.T) {
	env := setup(t)
	token, userID := env.registerAndLogin(t, "alice")

	fromID := env.seedAccount(t, userID, "Checking", 10)
	toID := env.seedAccount(t, userID, "Savings", 0)

	w := env.call(t, "POST", "/api/account/transferFunds", token, api.FundTransferRequest{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        decimal.NewFromInt(50),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_FUNDS")
}

func TestIntegration_TransferFundsForeignAccount(t *testing.T) {
	env := setup(t)
	aliceToken, aliceID := env.registerAndLogin(t, "alice")
	_, bobID := env.registerAndLogin(t, "bob")

	aliceAccount := env.seedAccount(t, aliceID, "Checking", 100)
	bobAccount := env.seedAccount(t, bobID, "Checking", 100)

	w := env.call(t, "POST", "/api/account/transferFunds", aliceToken, api.FundTransferRequest{
		FromAccountID: aliceAccount,
		ToAccountID:   bobAccount,
		Amount:        decimal.NewFromInt(10),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIntegration_BetweenUsersLifecycle(t *testing.T) {
	env := setup(t)
	aliceToken, aliceID := env.registerAndLogin(t, "alice")
	bobToken, bobID := env.registerAndLogin(t, "bob")

	aliceAccount := env.seedAccount(t, aliceID, "Checking", 20)
	bobAccount := env.seedAccount(t, bobID, "Checking", 0)

	// Alice owes Bob 50 but only holds 20. The request is still accepted.
	w := env.call(t, "POST", "/api/account/betweenUsers", aliceToken, api.BetweenUsersRequest{
		FromAccountID: aliceAccount,
		ToAccountID:   bobAccount,
		Amount:        decimal.NewFromInt(50),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	request := decodeInto[api.TransferRequestDTO](t, w)
	assert.Equal(t, "pending", request.Status)

	// Bob sees the request on his side too.
	w = env.call(t, "GET", "/api/account/retrieveRequest", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	bobRequests := decodeInto[[]api.TransferRequestDTO](t, w)
	require.Len(t, bobRequests, 1)
	assert.Equal(t, request.ID, bobRequests[0].ID)

	// Completion fails while Alice cannot cover the amount; the request
	// stays pending.
	w = env.call(t, "POST", "/api/account/completeTransfer", bobToken, api.RequestActionRequest{RequestID: request.ID})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = env.call(t, "GET", "/api/account/retrieveRequest", bobToken, nil)
	bobRequests = decodeInto[[]api.TransferRequestDTO](t, w)
	require.Len(t, bobRequests, 1)
	assert.Equal(t, "pending", bobRequests[0].Status)

	// Alice funds the account; completion now moves the money.
	funding := env.seedAccount(t, aliceID, "Payroll", 100)
	w = env.call(t, "POST", "/api/account/transferFunds", aliceToken, api.FundTransferRequest{
		FromAccountID: funding,
		ToAccountID:   aliceAccount,
		Amount:        decimal.NewFromInt(40),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.call(t, "POST", "/api/account/completeTransfer", bobToken, api.RequestActionRequest{RequestID: request.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	completed := decodeInto[api.TransferRequestDTO](t, w)
	assert.Equal(t, "completed", completed.Status)

	w = env.call(t, "GET", "/api/account/getBankAccounts", bobToken, nil)
	bobAccounts := decodeInto[[]api.BankAccountDTO](t, w)
	require.Len(t, bobAccounts, 1)
	assert.True(t, bobAccounts[0].Balance.Equal(decimal.NewFromInt(50)))

	// Completing again is rejected and moves nothing.
	w = env.call(t, "POST", "/api/account/completeTransfer", bobToken, api.RequestActionRequest{RequestID: request.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST_STATE")
}

func TestIntegration_RemoveRequestThenComplete(t *testing.T) {
	env := setup(t)
	aliceToken, aliceID := env.registerAndLogin(t, "alice")
	_, bobID := env.registerAndLogin(t, "bob")

	aliceAccount := env.seedAccount(t, aliceID, "Checking", 100)
	bobAccount := env.seedAccount(t, bobID, "Checking", 0)

	w := env.call(t, "POST", "/api/account/betweenUsers", aliceToken, api.BetweenUsersRequest{
		FromAccountID: aliceAccount,
		ToAccountID:   bobAccount,
		Amount:        decimal.NewFromInt(25),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	request := decodeInto[api.TransferRequestDTO](t, w)

	w = env.call(t, "POST", "/api/account/removeRequest", aliceToken, api.RequestActionRequest{RequestID: request.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	removed := decodeInto[api.TransferRequestDTO](t, w)
	assert.Equal(t, "removed", removed.Status)

	w = env.call(t, "POST", "/api/account/completeTransfer", aliceToken, api.RequestActionRequest{RequestID: request.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Balances never moved.
	w = env.call(t, "GET", "/api/account/getBankAccounts", aliceToken, nil)
	accounts := decodeInto[[]api.BankAccountDTO](t, w)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].Balance.Equal(decimal.NewFromInt(100)))
}

func TestIntegration_RetrieveRequestsOrdered(t *testing.T) {
	env := setup(t)
	aliceToken, aliceID := env.registerAndLogin(t, "alice")
	_, bobID := env.registerAndLogin(t, "bob")

	aliceAccount := env.seedAccount(t, aliceID, "Checking", 100)
	bobAccount := env.seedAccount(t, bobID, "Checking", 100)

	var ids []string
	for i := 1; i <= 3; i++ {
		w := env.call(t, "POST", "/api/account/betweenUsers", aliceToken, api.BetweenUsersRequest{
			FromAccountID: aliceAccount,
			ToAccountID:   bobAccount,
			Amount:        decimal.NewFromInt(int64(i)),
		})
		require.Equal(t, http.StatusCreated, w.Code, fmt.Sprintf("request %d: %s", i, w.Body.String()))
		ids = append(ids, decodeInto[api.TransferRequestDTO](t, w).ID)
	}

	w := env.call(t, "GET", "/api/account/retrieveRequest", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	requests := decodeInto[[]api.TransferRequestDTO](t, w)
	require.Len(t, requests, 3)
	for i, request := range requests {
		assert.Equal(t, ids[i], request.ID)
	}
}

func TestIntegration_ValidationErrors(t *testing.T) {
	env := setup(t)
	token, userID := env.registerAndLogin(t, "alice")
	accountID := env.seedAccount(t, userID, "Checking", 100)

	w := env.call(t, "POST", "/api/account/transferFunds", token, api.FundTransferRequest{
		FromAccountID: accountID,
		ToAccountID:   accountID,
		Amount:        decimal.NewFromInt(10),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")

	w = env.call(t, "POST", "/api/account/betweenUsers", token, api.BetweenUsersRequest{
		FromAccountID: accountID,
		ToAccountID:   "some-other",
		Amount:        decimal.NewFromInt(-5),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
