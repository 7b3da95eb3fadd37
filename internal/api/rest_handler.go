package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cashoverflow/internal/auth"
	"cashoverflow/internal/domain"
	"cashoverflow/internal/engine"
	"cashoverflow/internal/repository"
	"cashoverflow/pkg/metrics"
	"cashoverflow/pkg/validator"

	"github.com/shopspring/decimal"
)

type APIHandler struct {
	engine         *engine.Engine
	accounts       repository.AccountRepository
	auth           *auth.Service
	metrics        *metrics.Collector
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewAPIHandler(
	eng *engine.Engine,
	accounts repository.AccountRepository,
	authService *auth.Service,
	collector *metrics.Collector,
	logger *slog.Logger,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		engine:         eng,
		accounts:       accounts,
		auth:           authService,
		metrics:        collector,
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string         `json:"token"`
	User  UserAccountDTO `json:"user"`
}

type CreateAccountRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AccountType string `json:"account_type"`
}

type FundTransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type BetweenUsersRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type RequestActionRequest struct {
	RequestID string `json:"request_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	token, user, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendJSON(w, LoginResponse{Token: token, User: toUserDTO(user)}, http.StatusOK)
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	user, err := h.auth.Register(ctx, req.Username, req.Password)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendJSON(w, toUserDTO(user), http.StatusCreated)
}

func (h *APIHandler) CreateBankAccountHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	user := userFromContext(ctx)

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.Name == "" {
		h.sendError(w, "Account name is required", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	accountType := domain.AccountType(req.AccountType)
	switch accountType {
	case domain.TypeChecking, domain.TypeSavings, domain.TypeCredit:
	case "":
		accountType = domain.TypeChecking
	default:
		h.sendError(w, "Unknown account type", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	account := domain.NewBankAccount(user.ID, req.Name, req.Description, accountType)
	if err := h.accounts.Save(ctx, account); err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "Bank account created",
		slog.String("account_id", account.ID),
		slog.String("owner_id", user.ID))

	h.sendJSON(w, toAccountDTO(account), http.StatusCreated)
}

func (h *APIHandler) GetBankAccountsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	user := userFromContext(ctx)

	accounts, err := h.accounts.GetByOwnerID(ctx, user.ID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendJSON(w, toAccountDTOs(accounts), http.StatusOK)
}

func (h *APIHandler) TransferFundsHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	user := userFromContext(ctx)

	var req FundTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	accounts, err := h.engine.TransferFunds(ctx, user, domain.FundTransfer{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
	})
	h.metrics.RecordTransfer(time.Since(startTime), rejectionReason(err))
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	for _, account := range accounts {
		h.metrics.UpdateAccountBalance(account.ID, account.Balance.InexactFloat64())
	}

	h.sendJSON(w, toAccountDTOs(accounts), http.StatusOK)
}

func (h *APIHandler) BetweenUsersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	user := userFromContext(ctx)

	var req BetweenUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	request, err := h.engine.CreateRequest(ctx, user, req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.metrics.RecordRequestEvent("created")
	h.sendJSON(w, toRequestDTO(request), http.StatusCreated)
}

func (h *APIHandler) CompleteTransferHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req RequestActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.RequestID == "" {
		h.sendError(w, "Request ID is required", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	request, err := h.engine.CompleteTransfer(ctx, req.RequestID)
	h.metrics.RecordTransfer(time.Since(startTime), rejectionReason(err))
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.metrics.RecordRequestEvent("completed")
	h.sendJSON(w, toRequestDTO(request), http.StatusOK)
}

func (h *APIHandler) RetrieveRequestsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	user := userFromContext(ctx)

	requests, err := h.engine.ListRequestsForUser(ctx, user)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendJSON(w, toRequestDTOs(requests), http.StatusOK)
}

func (h *APIHandler) RemoveRequestHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req RequestActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.RequestID == "" {
		h.sendError(w, "Request ID is required", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	request, err := h.engine.RemoveRequest(ctx, req.RequestID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.metrics.RecordRequestEvent("removed")
	h.sendJSON(w, toRequestDTO(request), http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	h.sendJSON(w, response, http.StatusOK)
}

// sendDomainError translates engine/auth/repository failures into structured
// HTTP responses. Every failure reaches the caller as kind + reason.
func (h *APIHandler) sendDomainError(w http.ResponseWriter, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, validator.ErrInvalidAmount),
		errors.Is(err, validator.ErrMissingAccount),
		errors.Is(err, validator.ErrSameAccount):
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, code = http.StatusBadRequest, "INVALID_CREDENTIALS"
	case errors.Is(err, auth.ErrInvalidToken):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, auth.ErrUsernameTaken), errors.Is(err, repository.ErrDuplicate):
		status, code = http.StatusConflict, "DUPLICATE"
	case errors.Is(err, engine.ErrNotOwner):
		status, code = http.StatusForbidden, "NOT_OWNER"
	case errors.Is(err, repository.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, repository.ErrInsufficientFunds):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"
	case errors.Is(err, engine.ErrInvalidRequestState):
		status, code = http.StatusConflict, "INVALID_REQUEST_STATE"
	case errors.Is(err, engine.ErrResourceBusy), errors.Is(err, repository.ErrTransactionConflict):
		status, code = http.StatusServiceUnavailable, "RETRY_LATER"
	default:
		status, code = http.StatusInternalServerError, "SERVER_ERROR"
	}

	h.sendError(w, err.Error(), status, code)
}

func rejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, repository.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, engine.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, engine.ErrInvalidRequestState):
		return "invalid_request_state"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrResourceBusy), errors.Is(err, repository.ErrTransactionConflict):
		return "busy"
	default:
		return "invalid"
	}
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})

	h.logger.Warn("API error response",
		slog.String("message", message),
		slog.String("code", code),
		slog.Int("status", statusCode))
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /login", h.LoginHandler)
	mux.HandleFunc("POST /register", h.RegisterHandler)

	mux.HandleFunc("POST /api/account/createBankAccount", h.withAuth(h.CreateBankAccountHandler))
	mux.HandleFunc("GET /api/account/getBankAccounts", h.withAuth(h.GetBankAccountsHandler))
	mux.HandleFunc("POST /api/account/transferFunds", h.withAuth(h.TransferFundsHandler))
	mux.HandleFunc("POST /api/account/betweenUsers", h.withAuth(h.BetweenUsersHandler))
	mux.HandleFunc("POST /api/account/completeTransfer", h.withAuth(h.CompleteTransferHandler))
	mux.HandleFunc("GET /api/account/retrieveRequest", h.withAuth(h.RetrieveRequestsHandler))
	mux.HandleFunc("POST /api/account/removeRequest", h.withAuth(h.RemoveRequestHandler))

	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}
