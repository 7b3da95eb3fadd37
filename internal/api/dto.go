package api

import (
	"time"

	"cashoverflow/internal/domain"

	"github.com/shopspring/decimal"
)

// Transport shapes live here, at the boundary. Entities never cross the API
// edge directly.

type BankAccountDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	AccountType string          `json:"account_type"`
	Balance     decimal.Decimal `json:"balance"`
}

type UserAccountDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type TransferRequestDTO struct {
	ID            string          `json:"id"`
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toAccountDTO(account *domain.BankAccount) BankAccountDTO {
	return BankAccountDTO{
		ID:          account.ID,
		Name:        account.Name,
		Description: account.Description,
		AccountType: string(account.AccountType),
		Balance:     account.Balance,
	}
}

func toAccountDTOs(accounts []*domain.BankAccount) []BankAccountDTO {
	result := make([]BankAccountDTO, 0, len(accounts))
	for _, account := range accounts {
		result = append(result, toAccountDTO(account))
	}
	return result
}

func toUserDTO(user *domain.UserAccount) UserAccountDTO {
	return UserAccountDTO{
		ID:       user.ID,
		Username: user.Username,
	}
}

func toRequestDTO(request *domain.TransferRequest) TransferRequestDTO {
	return TransferRequestDTO{
		ID:            request.ID,
		FromAccountID: request.FromAccountID,
		ToAccountID:   request.ToAccountID,
		Amount:        request.Amount,
		Status:        string(request.Status),
		CreatedAt:     request.CreatedAt,
	}
}

func toRequestDTOs(requests []*domain.TransferRequest) []TransferRequestDTO {
	result := make([]TransferRequestDTO, 0, len(requests))
	for _, request := range requests {
		result = append(result, toRequestDTO(request))
	}
	return result
}
