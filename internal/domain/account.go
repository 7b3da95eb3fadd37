package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	TypeChecking AccountType = "checking"
	TypeSavings  AccountType = "savings"
	TypeCredit   AccountType = "credit"
)

// BankAccount balances are fixed-point decimals and must stay non-negative.
// OwnerID never changes after creation.
type BankAccount struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Balance     decimal.Decimal `json:"balance"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	AccountType AccountType     `json:"account_type"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type UserAccount struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewBankAccount(ownerID, name, description string, accountType AccountType) *BankAccount {
	return &BankAccount{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Balance:     decimal.Zero,
		Name:        name,
		Description: description,
		AccountType: accountType,
		CreatedAt:   time.Now(),
	}
}

func NewUserAccount(username, passwordHash string) *UserAccount {
	return &UserAccount{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
}
