package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
	StatusRemoved   RequestStatus = "removed"
)

// FundTransfer is a transient same-owner transfer instruction. It is never
// persisted.
type FundTransfer struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// TransferRequest is a proposed transfer between accounts of different users.
// It starts pending and ends in exactly one of the terminal states:
// completed (funds moved) or removed (no balance effect).
type TransferRequest struct {
	ID            string          `json:"id"`
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        RequestStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func NewTransferRequest(fromAccountID, toAccountID string, amount decimal.Decimal) *TransferRequest {
	return &TransferRequest{
		ID:            uuid.NewString(),
		FromAccountID: fromAccountID,
		ToAccountID:   toAccountID,
		Amount:        amount,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}
}

// Terminal reports whether the request can no longer change state.
func (r *TransferRequest) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusRemoved
}
