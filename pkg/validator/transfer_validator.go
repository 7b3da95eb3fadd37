package validator

import (
	"errors"

	"cashoverflow/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("transfer amount must be positive")
	ErrMissingAccount = errors.New("account id is required")
	ErrSameAccount    = errors.New("cannot transfer to the same account")
)

// TransferValidator rejects malformed transfer instructions before any
// account lookup happens.
type TransferValidator struct{}

func NewTransferValidator() *TransferValidator {
	return &TransferValidator{}
}

func (v *TransferValidator) ValidateTransfer(ft domain.FundTransfer) error {
	return v.validate(ft.FromAccountID, ft.ToAccountID, ft.Amount)
}

func (v *TransferValidator) ValidateRequest(fromAccountID, toAccountID string, amount decimal.Decimal) error {
	return v.validate(fromAccountID, toAccountID, amount)
}

func (v *TransferValidator) validate(fromAccountID, toAccountID string, amount decimal.Decimal) error {
	var errs []error

	if fromAccountID == "" || toAccountID == "" {
		errs = append(errs, ErrMissingAccount)
	}

	if fromAccountID != "" && fromAccountID == toAccountID {
		errs = append(errs, ErrSameAccount)
	}

	if amount.Sign() <= 0 {
		errs = append(errs, ErrInvalidAmount)
	}

	return errors.Join(errs...)
}
