package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashoverflow/internal/domain"
	"cashoverflow/internal/repository"

	"github.com/lib/pq"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.BankAccount) error {
	query := `
		INSERT INTO bank_accounts (id, owner_id, balance, name, description, account_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.OwnerID,
		account.Balance,
		account.Name,
		account.Description,
		account.AccountType,
		account.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.ID)
		}
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.BankAccount, error) {
	query := `
		SELECT id, owner_id, balance, name, description, account_type, created_at, updated_at
		FROM bank_accounts
		WHERE id = $1
	`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	return account, err
}

func (r *AccountRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]*domain.BankAccount, error) {
	query := `
		SELECT id, owner_id, balance, name, description, account_type, created_at, updated_at
		FROM bank_accounts
		WHERE owner_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var result []*domain.BankAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}

	return result, rows.Err()
}

// ApplyBalances runs all updates in one transaction. Each update is
// conditional on the expected prior balance; zero affected rows means a
// concurrent writer got there first and the whole set rolls back.
func (r *AccountRepository) ApplyBalances(ctx context.Context, changes []repository.BalanceChange) error {
	for _, c := range changes {
		if c.NewBalance.IsNegative() {
			return fmt.Errorf("%w: account %s", repository.ErrInsufficientFunds, c.AccountID)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE bank_accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2 AND balance = $3
	`

	for _, c := range changes {
		result, err := tx.ExecContext(ctx, query, c.NewBalance, c.AccountID, c.OldBalance)
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: account %s balance changed", repository.ErrTransactionConflict, c.AccountID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit balance changes: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.BankAccount, error) {
	var account domain.BankAccount
	err := row.Scan(
		&account.ID,
		&account.OwnerID,
		&account.Balance,
		&account.Name,
		&account.Description,
		&account.AccountType,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
