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

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Save(ctx context.Context, user *domain.UserAccount) error {
	query := `
		INSERT INTO user_accounts (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: username %s", repository.ErrDuplicate, user.Username)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM user_accounts
		WHERE id = $1
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, id), id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM user_accounts
		WHERE username = $1
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, username), username)
}

func (r *UserRepository) scanUser(row *sql.Row, ref string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
