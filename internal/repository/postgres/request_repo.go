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

type TransferRequestRepository struct {
	db *sql.DB
}

func NewTransferRequestRepository(db *sql.DB) *TransferRequestRepository {
	return &TransferRequestRepository{db: db}
}

func (r *TransferRequestRepository) Save(ctx context.Context, request *domain.TransferRequest) error {
	query := `
		INSERT INTO transfer_requests (id, from_account_id, to_account_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.FromAccountID,
		request.ToAccountID,
		request.Amount,
		request.Status,
		request.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: request %s", repository.ErrDuplicate, request.ID)
		}
		return fmt.Errorf("failed to save request: %w", err)
	}

	return nil
}

func (r *TransferRequestRepository) GetByID(ctx context.Context, id string) (*domain.TransferRequest, error) {
	query := `
		SELECT id, from_account_id, to_account_id, amount, status, created_at, updated_at
		FROM transfer_requests
		WHERE id = $1
	`

	request, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: request %s", repository.ErrNotFound, id)
	}
	return request, err
}

func (r *TransferRequestRepository) ListByAccountIDs(ctx context.Context, accountIDs []string) ([]*domain.TransferRequest, error) {
	query := `
		SELECT id, from_account_id, to_account_id, amount, status, created_at, updated_at
		FROM transfer_requests
		WHERE from_account_id = ANY($1) OR to_account_id = ANY($1)
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var result []*domain.TransferRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, request)
	}

	return result, rows.Err()
}

func (r *TransferRequestRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RequestStatus) error {
	query := `
		UPDATE transfer_requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: request %s is not %s", repository.ErrTransactionConflict, id, from)
	}

	return nil
}

func scanRequest(row rowScanner) (*domain.TransferRequest, error) {
	var request domain.TransferRequest
	err := row.Scan(
		&request.ID,
		&request.FromAccountID,
		&request.ToAccountID,
		&request.Amount,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}
