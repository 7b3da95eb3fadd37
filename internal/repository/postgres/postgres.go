// Package postgres implements the repository contracts on PostgreSQL.
// ApplyBalances and status transitions run inside a single database
// transaction with conditional updates, so a concurrent writer on another
// process surfaces as repository.ErrTransactionConflict instead of a lost
// update.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS user_accounts (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS bank_accounts (
			id VARCHAR(36) PRIMARY KEY,
			owner_id VARCHAR(36) NOT NULL REFERENCES user_accounts(id),
			balance NUMERIC(20, 4) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			name VARCHAR(100) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			account_type VARCHAR(20) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bank_accounts_owner ON bank_accounts(owner_id)`,

		`CREATE TABLE IF NOT EXISTS transfer_requests (
			id VARCHAR(36) PRIMARY KEY,
			from_account_id VARCHAR(36) NOT NULL REFERENCES bank_accounts(id),
			to_account_id VARCHAR(36) NOT NULL REFERENCES bank_accounts(id),
			amount NUMERIC(20, 4) NOT NULL CHECK (amount > 0),
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transfer_requests_from ON transfer_requests(from_account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transfer_requests_to ON transfer_requests(to_account_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
