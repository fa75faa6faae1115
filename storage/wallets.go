package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attendance-backend/models"
)

// WalletRepository persists the email -> wallet address mapping. The unique
// key on email makes concurrent first-time check-ins converge on a single
// address.
type WalletRepository struct {
	db *pgxpool.Pool
}

// NewWalletRepository creates a new wallet repository.
func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByEmail returns the wallet record for an email, or nil when none exists.
func (r *WalletRepository) GetByEmail(ctx context.Context, email string) (*models.WalletRecord, error) {
	query := `SELECT email, address, created_at FROM wallets WHERE email = $1`

	var record models.WalletRecord
	err := r.db.QueryRow(ctx, query, email).Scan(&record.Email, &record.Address, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &record, nil
}

// Insert stores a new wallet record. When a concurrent caller already
// inserted a record for the same email, the existing row wins and no error
// is returned; callers must re-read to learn the surviving address.
func (r *WalletRepository) Insert(ctx context.Context, record *models.WalletRecord) error {
	query := `
		INSERT INTO wallets (email, address, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query, record.Email, record.Address, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert wallet: %w", err)
	}

	return nil
}
