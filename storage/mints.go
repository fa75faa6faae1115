package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attendance-backend/models"
)

// MintLedger is the durable record of (event, attendee) -> mint outcome and
// the source of truth for idempotency. The unique index on
// (event_id, attendee_email) is what guarantees at-most-once crediting; the
// FindRecord fast path in the orchestrator is an optimization on top of it.
type MintLedger struct {
	db *pgxpool.Pool
}

// NewMintLedger creates a new mint ledger.
func NewMintLedger(db *pgxpool.Pool) *MintLedger {
	return &MintLedger{db: db}
}

const mintColumns = `
	id, token_id, event_id, attendee_email, wallet_address, minted_at, created_at
`

// FindRecord returns the mint record for an (event, attendee) pair, or
// nil when none exists.
func (l *MintLedger) FindRecord(ctx context.Context, eventID, attendeeEmail string) (*models.MintRecord, error) {
	query := `SELECT ` + mintColumns + ` FROM nft_mints WHERE event_id = $1 AND attendee_email = $2`

	var record models.MintRecord
	err := l.db.QueryRow(ctx, query, eventID, attendeeEmail).Scan(
		&record.ID,
		&record.TokenID,
		&record.EventID,
		&record.AttendeeEmail,
		&record.WalletAddress,
		&record.MintedAt,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find mint record: %w", err)
	}

	return &record, nil
}

// RecordMint appends a new mint record. A unique-violation on the
// (event_id, attendee_email) index returns ErrAlreadyMinted: the caller
// lost a race against a concurrent duplicate check-in and should report the
// winner's record instead of erroring.
func (l *MintLedger) RecordMint(ctx context.Context, record *models.MintRecord) error {
	query := `
		INSERT INTO nft_mints (id, token_id, event_id, attendee_email, wallet_address, minted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := l.db.Exec(ctx, query,
		record.ID,
		record.TokenID,
		record.EventID,
		record.AttendeeEmail,
		record.WalletAddress,
		record.MintedAt,
		record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyMinted
		}
		return fmt.Errorf("failed to record mint: %w", err)
	}

	return nil
}

// ListByEvent returns all mints for an event, newest first.
func (l *MintLedger) ListByEvent(ctx context.Context, eventID string) ([]models.MintRecord, error) {
	query := `SELECT ` + mintColumns + ` FROM nft_mints WHERE event_id = $1 ORDER BY minted_at DESC`
	return l.list(ctx, query, eventID)
}

// ListByAttendee returns all mints for an attendee email, newest first.
func (l *MintLedger) ListByAttendee(ctx context.Context, attendeeEmail string) ([]models.MintRecord, error) {
	query := `SELECT ` + mintColumns + ` FROM nft_mints WHERE attendee_email = $1 ORDER BY minted_at DESC`
	return l.list(ctx, query, attendeeEmail)
}

// CountByEvent returns the number of mints recorded for an event.
func (l *MintLedger) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var count int
	err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM nft_mints WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count mints: %w", err)
	}
	return count, nil
}

func (l *MintLedger) list(ctx context.Context, query string, arg interface{}) ([]models.MintRecord, error) {
	rows, err := l.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query mints: %w", err)
	}
	defer rows.Close()

	var records []models.MintRecord
	for rows.Next() {
		var record models.MintRecord
		err := rows.Scan(
			&record.ID,
			&record.TokenID,
			&record.EventID,
			&record.AttendeeEmail,
			&record.WalletAddress,
			&record.MintedAt,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mint record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mints: %w", err)
	}

	return records, nil
}
