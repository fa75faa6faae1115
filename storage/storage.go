package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQL error code for unique violation.
const pgUniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}

// Schema contains the tables and indexes the pipeline relies on. The unique
// indexes on wallets(email) and nft_mints(event_id, attendee_email) are the
// only synchronization primitives in the design.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	luma_event_id TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	date          TEXT NOT NULL,
	location      TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	organizer     TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT '',
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wallets (
	email      TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS nft_mints (
	id             TEXT PRIMARY KEY,
	token_id       BIGINT NOT NULL,
	event_id       TEXT NOT NULL,
	attendee_email TEXT NOT NULL,
	wallet_address TEXT NOT NULL,
	minted_at      TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (event_id, attendee_email)
);

CREATE INDEX IF NOT EXISTS idx_nft_mints_event ON nft_mints (event_id, minted_at DESC);
CREATE INDEX IF NOT EXISTS idx_nft_mints_attendee ON nft_mints (attendee_email, minted_at DESC);
`

// Migrate applies the schema. Safe to run on every startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, Schema)
	return err
}
