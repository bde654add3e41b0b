package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/decsecmsg/internal/repository"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          UUID PRIMARY KEY,
		username    TEXT NOT NULL,
		public_key  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (username)`,

	`CREATE TABLE IF NOT EXISTS contacts (
		id          UUID PRIMARY KEY,
		owner_id    UUID NOT NULL REFERENCES users(id),
		contact_id  UUID NOT NULL REFERENCES users(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_owner_contact
	ON contacts (owner_id, contact_id)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id           UUID PRIMARY KEY,
		sender_id    UUID NOT NULL,
		receiver_id  UUID NOT NULL,
		content      TEXT NOT NULL,
		ipfs_hash    TEXT,
		timestamp    TIMESTAMPTZ NOT NULL,
		is_read      BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages (timestamp)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_pair_time
	ON messages (sender_id, receiver_id, timestamp)`,
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("running migration %d: %w", i, err)
		}
	}
	return nil
}

const uniqueViolation = "23505"

// translate maps unique-constraint violations to repository.ErrDuplicate.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
