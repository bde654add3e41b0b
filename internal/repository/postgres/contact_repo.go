package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/decsecmsg/internal/domain"
)

type ContactRepo struct {
	pool *pgxpool.Pool
}

func NewContactRepo(pool *pgxpool.Pool) *ContactRepo {
	return &ContactRepo{pool: pool}
}

func (r *ContactRepo) CreatePair(ctx context.Context, forward, reverse *domain.Contact) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO contacts (id, owner_id, contact_id, created_at)
		VALUES ($1, $2, $3, $4)`
	for _, c := range []*domain.Contact{forward, reverse} {
		if _, err := tx.Exec(ctx, query, c.ID, c.OwnerID, c.ContactID, c.CreatedAt); err != nil {
			return translate(err)
		}
	}

	return tx.Commit(ctx)
}

func (r *ContactRepo) Get(ctx context.Context, ownerID, contactID uuid.UUID) (*domain.Contact, error) {
	query := `
		SELECT id, owner_id, contact_id, created_at
		FROM contacts
		WHERE owner_id = $1 AND contact_id = $2`
	var c domain.Contact
	err := r.pool.QueryRow(ctx, query, ownerID, contactID).Scan(
		&c.ID, &c.OwnerID, &c.ContactID, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error) {
	query := `
		SELECT id, owner_id, contact_id, created_at
		FROM contacts
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.ContactID, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
