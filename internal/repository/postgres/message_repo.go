package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/decsecmsg/internal/domain"
)

const messageColumns = `
	m.id, m.sender_id, m.receiver_id, m.content, m.ipfs_hash, m.timestamp, m.is_read,
	COALESCE(u.username, '')`

const conversationFilter = `
	(m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1)`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, ipfs_hash, timestamp, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.IPFSHash, msg.Timestamp, msg.Read,
	)
	return translate(err)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT` + messageColumns + `
		FROM messages m
		LEFT JOIN users u ON m.sender_id = u.id
		WHERE m.id = $1`
	msg, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) ListConversation(ctx context.Context, a, b uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT` + messageColumns + `
		FROM messages m
		LEFT JOIN users u ON m.sender_id = u.id
		WHERE` + conversationFilter + `
		ORDER BY m.timestamp ASC`

	rows, err := r.pool.Query(ctx, query, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) LastInConversation(ctx context.Context, a, b uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT` + messageColumns + `
		FROM messages m
		LEFT JOIN users u ON m.sender_id = u.id
		WHERE` + conversationFilter + `
		ORDER BY m.timestamp DESC
		LIMIT 1`
	msg, err := scanMessage(r.pool.QueryRow(ctx, query, a, b))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1 AND is_read = FALSE`, id)
	return err
}

func (r *MessageRepo) MarkManyRead(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	query := `
		UPDATE messages SET is_read = TRUE
		WHERE receiver_id = $1 AND id = ANY($2::uuid[]) AND is_read = FALSE`
	tag, err := r.pool.Exec(ctx, query, receiverID, strIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.IPFSHash,
		&msg.Timestamp, &msg.Read, &msg.SenderUsername,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
