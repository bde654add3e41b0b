package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/domain"
)

// ErrDuplicate is returned when an insert violates a unique constraint
// (username, or the owner/contact pair).
var ErrDuplicate = errors.New("duplicate record")

// Lookups return (nil, nil) when nothing matches.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type ContactRepository interface {
	// CreatePair inserts both edges or neither.
	CreatePair(ctx context.Context, forward, reverse *domain.Contact) error
	Get(ctx context.Context, ownerID, contactID uuid.UUID) (*domain.Contact, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListConversation returns messages exchanged between a and b in either
	// direction, oldest first.
	ListConversation(ctx context.Context, a, b uuid.UUID) ([]domain.Message, error)
	LastInConversation(ctx context.Context, a, b uuid.UUID) (*domain.Message, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	// MarkManyRead flips the listed messages that are addressed to
	// receiverID and still unread. Other ids are ignored.
	MarkManyRead(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) (int64, error)
}

// Gateway bundles the repositories behind one storage backend.
type Gateway struct {
	Users    UserRepository
	Contacts ContactRepository
	Messages MessageRepository

	closer func(context.Context) error
}

func NewGateway(users UserRepository, contacts ContactRepository, messages MessageRepository, closer func(context.Context) error) *Gateway {
	return &Gateway{
		Users:    users,
		Contacts: contacts,
		Messages: messages,
		closer:   closer,
	}
}

// Close releases the backend connection, if any.
func (g *Gateway) Close(ctx context.Context) error {
	if g == nil || g.closer == nil {
		return nil
	}
	return g.closer(ctx)
}
