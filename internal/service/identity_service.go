package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/domain"
	"github.com/vedran77/decsecmsg/internal/keys"
	"github.com/vedran77/decsecmsg/internal/repository"
)

type IdentityService struct {
	userRepo    repository.UserRepository
	contactRepo repository.ContactRepository
	messageRepo repository.MessageRepository
	verifier    keys.ProofVerifier
}

func NewIdentityService(
	userRepo repository.UserRepository,
	contactRepo repository.ContactRepository,
	messageRepo repository.MessageRepository,
	verifier keys.ProofVerifier,
) *IdentityService {
	return &IdentityService{
		userRepo:    userRepo,
		contactRepo: contactRepo,
		messageRepo: messageRepo,
		verifier:    verifier,
	}
}

type RegisterInput struct {
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
}

type LoginInput struct {
	Username        string `json:"username"`
	PrivateKeyProof string `json:"privateKeyProof"`
}

type AddContactInput struct {
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
}

// Register creates a user. The username lookup only catches the common
// case; two racing registrations are settled by the store's unique index.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("looking up username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	user := &domain.User{
		ID:        uuid.New(),
		Username:  username,
		PublicKey: input.PublicKey,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return user, nil
}

func (s *IdentityService) Login(ctx context.Context, input LoginInput) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		return nil, fmt.Errorf("looking up username: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCreds
	}

	if !s.verifier.VerifyProof(user.Username, input.PrivateKeyProof) {
		return nil, ErrInvalidCreds
	}

	return user, nil
}

func (s *IdentityService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// AddContact links owner and the named user in both directions.
func (s *IdentityService) AddContact(ctx context.Context, ownerID uuid.UUID, input AddContactInput) (*domain.ContactView, error) {
	if _, err := s.GetUser(ctx, ownerID); err != nil {
		return nil, err
	}

	target, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	if target.ID == ownerID {
		return nil, ErrCannotAddSelf
	}

	existing, err := s.contactRepo.Get(ctx, ownerID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("checking contact: %w", err)
	}
	if existing != nil {
		return nil, ErrContactExists
	}

	now := time.Now().UTC()
	forward := &domain.Contact{ID: uuid.New(), OwnerID: ownerID, ContactID: target.ID, CreatedAt: now}
	reverse := &domain.Contact{ID: uuid.New(), OwnerID: target.ID, ContactID: ownerID, CreatedAt: now}

	if err := s.contactRepo.CreatePair(ctx, forward, reverse); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrContactExists
		}
		return nil, fmt.Errorf("creating contact: %w", err)
	}

	return &domain.ContactView{
		ID:        target.ID,
		Username:  target.Username,
		PublicKey: target.PublicKey,
	}, nil
}

// ListContacts returns owner's contacts, most recent conversation first.
// Contacts without messages go last, in the order they were added.
func (s *IdentityService) ListContacts(ctx context.Context, ownerID uuid.UUID) ([]domain.ContactView, error) {
	edges, err := s.contactRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}

	views := make([]domain.ContactView, 0, len(edges))
	for _, edge := range edges {
		user, err := s.userRepo.GetByID(ctx, edge.ContactID)
		if err != nil {
			return nil, fmt.Errorf("getting contact user: %w", err)
		}
		if user == nil {
			continue
		}

		view := domain.ContactView{
			ID:        user.ID,
			Username:  user.Username,
			PublicKey: user.PublicKey,
		}

		last, err := s.messageRepo.LastInConversation(ctx, ownerID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("getting last message: %w", err)
		}
		if last != nil {
			placeholder := domain.EncryptedPlaceholder
			ts := last.Timestamp
			view.LastMessage = &placeholder
			view.LastMessageTime = &ts
		}

		views = append(views, view)
	}

	slices.SortStableFunc(views, func(a, b domain.ContactView) int {
		switch {
		case a.LastMessageTime == nil && b.LastMessageTime == nil:
			return 0
		case a.LastMessageTime == nil:
			return 1
		case b.LastMessageTime == nil:
			return -1
		}
		return b.LastMessageTime.Compare(*a.LastMessageTime)
	})

	return views, nil
}
