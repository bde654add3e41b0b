package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/domain"
	"github.com/vedran77/decsecmsg/internal/repository"
)

const unknownSender = "Unknown"

// Notifier pushes persisted messages to online recipients. Implementations
// must not block and must swallow delivery failures.
type Notifier interface {
	NotifyNewMessage(msg *domain.Message)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	contactRepo repository.ContactRepository
	notifier    Notifier

	// insertMu keeps timestamps in insertion order: a message is stored
	// before the next one is stamped.
	insertMu sync.Mutex
	clock    *Clock
}

func NewMessageService(messageRepo repository.MessageRepository, contactRepo repository.ContactRepository) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		clock:       NewClock(),
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendMessageInput struct {
	ReceiverID uuid.UUID
	Content    string
	IPFSHash   *string
}

// Send stores a message and only then hands it to the notifier, so a pushed
// message can always be fetched back.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	contact, err := s.contactRepo.Get(ctx, senderID, input.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("checking contact: %w", err)
	}
	if contact == nil {
		return nil, ErrNotContact
	}

	var ref *string
	if input.IPFSHash != nil && *input.IPFSHash != "" {
		h := *input.IPFSHash
		ref = &h
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: input.ReceiverID,
		Content:    input.Content,
		IPFSHash:   ref,
	}

	if err := s.insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	// Fetch with sender info
	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	if full == nil {
		full = msg
	}
	present(full)

	if s.notifier != nil {
		pushed := *full
		s.notifier.NotifyNewMessage(&pushed)
	}

	return full, nil
}

func (s *MessageService) insert(ctx context.Context, msg *domain.Message) error {
	s.insertMu.Lock()
	defer s.insertMu.Unlock()

	msg.Timestamp = s.clock.Next()
	return s.messageRepo.Create(ctx, msg)
}

// History returns the conversation between userID and contactID, oldest
// first, and acknowledges every returned message addressed to userID.
func (s *MessageService) History(ctx context.Context, userID, contactID uuid.UUID) ([]domain.Message, error) {
	contact, err := s.contactRepo.Get(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("checking contact: %w", err)
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}

	messages, err := s.messageRepo.ListConversation(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("listing conversation: %w", err)
	}
	if len(messages) == 0 {
		return []domain.Message{}, nil
	}

	// Only what is returned here is acknowledged. A message stored after
	// the fetch stays unread until the next one.
	var unread []uuid.UUID
	for i := range messages {
		if messages[i].ReceiverID == userID && !messages[i].Read {
			unread = append(unread, messages[i].ID)
			messages[i].Read = true
		}
		present(&messages[i])
	}

	if len(unread) > 0 {
		if _, err := s.messageRepo.MarkManyRead(ctx, userID, unread); err != nil {
			return nil, fmt.Errorf("marking conversation read: %w", err)
		}
	}
	return messages, nil
}

// MarkRead acknowledges one message. Marking an already read message
// succeeds without writing.
func (s *MessageService) MarkRead(ctx context.Context, messageID, requesterID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("getting message: %w", err)
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.ReceiverID != requesterID {
		return ErrNotReceiver
	}
	if msg.Read {
		return nil
	}

	if err := s.messageRepo.MarkRead(ctx, messageID); err != nil {
		return fmt.Errorf("marking message read: %w", err)
	}
	return nil
}

func present(m *domain.Message) {
	m.Encrypted = true
	if m.SenderUsername == "" {
		m.SenderUsername = unknownSender
	}
}
