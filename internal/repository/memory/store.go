package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/domain"
	"github.com/vedran77/decsecmsg/internal/repository"
)

// Store keeps users, contacts and messages in process memory. It is the
// default backend and the one used by tests.
type Store struct {
	mu       sync.RWMutex
	users    *table[domain.User]
	contacts *table[domain.Contact]
	messages *table[domain.Message]
}

func New() *Store {
	return &Store{
		users:    newTable[domain.User](),
		contacts: newTable[domain.Contact](),
		messages: newTable[domain.Message](),
	}
}

// Gateway exposes the store through the repository interfaces.
func (s *Store) Gateway() *repository.Gateway {
	return repository.NewGateway(&UserRepo{s}, &ContactRepo{s}, &MessageRepo{s}, nil)
}

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.users.findOne(func(u domain.User) bool { return u.Username == user.Username }); taken {
		return repository.ErrDuplicate
	}
	r.s.users.insert(user.ID, *user)
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users.get(id)
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users.findOne(func(u domain.User) bool { return u.Username == username })
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type ContactRepo struct{ s *Store }

func (r *ContactRepo) CreatePair(ctx context.Context, forward, reverse *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range []*domain.Contact{forward, reverse} {
		if _, exists := r.s.contacts.findOne(sameEdge(c.OwnerID, c.ContactID)); exists {
			return repository.ErrDuplicate
		}
	}
	r.s.contacts.insert(forward.ID, *forward)
	r.s.contacts.insert(reverse.ID, *reverse)
	return nil
}

func (r *ContactRepo) Get(ctx context.Context, ownerID, contactID uuid.UUID) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.contacts.findOne(sameEdge(ownerID, contactID))
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *ContactRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.contacts.find(query[domain.Contact]{
		match: func(c domain.Contact) bool { return c.OwnerID == ownerID },
	}), nil
}

func sameEdge(ownerID, contactID uuid.UUID) func(domain.Contact) bool {
	return func(c domain.Contact) bool {
		return c.OwnerID == ownerID && c.ContactID == contactID
	}
}

type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *msg
	stored.SenderUsername = ""
	stored.Encrypted = false
	r.s.messages.insert(msg.ID, stored)
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.messages.get(id)
	if !ok {
		return nil, nil
	}
	r.s.joinSender(&m)
	return &m, nil
}

func (r *MessageRepo) ListConversation(ctx context.Context, a, b uuid.UUID) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	msgs := r.s.messages.find(query[domain.Message]{
		match: conversation(a, b),
		cmp:   byTimestamp,
	})
	for i := range msgs {
		r.s.joinSender(&msgs[i])
	}
	return msgs, nil
}

func (r *MessageRepo) LastInConversation(ctx context.Context, a, b uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	msgs := r.s.messages.find(query[domain.Message]{
		match: conversation(a, b),
		cmp:   func(x, y domain.Message) int { return byTimestamp(y, x) },
		limit: 1,
	})
	if len(msgs) == 0 {
		return nil, nil
	}
	r.s.joinSender(&msgs[0])
	return &msgs[0], nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.messages.update(id, func(m *domain.Message) { m.Read = true })
	return nil
}

func (r *MessageRepo) MarkManyRead(ctx context.Context, receiverID uuid.UUID, ids []uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, id := range ids {
		m, ok := r.s.messages.get(id)
		if !ok || m.ReceiverID != receiverID || m.Read {
			continue
		}
		r.s.messages.update(id, func(m *domain.Message) { m.Read = true })
		n++
	}
	return n, nil
}

// joinSender fills the sender username the way the SQL backends join it.
// Caller holds at least the read lock.
func (s *Store) joinSender(m *domain.Message) {
	if u, ok := s.users.get(m.SenderID); ok {
		m.SenderUsername = u.Username
	}
}

func conversation(a, b uuid.UUID) func(domain.Message) bool {
	return either(
		func(m domain.Message) bool { return m.SenderID == a && m.ReceiverID == b },
		func(m domain.Message) bool { return m.SenderID == b && m.ReceiverID == a },
	)
}

func byTimestamp(a, b domain.Message) int {
	return a.Timestamp.Compare(b.Timestamp)
}
