package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/domain"
	"github.com/vedran77/decsecmsg/internal/keys"
	"github.com/vedran77/decsecmsg/internal/repository"
	"github.com/vedran77/decsecmsg/internal/repository/memory"
)

// recordingNotifier checks, at push time, that the message is already
// readable from the store.
type recordingNotifier struct {
	t  *testing.T
	gw *repository.Gateway

	mu     sync.Mutex
	pushed []domain.Message
}

func (n *recordingNotifier) NotifyNewMessage(msg *domain.Message) {
	stored, err := n.gw.Messages.GetByID(context.Background(), msg.ID)
	if err != nil || stored == nil {
		n.t.Errorf("notified before message %s was persisted (err=%v)", msg.ID, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushed = append(n.pushed, *msg)
}

func (n *recordingNotifier) messages() []domain.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Message(nil), n.pushed...)
}

type testEnv struct {
	gw       *repository.Gateway
	identity *IdentityService
	messages *MessageService
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gw := memory.New().Gateway()
	env := &testEnv{
		gw:       gw,
		identity: NewIdentityService(gw.Users, gw.Contacts, gw.Messages, keys.AcceptAnyProof),
		messages: NewMessageService(gw.Messages, gw.Contacts),
		notifier: &recordingNotifier{t: t, gw: gw},
	}
	env.messages.SetNotifier(env.notifier)
	return env
}

func (e *testEnv) register(t *testing.T, username string) *domain.User {
	t.Helper()

	u, err := e.identity.Register(context.Background(), RegisterInput{Username: username, PublicKey: "PK_" + username})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func (e *testEnv) link(t *testing.T, owner *domain.User, other *domain.User) {
	t.Helper()

	if _, err := e.identity.AddContact(context.Background(), owner.ID, AddContactInput{Username: other.Username, PublicKey: other.PublicKey}); err != nil {
		t.Fatalf("add contact %s -> %s: %v", owner.Username, other.Username, err)
	}
}

func (e *testEnv) send(t *testing.T, from, to *domain.User, content string) *domain.Message {
	t.Helper()

	msg, err := e.messages.Send(context.Background(), from.ID, SendMessageInput{ReceiverID: to.ID, Content: content})
	if err != nil {
		t.Fatalf("send %s -> %s: %v", from.Username, to.Username, err)
	}
	return msg
}

func TestRegisterTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.register(t, "alice")

	_, err := env.identity.Register(ctx, RegisterInput{Username: "alice", PublicKey: "other"})
	if !errors.Is(err, ErrUsernameTaken) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	u, err := env.gw.Users.GetByUsername(ctx, "alice")
	if err != nil || u == nil || u.ID != first.ID || u.PublicKey != "PK_alice" {
		t.Fatalf("expected the original alice to remain, got %+v (%v)", u, err)
	}
}

// racingUsers hides existing users from the pre-check so that the
// store's unique constraint is what rejects the duplicate.
type racingUsers struct {
	repository.UserRepository
}

func (racingUsers) GetByUsername(context.Context, string) (*domain.User, error) {
	return nil, nil
}

func TestRegisterRaceSettledByStore(t *testing.T) {
	gw := memory.New().Gateway()
	svc := NewIdentityService(racingUsers{gw.Users}, gw.Contacts, gw.Messages, keys.AcceptAnyProof)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", PublicKey: "PK_A"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", PublicKey: "PK_A"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken from the store, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	u, err := env.identity.Login(ctx, LoginInput{Username: "alice", PrivateKeyProof: "sig"})
	if err != nil || u.ID != alice.ID {
		t.Fatalf("expected login as alice, got %+v (%v)", u, err)
	}

	if _, err := env.identity.Login(ctx, LoginInput{Username: "nobody", PrivateKeyProof: "sig"}); !errors.Is(err, ErrInvalidCreds) {
		t.Fatalf("expected ErrInvalidCreds for unknown user, got %v", err)
	}

	strict := NewIdentityService(env.gw.Users, env.gw.Contacts, env.gw.Messages,
		keys.ProofVerifierFunc(func(username, proof string) bool { return proof == "signed-by-"+username }))
	if _, err := strict.Login(ctx, LoginInput{Username: "alice", PrivateKeyProof: "sig"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected rejected proof, got %v", err)
	}
	if _, err := strict.Login(ctx, LoginInput{Username: "alice", PrivateKeyProof: "signed-by-alice"}); err != nil {
		t.Fatalf("expected accepted proof, got %v", err)
	}
}

func TestGetUser(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	u, err := env.identity.GetUser(context.Background(), alice.ID)
	if err != nil || u.Username != "alice" {
		t.Fatalf("expected alice, got %+v (%v)", u, err)
	}
	if _, err := env.identity.GetUser(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddContactIsSymmetric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	view, err := env.identity.AddContact(ctx, alice.ID, AddContactInput{Username: "bob", PublicKey: "PK_bob"})
	if err != nil {
		t.Fatalf("add contact: %v", err)
	}
	if view.ID != bob.ID || view.Username != "bob" {
		t.Fatalf("unexpected view %+v", view)
	}

	aliceList, _ := env.identity.ListContacts(ctx, alice.ID)
	bobList, _ := env.identity.ListContacts(ctx, bob.ID)
	if len(aliceList) != 1 || aliceList[0].ID != bob.ID {
		t.Fatalf("expected bob in alice's list, got %+v", aliceList)
	}
	if len(bobList) != 1 || bobList[0].ID != alice.ID {
		t.Fatalf("expected alice in bob's list, got %+v", bobList)
	}
}

func TestAddContactErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.link(t, alice, bob)

	tests := []struct {
		name    string
		owner   uuid.UUID
		target  string
		wantErr error
	}{
		{"unknown target", alice.ID, "carol", ErrUserNotFound},
		{"unknown owner", uuid.New(), "bob", ErrUserNotFound},
		{"self", alice.ID, "alice", ErrCannotAddSelf},
		{"duplicate", alice.ID, "bob", ErrContactExists},
		{"duplicate reverse", bob.ID, "alice", ErrContactExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.identity.AddContact(ctx, tt.owner, AddContactInput{Username: tt.target, PublicKey: "PK"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestListContactsOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	dave := env.register(t, "dave")
	env.link(t, alice, bob)
	env.link(t, alice, carol)
	env.link(t, alice, dave)

	env.send(t, alice, bob, "older")
	env.send(t, carol, alice, "newer")

	list, err := env.identity.ListContacts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 contacts, got %d", len(list))
	}
	if list[0].Username != "carol" || list[1].Username != "bob" || list[2].Username != "dave" {
		t.Fatalf("unexpected order: %s, %s, %s", list[0].Username, list[1].Username, list[2].Username)
	}
	if list[0].LastMessage == nil || *list[0].LastMessage != domain.EncryptedPlaceholder {
		t.Fatalf("expected placeholder content, got %v", list[0].LastMessage)
	}
	if list[2].LastMessage != nil || list[2].LastMessageTime != nil {
		t.Fatalf("expected no last message for dave")
	}
}

func TestSendRequiresContact(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	_, err := env.messages.Send(context.Background(), alice.ID, SendMessageInput{ReceiverID: bob.ID, Content: "x"})
	if !errors.Is(err, ErrNotContact) || !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrNotContact, got %v", err)
	}
	if len(env.notifier.messages()) != 0 {
		t.Fatalf("rejected send must not notify")
	}
}

// Alice and Bob exchange a message; Bob gets the push, then history marks
// it read.
func TestSendPushThenHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.link(t, alice, bob)

	sent := env.send(t, alice, bob, "encryptedBlob1")
	if sent.Read || !sent.Encrypted || sent.SenderUsername != "alice" {
		t.Fatalf("unexpected sent view %+v", sent)
	}

	pushed := env.notifier.messages()
	if len(pushed) != 1 || pushed[0].ID != sent.ID || pushed[0].Content != "encryptedBlob1" || pushed[0].ReceiverID != bob.ID {
		t.Fatalf("expected one push of the sent message, got %+v", pushed)
	}

	history, err := env.messages.History(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != sent.ID || !history[0].Read {
		t.Fatalf("expected the message back as read, got %+v", history)
	}

	stored, _ := env.gw.Messages.GetByID(ctx, sent.ID)
	if !stored.Read {
		t.Fatalf("history did not persist read state")
	}

	if err := env.messages.MarkRead(ctx, sent.ID, bob.ID); err != nil {
		t.Fatalf("mark read after history should be a no-op success: %v", err)
	}
}

func TestHistoryOnlyMarksReadersMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	carol := env.register(t, "carol")
	dave := env.register(t, "dave")
	env.link(t, carol, dave)

	toDave := env.send(t, carol, dave, "one")
	toCarol := env.send(t, dave, carol, "two")
	env.send(t, carol, dave, "three")

	history, err := env.messages.History(ctx, dave.ID, carol.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if !history[i].Timestamp.After(history[i-1].Timestamp) {
			t.Fatalf("history not strictly ascending at %d", i)
		}
	}
	if history[0].Content != "one" || history[2].Content != "three" {
		t.Fatalf("unexpected order %+v", history)
	}

	if m, _ := env.gw.Messages.GetByID(ctx, toDave.ID); !m.Read {
		t.Fatalf("message to dave should be read")
	}
	if m, _ := env.gw.Messages.GetByID(ctx, toCarol.ID); m.Read {
		t.Fatalf("message to carol must stay unread when dave fetches")
	}
}

func TestHistoryNonContact(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	if _, err := env.messages.History(context.Background(), alice.ID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryEmpty(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.link(t, alice, bob)

	history, err := env.messages.History(context.Background(), alice.ID, bob.ID)
	if err != nil || history == nil || len(history) != 0 {
		t.Fatalf("expected empty non-nil history, got %v (%v)", history, err)
	}
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.link(t, alice, bob)
	msg := env.send(t, alice, bob, "hi")

	if err := env.messages.MarkRead(ctx, uuid.New(), bob.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
	if err := env.messages.MarkRead(ctx, msg.ID, alice.ID); !errors.Is(err, ErrNotReceiver) {
		t.Fatalf("expected ErrNotReceiver for sender, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := env.messages.MarkRead(ctx, msg.ID, bob.ID); err != nil {
			t.Fatalf("mark read pass %d: %v", i, err)
		}
	}
	if m, _ := env.gw.Messages.GetByID(ctx, msg.ID); !m.Read {
		t.Fatalf("expected message read")
	}
}

type failingMessages struct {
	repository.MessageRepository
}

func (failingMessages) Create(context.Context, *domain.Message) error {
	return errors.New("connection reset")
}

func TestSendStoreFailureIsNotDomainError(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.link(t, alice, bob)

	svc := NewMessageService(failingMessages{env.gw.Messages}, env.gw.Contacts)
	svc.SetNotifier(env.notifier)

	_, err := svc.Send(context.Background(), alice.ID, SendMessageInput{ReceiverID: bob.ID, Content: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, category := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrUnauthorized} {
		if errors.Is(err, category) {
			t.Fatalf("store failure surfaced as domain error %v", category)
		}
	}
	if len(env.notifier.messages()) != 0 {
		t.Fatalf("failed write must not notify")
	}
}

func TestClockStrictlyIncreases(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 123456789, time.UTC)
	c := &Clock{now: func() time.Time { return fixed }}

	a, b, d := c.Next(), c.Next(), c.Next()
	if !a.Equal(fixed.Truncate(time.Millisecond)) {
		t.Fatalf("expected millisecond truncation, got %s", a)
	}
	if b.Sub(a) != time.Millisecond || d.Sub(b) != time.Millisecond {
		t.Fatalf("expected 1ms steps, got %s %s %s", a, b, d)
	}

	c.now = func() time.Time { return fixed.Add(-time.Hour) }
	if e := c.Next(); !e.After(d) {
		t.Fatalf("clock went backwards: %s after %s", e, d)
	}
}

// gatedMessages holds the insert of the message with content "held" until
// the first ListConversation has read the conversation, then lets it land
// before that listing returns.
type gatedMessages struct {
	repository.MessageRepository

	waiting chan struct{}
	release chan struct{}
	stored  chan struct{}
	once    sync.Once
}

func newGatedMessages(inner repository.MessageRepository) *gatedMessages {
	return &gatedMessages{
		MessageRepository: inner,
		waiting:           make(chan struct{}),
		release:           make(chan struct{}),
		stored:            make(chan struct{}),
	}
}

func (g *gatedMessages) Create(ctx context.Context, msg *domain.Message) error {
	if msg.Content != "held" {
		return g.MessageRepository.Create(ctx, msg)
	}
	close(g.waiting)
	<-g.release
	defer close(g.stored)
	return g.MessageRepository.Create(ctx, msg)
}

func (g *gatedMessages) ListConversation(ctx context.Context, a, b uuid.UUID) ([]domain.Message, error) {
	msgs, err := g.MessageRepository.ListConversation(ctx, a, b)
	g.once.Do(func() {
		close(g.release)
		<-g.stored
	})
	return msgs, err
}

// Two instances share one store, so the in-process insert lock does not
// order them. The held message is stamped first but stored after the
// listing, and must not be acknowledged on the reader's behalf.
func TestHistoryAcknowledgesOnlyReturnedMessages(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.link(t, alice, bob)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	gated := newGatedMessages(env.gw.Messages)
	slow := NewMessageService(gated, env.gw.Contacts)
	slow.clock = &Clock{now: func() time.Time { return base }}
	fast := NewMessageService(gated, env.gw.Contacts)
	fast.clock = &Clock{now: func() time.Time { return base.Add(time.Second) }}

	type result struct {
		msg *domain.Message
		err error
	}
	heldCh := make(chan result, 1)
	go func() {
		msg, err := slow.Send(ctx, alice.ID, SendMessageInput{ReceiverID: bob.ID, Content: "held"})
		heldCh <- result{msg, err}
	}()
	<-gated.waiting

	later, err := fast.Send(ctx, alice.ID, SendMessageInput{ReceiverID: bob.ID, Content: "later"})
	if err != nil {
		t.Fatalf("send later: %v", err)
	}

	history, err := fast.History(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	held := <-heldCh
	if held.err != nil {
		t.Fatalf("send held: %v", held.err)
	}

	if len(history) != 1 || history[0].ID != later.ID || !history[0].Read {
		t.Fatalf("expected only the later message, read, got %+v", history)
	}
	if m, _ := env.gw.Messages.GetByID(ctx, later.ID); m == nil || !m.Read {
		t.Fatalf("expected returned message stored as read, got %+v", m)
	}
	if m, _ := env.gw.Messages.GetByID(ctx, held.msg.ID); m == nil || m.Read {
		t.Fatalf("message never shown to the reader was marked read: %+v", m)
	}

	again, err := fast.History(ctx, bob.ID, alice.ID)
	if err != nil || len(again) != 2 || again[0].ID != held.msg.ID || !again[0].Read {
		t.Fatalf("expected held message on the next fetch, got %+v (%v)", again, err)
	}
}

// orderedMessages records the timestamps in the order rows are stored.
type orderedMessages struct {
	repository.MessageRepository

	mu    sync.Mutex
	order []time.Time
}

func (o *orderedMessages) Create(ctx context.Context, msg *domain.Message) error {
	if err := o.MessageRepository.Create(ctx, msg); err != nil {
		return err
	}
	o.mu.Lock()
	o.order = append(o.order, msg.Timestamp)
	o.mu.Unlock()
	return nil
}

func TestSendTimestampsFollowInsertOrder(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.link(t, alice, bob)

	ordered := &orderedMessages{MessageRepository: env.gw.Messages}
	svc := NewMessageService(ordered, env.gw.Contacts)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Send(context.Background(), alice.ID, SendMessageInput{ReceiverID: bob.ID, Content: "c"}); err != nil {
				t.Errorf("send: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(ordered.order) != 50 {
		t.Fatalf("expected 50 stored messages, got %d", len(ordered.order))
	}
	for i := 1; i < len(ordered.order); i++ {
		if !ordered.order[i].After(ordered.order[i-1]) {
			t.Fatalf("row %d stored with %s, not after %s", i, ordered.order[i], ordered.order[i-1])
		}
	}
}
