// Package repotest holds the behaviour every repository.Gateway backend
// must share. Backend packages call Run from their own tests.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/domain"
	"github.com/vedran77/decsecmsg/internal/repository"
)

// Run exercises a fresh, empty gateway per subtest.
func Run(t *testing.T, newGateway func(t *testing.T) *repository.Gateway) {
	t.Run("UsernameUnique", func(t *testing.T) { testUsernameUnique(t, newGateway(t)) })
	t.Run("ContactPair", func(t *testing.T) { testContactPair(t, newGateway(t)) })
	t.Run("Conversation", func(t *testing.T) { testConversation(t, newGateway(t)) })
	t.Run("MarkRead", func(t *testing.T) { testMarkRead(t, newGateway(t)) })
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func mustCreateUser(t *testing.T, gw *repository.Gateway, username string) *domain.User {
	t.Helper()

	u := &domain.User{
		ID:        uuid.New(),
		Username:  username,
		PublicKey: "PK_" + username,
		CreatedAt: base,
	}
	if err := gw.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return u
}

func mustLink(t *testing.T, gw *repository.Gateway, a, b uuid.UUID) {
	t.Helper()

	err := gw.Contacts.CreatePair(context.Background(),
		&domain.Contact{ID: uuid.New(), OwnerID: a, ContactID: b, CreatedAt: base},
		&domain.Contact{ID: uuid.New(), OwnerID: b, ContactID: a, CreatedAt: base},
	)
	if err != nil {
		t.Fatalf("link contacts: %v", err)
	}
}

func mustSend(t *testing.T, gw *repository.Gateway, from, to uuid.UUID, content string, at time.Time) *domain.Message {
	t.Helper()

	m := &domain.Message{
		ID:         uuid.New(),
		SenderID:   from,
		ReceiverID: to,
		Content:    content,
		Timestamp:  at,
	}
	if err := gw.Messages.Create(context.Background(), m); err != nil {
		t.Fatalf("create message %q: %v", content, err)
	}
	return m
}

func testUsernameUnique(t *testing.T, gw *repository.Gateway) {
	ctx := context.Background()
	alice := mustCreateUser(t, gw, "alice")

	err := gw.Users.Create(ctx, &domain.User{ID: uuid.New(), Username: "alice", PublicKey: "other", CreatedAt: base})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second alice, got %v", err)
	}

	got, err := gw.Users.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got == nil || got.ID != alice.ID || got.PublicKey != "PK_alice" {
		t.Fatalf("expected original alice, got %+v", got)
	}

	byID, err := gw.Users.GetByID(ctx, alice.ID)
	if err != nil || byID == nil || byID.Username != "alice" {
		t.Fatalf("GetByID: got %+v err %v", byID, err)
	}

	missing, err := gw.Users.GetByUsername(ctx, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown user, got %+v, %v", missing, err)
	}
}

func testContactPair(t *testing.T, gw *repository.Gateway) {
	ctx := context.Background()
	alice := mustCreateUser(t, gw, "alice")
	bob := mustCreateUser(t, gw, "bob")
	carol := mustCreateUser(t, gw, "carol")

	mustLink(t, gw, alice.ID, bob.ID)

	for _, edge := range [][2]uuid.UUID{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		c, err := gw.Contacts.Get(ctx, edge[0], edge[1])
		if err != nil || c == nil {
			t.Fatalf("expected edge %s -> %s, got %+v err %v", edge[0], edge[1], c, err)
		}
	}

	err := gw.Contacts.CreatePair(ctx,
		&domain.Contact{ID: uuid.New(), OwnerID: alice.ID, ContactID: bob.ID, CreatedAt: base},
		&domain.Contact{ID: uuid.New(), OwnerID: bob.ID, ContactID: alice.ID, CreatedAt: base},
	)
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated pair, got %v", err)
	}

	// A pair whose reverse edge already exists must not leave the forward edge behind.
	mustLink(t, gw, carol.ID, bob.ID)
	err = gw.Contacts.CreatePair(ctx,
		&domain.Contact{ID: uuid.New(), OwnerID: alice.ID, ContactID: carol.ID, CreatedAt: base},
		&domain.Contact{ID: uuid.New(), OwnerID: bob.ID, ContactID: carol.ID, CreatedAt: base},
	)
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for half-existing pair, got %v", err)
	}
	if c, _ := gw.Contacts.Get(ctx, alice.ID, carol.ID); c != nil {
		t.Fatalf("forward edge survived a failed pair insert")
	}

	list, err := gw.Contacts.ListByOwner(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected bob to have 2 contacts, got %d", len(list))
	}
}

func testConversation(t *testing.T, gw *repository.Gateway) {
	ctx := context.Background()
	alice := mustCreateUser(t, gw, "alice")
	bob := mustCreateUser(t, gw, "bob")
	carol := mustCreateUser(t, gw, "carol")

	if last, err := gw.Messages.LastInConversation(ctx, alice.ID, bob.ID); err != nil || last != nil {
		t.Fatalf("expected no last message, got %+v err %v", last, err)
	}

	m2 := mustSend(t, gw, bob.ID, alice.ID, "second", base.Add(2*time.Second))
	m1 := mustSend(t, gw, alice.ID, bob.ID, "first", base.Add(time.Second))
	mustSend(t, gw, carol.ID, alice.ID, "elsewhere", base.Add(3*time.Second))
	m3 := mustSend(t, gw, alice.ID, bob.ID, "third", base.Add(4*time.Second))

	conv, err := gw.Messages.ListConversation(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("ListConversation: %v", err)
	}
	want := []uuid.UUID{m1.ID, m2.ID, m3.ID}
	if len(conv) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(conv))
	}
	for i, id := range want {
		if conv[i].ID != id {
			t.Fatalf("message %d: expected %s, got %s (%q)", i, id, conv[i].ID, conv[i].Content)
		}
	}
	if conv[1].SenderUsername != "bob" {
		t.Fatalf("expected joined sender username bob, got %q", conv[1].SenderUsername)
	}

	last, err := gw.Messages.LastInConversation(ctx, bob.ID, alice.ID)
	if err != nil || last == nil || last.ID != m3.ID {
		t.Fatalf("expected last message %s, got %+v err %v", m3.ID, last, err)
	}
}

func testMarkRead(t *testing.T, gw *repository.Gateway) {
	ctx := context.Background()
	alice := mustCreateUser(t, gw, "alice")
	bob := mustCreateUser(t, gw, "bob")

	early := mustSend(t, gw, alice.ID, bob.ID, "early", base.Add(time.Second))
	reply := mustSend(t, gw, bob.ID, alice.ID, "reply", base.Add(2*time.Second))
	late := mustSend(t, gw, alice.ID, bob.ID, "late", base.Add(3*time.Second))

	// reply is addressed to alice, so bob cannot flip it.
	n, err := gw.Messages.MarkManyRead(ctx, bob.ID, []uuid.UUID{early.ID, reply.ID, uuid.New()})
	if err != nil {
		t.Fatalf("MarkManyRead: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 message flipped, got %d", n)
	}

	got, _ := gw.Messages.GetByID(ctx, early.ID)
	if got == nil || !got.Read {
		t.Fatalf("expected early message read, got %+v", got)
	}
	got, _ = gw.Messages.GetByID(ctx, reply.ID)
	if got == nil || got.Read {
		t.Fatalf("expected reply untouched, got %+v", got)
	}
	got, _ = gw.Messages.GetByID(ctx, late.ID)
	if got == nil || got.Read {
		t.Fatalf("expected late message still unread, got %+v", got)
	}

	for i := 0; i < 2; i++ {
		if err := gw.Messages.MarkRead(ctx, late.ID); err != nil {
			t.Fatalf("MarkRead pass %d: %v", i, err)
		}
	}
	got, _ = gw.Messages.GetByID(ctx, late.ID)
	if got == nil || !got.Read {
		t.Fatalf("expected late message read after MarkRead")
	}

	n, err = gw.Messages.MarkManyRead(ctx, bob.ID, []uuid.UUID{early.ID, late.ID})
	if err != nil || n != 0 {
		t.Fatalf("expected nothing left to flip, got %d err %v", n, err)
	}
	if n, err := gw.Messages.MarkManyRead(ctx, bob.ID, nil); err != nil || n != 0 {
		t.Fatalf("expected empty id list to be a no-op, got %d err %v", n, err)
	}

	missing, err := gw.Messages.GetByID(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown message, got %+v, %v", missing, err)
	}
}
