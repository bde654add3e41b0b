// Package presence tracks which live connection, if any, represents each
// user. Entries are in-memory only.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/domain"
)

// ErrUnknownUser is the normal outcome of an auth attempt for a username
// that is not registered. Nothing is mutated.
var ErrUnknownUser = errors.New("unknown username")

// Conn is a live connection handle. Send must not block; it reports
// whether the payload was queued.
type Conn interface {
	ID() string
	Send(data []byte) bool
}

// UserResolver resolves usernames at authentication time.
type UserResolver interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Registry maps user identity to at most one connection. The last
// connection to authenticate for a user wins.
//
// Events for a single connection must be issued in order (auth before
// disconnect); the websocket read loop guarantees this.
type Registry struct {
	users UserResolver

	mu     sync.RWMutex
	byUser map[uuid.UUID]Conn
	byConn map[string]uuid.UUID
}

func NewRegistry(users UserResolver) *Registry {
	return &Registry{
		users:  users,
		byUser: make(map[uuid.UUID]Conn),
		byConn: make(map[string]uuid.UUID),
	}
}

// Authenticate binds conn to the user named username, replacing any
// connection previously bound to that user.
func (r *Registry) Authenticate(ctx context.Context, conn Conn, username string) (*domain.User, error) {
	user, err := r.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolving username: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A connection speaks for one user; drop its old binding when it
	// re-authenticates as someone else.
	if prev, ok := r.byConn[conn.ID()]; ok && prev != user.ID {
		if cur, ok := r.byUser[prev]; ok && cur.ID() == conn.ID() {
			delete(r.byUser, prev)
		}
	}

	// The superseded connection stays open but no longer receives pushes.
	if old, ok := r.byUser[user.ID]; ok && old.ID() != conn.ID() {
		delete(r.byConn, old.ID())
	}

	r.byUser[user.ID] = conn
	r.byConn[conn.ID()] = user.ID
	return user, nil
}

// Disconnect removes the entry held by conn. If conn was already
// superseded by another connection for the same user nothing changes.
func (r *Registry) Disconnect(conn Conn) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[conn.ID()]
	if !ok {
		return uuid.Nil, false
	}
	delete(r.byConn, conn.ID())

	cur, ok := r.byUser[userID]
	if !ok || cur.ID() != conn.ID() {
		return uuid.Nil, false
	}
	delete(r.byUser, userID)
	return userID, true
}

// Lookup returns the connection currently bound to userID.
func (r *Registry) Lookup(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byUser[userID]
	return conn, ok
}

// Online reports how many users have a bound connection.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser)
}
