package ws

import (
	"context"

	"github.com/vedran77/decsecmsg/internal/presence"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Hub owns the set of open connections and ties their lifetime to the
// presence registry. Which user a connection speaks for lives in the
// registry, not here.
type Hub struct {
	registry *presence.Registry
	logger   *zap.Logger

	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
}

func NewHub(registry *presence.Registry, logger *zap.Logger) *Hub {
	return &Hub{
		registry:   registry,
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine. When ctx
// ends every open connection is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("connection opened",
				zap.String("conn", client.id),
				zap.Int("connections", len(h.clients)),
			)

		case client := <-h.unregister:
			delete(h.clients, client)
			h.logger.Debug("connection closed",
				zap.String("conn", client.id),
				zap.Int("connections", len(h.clients)),
			)

		case <-ctx.Done():
			// Each read loop then fails and deregisters its client.
			for client := range h.clients {
				go client.conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			h.logger.Info("hub stopped", zap.Int("closed", len(h.clients)))
			return
		}
	}
}

// Registry exposes the presence registry the hub reports to.
func (h *Hub) Registry() *presence.Registry {
	return h.registry
}

// add reports false once the hub has stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

// remove runs once per connection, after its read loop has exited, so the
// disconnect always follows any auth the connection performed.
func (h *Hub) remove(c *Client) {
	if userID, removed := h.registry.Disconnect(c); removed {
		h.logger.Info("user offline", zap.Stringer("user", userID), zap.String("conn", c.id))
	}
	c.close()

	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}
