package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/keys"
	"github.com/vedran77/decsecmsg/internal/presence"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Client represents a single WebSocket connection. It satisfies
// presence.Conn.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	logger *zap.Logger

	// send is never closed; done signals the writer to stop instead, so a
	// late Send from the notifier cannot panic.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		logger: logger.With(zap.String("conn", id)),
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues data without blocking. It reports false when the buffer is
// full or the connection is closing.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump reads events until the connection fails, then deregisters the
// client. Events from one connection are handled strictly in order.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var event InboundEvent
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				c.logger.Debug("client disconnected")
			} else {
				c.logger.Debug("read error", zap.Error(err))
			}
			return
		}

		c.handleEvent(ctx, &event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Debug("write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(wctx)
			cancel()
			if err != nil {
				c.logger.Debug("ping error", zap.Error(err))
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(ctx context.Context, event *InboundEvent) {
	switch event.Type {
	case EventTypeAuth:
		username := event.Username
		if username == "" && len(event.Payload) > 0 {
			var p AuthPayload
			if err := json.Unmarshal(event.Payload, &p); err != nil {
				c.sendEvent(EventTypeAuthError, ErrorPayload{Code: "INVALID_PAYLOAD", Message: "invalid auth payload"})
				return
			}
			username = p.Username
		}
		c.authenticate(ctx, strings.TrimSpace(username))

	case EventTypePing:
		c.sendEvent(EventTypePong, nil)

	default:
		c.sendEvent(EventTypeError, ErrorPayload{Code: "UNKNOWN_EVENT", Message: "unknown event type: " + event.Type})
	}
}

func (c *Client) authenticate(ctx context.Context, username string) {
	if username == "" {
		c.sendEvent(EventTypeAuthError, ErrorPayload{Code: "INVALID_PAYLOAD", Message: "username is required"})
		return
	}

	user, err := c.hub.registry.Authenticate(ctx, c, username)
	if err != nil {
		if errors.Is(err, presence.ErrUnknownUser) {
			c.logger.Debug("auth for unknown user", zap.String("username", username))
			c.sendEvent(EventTypeAuthError, ErrorPayload{Code: "UNKNOWN_USER", Message: "unknown username"})
			return
		}
		c.logger.Error("auth failed", zap.Error(err))
		c.sendEvent(EventTypeAuthError, ErrorPayload{Code: "INTERNAL", Message: "authentication unavailable"})
		return
	}

	c.logger.Info("user online", zap.Stringer("user", user.ID), zap.String("username", user.Username))
	c.sendEvent(EventTypeAuthOK, AuthOKPayload{
		ID:          user.ID,
		Username:    user.Username,
		Fingerprint: keys.Fingerprint(user.PublicKey),
	})
}

func (c *Client) sendEvent(eventType string, payload any) {
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		c.logger.Error("marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if !c.Send(data) {
		c.logger.Warn("dropped reply", zap.String("type", eventType))
	}
}
