package ws

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket. The
// connection is anonymous until it sends an auth event.
func ServeWS(hub *Hub, allowedOrigins []string, logger *zap.Logger) http.HandlerFunc {
	patterns := originPatterns(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: patterns,
		})
		if err != nil {
			logger.Warn("websocket accept failed", zap.Error(err))
			return
		}

		client := NewClient(hub, conn, logger)
		if !hub.add(client) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		// The request context ends when this handler returns, so the
		// pumps run on their own.
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			client.WritePump(ctx)
			cancel()
		}()
		go func() {
			client.ReadPump(ctx)
			cancel()
		}()
	}
}

// originPatterns turns configured origins into the host patterns
// websocket.Accept matches against.
func originPatterns(origins []string) []string {
	var patterns []string
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			patterns = append(patterns, origin)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
