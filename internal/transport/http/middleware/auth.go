package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/session"
	"go.uber.org/zap"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// SessionCookie carries the session token for browser clients.
const SessionCookie = "session"

// Auth resolves the caller from a bearer token or the session cookie. With
// allowQueryUserID set, a bare ?userId= is also trusted; that mode exists
// for manual testing only.
func Auth(sessions *session.Manager, allowQueryUserID bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenStr := TokenFromRequest(r); tokenStr != "" {
				claims, err := sessions.Parse(r.Context(), tokenStr)
				if err != nil {
					if errors.Is(err, session.ErrInvalidToken) || errors.Is(err, session.ErrRevoked) {
						writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired session")
						return
					}
					logger.Error("session check failed", zap.Error(err))
					writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
					return
				}

				userID, err := claims.UserID()
				if err != nil || userID == uuid.Nil {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired session")
					return
				}
				ctx := context.WithValue(r.Context(), UserIDKey, userID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if allowQueryUserID {
				if raw := r.URL.Query().Get("userId"); raw != "" {
					userID, err := uuid.Parse(raw)
					if err != nil {
						writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
						return
					}
					ctx := context.WithValue(r.Context(), UserIDKey, userID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		})
	}
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie. Empty when neither is present.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) uuid.UUID {
	return ctx.Value(UserIDKey).(uuid.UUID)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
