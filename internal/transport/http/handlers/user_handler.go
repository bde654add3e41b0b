package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/vedran77/decsecmsg/internal/domain"
	"github.com/vedran77/decsecmsg/internal/keys"
	"github.com/vedran77/decsecmsg/internal/service"
	"github.com/vedran77/decsecmsg/internal/session"
	"github.com/vedran77/decsecmsg/internal/transport/http/middleware"
	"github.com/vedran77/decsecmsg/pkg/validator"
	"go.uber.org/zap"
)

type UserHandler struct {
	identityService *service.IdentityService
	sessions        *session.Manager
	cookieSecure    bool
	logger          *zap.Logger
}

func NewUserHandler(identityService *service.IdentityService, sessions *session.Manager, cookieSecure bool, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		identityService: identityService,
		sessions:        sessions,
		cookieSecure:    cookieSecure,
		logger:          logger,
	}
}

// sessionResponse is the user object plus the session token for clients
// that do not keep cookies.
type sessionResponse struct {
	*domain.User
	Token string `json:"token"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateRegister(input.Username, input.PublicKey); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.identityService.Register(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username is already taken")
		} else {
			writeInternal(w, h.logger, "register", err)
		}
		return
	}

	h.logger.Info("user registered",
		zap.String("username", user.Username),
		zap.String("key", keys.Format(keys.Fingerprint(user.PublicKey))),
	)
	h.startSession(w, http.StatusCreated, user)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateLogin(input.Username, input.PrivateKeyProof); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.identityService.Login(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or private key")
		} else {
			writeInternal(w, h.logger, "login", err)
		}
		return
	}

	h.startSession(w, http.StatusOK, user)
}

// Logout always succeeds. A valid session presented with the request is
// revoked so the token stops working before it expires.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if tokenStr := middleware.TokenFromRequest(r); tokenStr != "" {
		claims, err := h.sessions.Parse(r.Context(), tokenStr)
		switch {
		case err == nil:
			if err := h.sessions.Revoke(r.Context(), claims); err != nil {
				writeInternal(w, h.logger, "logout", err)
				return
			}
		case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrRevoked):
		default:
			writeInternal(w, h.logger, "logout", err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	user, err := h.identityService.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			writeInternal(w, h.logger, "get user", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) startSession(w http.ResponseWriter, status int, user *domain.User) {
	token, claims, err := h.sessions.Issue(user.ID)
	if err != nil {
		writeInternal(w, h.logger, "issue session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, sessionResponse{User: user, Token: token})
}
