package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/decsecmsg/internal/service"
	"github.com/vedran77/decsecmsg/internal/transport/http/middleware"
	"github.com/vedran77/decsecmsg/pkg/validator"
	"go.uber.org/zap"
)

type ContactHandler struct {
	identityService *service.IdentityService
	logger          *zap.Logger
}

func NewContactHandler(identityService *service.IdentityService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{identityService: identityService, logger: logger}
}

type contactCreatedResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	contacts, err := h.identityService.ListContacts(r.Context(), userID)
	if err != nil {
		writeInternal(w, h.logger, "list contacts", err)
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}

func (h *ContactHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.AddContactInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateAddContact(input.Username, input.PublicKey); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	contact, err := h.identityService.AddContact(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrContactExists):
			writeError(w, http.StatusConflict, "ALREADY_CONTACT", "Already a contact")
		case errors.Is(err, service.ErrCannotAddSelf):
			writeError(w, http.StatusBadRequest, "CANNOT_ADD_SELF", "You cannot add yourself as a contact")
		default:
			writeInternal(w, h.logger, "add contact", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, contactCreatedResponse{ID: contact.ID, Username: contact.Username})
}
