package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/vedran77/decsecmsg/internal/service"
	"github.com/vedran77/decsecmsg/internal/transport/http/middleware"
	"github.com/vedran77/decsecmsg/pkg/validator"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messageService *service.MessageService
	logger         *zap.Logger
}

func NewMessageHandler(messageService *service.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, logger: logger}
}

type sendMessageRequest struct {
	ReceiverID string  `json:"receiverId"`
	Content    string  `json:"content"`
	IPFSHash   *string `json:"ipfsHash"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateSendMessage(req.ReceiverID, req.Content, req.IPFSHash); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid receiver ID")
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, service.SendMessageInput{
		ReceiverID: receiverID,
		Content:    req.Content,
		IPFSHash:   req.IPFSHash,
	})
	if err != nil {
		// Not revealing whether the receiver exists at all.
		if errors.Is(err, service.ErrNotContact) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Receiver is not in your contacts")
		} else {
			writeInternal(w, h.logger, "send message", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	contactID, err := uuid.Parse(mux.Vars(r)["contactId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid contact ID")
		return
	}

	messages, err := h.messageService.History(r.Context(), userID, contactID)
	if err != nil {
		if errors.Is(err, service.ErrContactNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Contact not found")
		} else {
			writeInternal(w, h.logger, "message history", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.messageService.MarkRead(r.Context(), messageID, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		case errors.Is(err, service.ErrNotReceiver):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the receiver can mark a message read")
		default:
			writeInternal(w, h.logger, "mark read", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
