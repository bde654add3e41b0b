package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types - Client → Server
const (
	EventTypeAuth = "auth"
	EventTypePing = "ping"
)

// Event types - Server → Client
const (
	EventTypeNewMessage = "new_message"
	EventTypeAuthOK     = "auth_ok"
	EventTypeAuthError  = "auth_error"
	EventTypePong       = "pong"
	EventTypeError      = "error"
)

// Event is the envelope for server → client messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// InboundEvent is what clients send. Fields may be given flat or inside
// payload: {"type":"auth","username":"bob"} and
// {"type":"auth","payload":{"username":"bob"}} are equivalent.
type InboundEvent struct {
	Type     string          `json:"type"`
	Username string          `json:"username,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// --- Client → Server payloads ---

type AuthPayload struct {
	Username string `json:"username"`
}

// --- Server → Client payloads ---

type AuthOKPayload struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Fingerprint string    `json:"fingerprint"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// newEvent creates a server→client event with the current timestamp.
func newEvent(eventType string, payload any) (*Event, error) {
	evt := &Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Payload = data
	}
	return evt, nil
}

// encodeEvent builds and marshals an event in one step.
func encodeEvent(eventType string, payload any) ([]byte, error) {
	evt, err := newEvent(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(evt)
}
