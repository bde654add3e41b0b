package domain

import (
	"time"

	"github.com/google/uuid"
)

// EncryptedPlaceholder stands in for message content in list views.
const EncryptedPlaceholder = "(Encrypted message)"

// Message content is ciphertext produced by the client. Read is the only
// field that changes after creation.
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
	Content    string    `json:"content"`
	IPFSHash   *string   `json:"ipfsHash"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
	// Joined fields
	SenderUsername string `json:"senderUsername"`
	Encrypted      bool   `json:"encrypted"`
}
