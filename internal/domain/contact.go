package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a directed edge: OwnerID has ContactID in their contact list.
// Edges are always written in inverse pairs.
type Contact struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	ContactID uuid.UUID `json:"contact_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactView is a contact list entry. Last message content is never
// exposed here, only a placeholder.
type ContactView struct {
	ID              uuid.UUID  `json:"id"`
	Username        string     `json:"username"`
	PublicKey       string     `json:"publicKey"`
	LastMessage     *string    `json:"lastMessage"`
	LastMessageTime *time.Time `json:"lastMessageTime"`
}
