package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable, persisted chat message.
type Message struct {
	ID        uuid.UUID
	Room      RoomID
	Sender    IdentityID
	Content   string
	CreatedAt time.Time
}
