package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultGuestLimit is how many conversations a guest may own before
// they have to sign in.
const DefaultGuestLimit = 3

// ErrLimitReached is returned when a guest already owns the maximum number of conversations.
var ErrLimitReached = errors.New("guest conversation limit reached")

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Conversation is a chat thread owned by one user.
type Conversation struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Title        string
	MessageCount int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message belongs to a conversation and is deleted with it.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// GuestLimitReached reports whether a guest with existing conversations
// may not create another one.
func GuestLimitReached(existing int64, limit int) bool {
	return existing >= int64(limit)
}
