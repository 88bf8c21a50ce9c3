package commands

import (
	"github.com/dharun-sukumar/Audio-Rag/application/services"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"

	"github.com/google/uuid"
)

// CreateConversationCommand starts a conversation. Caller carries the guest
// flag the conversation limit depends on.
type CreateConversationCommand struct {
	ConversationID uuid.UUID
	Caller         common.Caller
	Input          services.ConversationInput
}

func (c CreateConversationCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"conversation_id": c.ConversationID, "user_id": c.Caller.UserID})
}

// RenameConversationCommand changes a conversation title.
type RenameConversationCommand struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Title          string
}

func (c RenameConversationCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"conversation_id": c.ConversationID, "user_id": c.UserID})
}

// DeleteConversationCommand removes a conversation and its messages.
type DeleteConversationCommand struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
}

func (c DeleteConversationCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"conversation_id": c.ConversationID, "user_id": c.UserID})
}

// AddMessageCommand appends a message to a conversation.
type AddMessageCommand struct {
	MessageID      uuid.UUID
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Input          services.MessageInput
}

func (c AddMessageCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{
		"message_id":      c.MessageID,
		"conversation_id": c.ConversationID,
		"user_id":         c.UserID,
	})
}
