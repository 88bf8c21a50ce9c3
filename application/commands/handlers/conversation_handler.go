package handlers

import (
	"context"
	"fmt"

	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
)

// ConversationCommandHandler handles conversation and message commands.
type ConversationCommandHandler struct {
	conversations *services.ConversationService
}

// NewConversationCommandHandler creates a new handler instance
func NewConversationCommandHandler(conversations *services.ConversationService) *ConversationCommandHandler {
	return &ConversationCommandHandler{conversations: conversations}
}

// Handle executes a conversation command
func (h *ConversationCommandHandler) Handle(ctx context.Context, cmd bus.Command) error {
	switch c := cmd.(type) {
	case commands.CreateConversationCommand:
		_, err := h.conversations.Create(ctx, c.Caller, c.ConversationID, c.Input)
		return err
	case commands.RenameConversationCommand:
		_, err := h.conversations.Rename(ctx, c.UserID, c.ConversationID, c.Title)
		return err
	case commands.DeleteConversationCommand:
		return h.conversations.Delete(ctx, c.UserID, c.ConversationID)
	case commands.AddMessageCommand:
		_, err := h.conversations.AddMessage(ctx, c.UserID, c.ConversationID, c.MessageID, c.Input)
		return err
	default:
		return fmt.Errorf("conversation handler cannot handle %T", cmd)
	}
}
