package handlers

import (
	"context"
	"fmt"

	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
)

// TagCommandHandler handles tag commands.
type TagCommandHandler struct {
	tags *services.TagService
}

// NewTagCommandHandler creates a new handler instance
func NewTagCommandHandler(tags *services.TagService) *TagCommandHandler {
	return &TagCommandHandler{tags: tags}
}

// Handle executes a tag command
func (h *TagCommandHandler) Handle(ctx context.Context, cmd bus.Command) error {
	switch c := cmd.(type) {
	case commands.CreateTagCommand:
		_, err := h.tags.Create(ctx, c.UserID, c.TagID, c.Input)
		return err
	case commands.UpdateTagCommand:
		_, err := h.tags.Update(ctx, c.UserID, c.TagID, c.Update)
		return err
	case commands.DeleteTagCommand:
		return h.tags.Delete(ctx, c.UserID, c.TagID)
	default:
		return fmt.Errorf("tag handler cannot handle %T", cmd)
	}
}
