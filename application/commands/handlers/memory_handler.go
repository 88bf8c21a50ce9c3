package handlers

import (
	"context"
	"fmt"

	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
)

// MemoryCommandHandler handles memory commands through the MemoryService.
type MemoryCommandHandler struct {
	memories *services.MemoryService
}

// NewMemoryCommandHandler creates a new handler instance
func NewMemoryCommandHandler(memories *services.MemoryService) *MemoryCommandHandler {
	return &MemoryCommandHandler{memories: memories}
}

// Handle executes a memory command
func (h *MemoryCommandHandler) Handle(ctx context.Context, cmd bus.Command) error {
	switch c := cmd.(type) {
	case commands.UploadMemoryCommand:
		m, err := h.memories.Upload(ctx, services.UploadInput{
			MemoryID:    c.MemoryID,
			UserID:      c.UserID,
			Filename:    c.Filename,
			ContentType: c.ContentType,
			Size:        c.Size,
			Body:        c.Body,
			Metadata:    c.Metadata,
		})
		if err == nil && c.Created != nil {
			*c.Created = *m
		}
		return err
	case commands.UpdateMemoryCommand:
		_, err := h.memories.Update(ctx, c.UserID, c.MemoryID, c.Update)
		return err
	case commands.DeleteMemoryCommand:
		return h.memories.Delete(ctx, c.UserID, c.MemoryID)
	case commands.ReprocessMemoryCommand:
		m, err := h.memories.Reprocess(ctx, c.UserID, c.MemoryID)
		if err == nil && c.Reset != nil {
			*c.Reset = *m
		}
		return err
	case commands.AttachTagCommand:
		return h.memories.AttachTag(ctx, c.UserID, c.MemoryID, c.TagID)
	case commands.DetachTagCommand:
		return h.memories.DetachTag(ctx, c.UserID, c.MemoryID, c.TagID)
	default:
		return fmt.Errorf("memory handler cannot handle %T", cmd)
	}
}
