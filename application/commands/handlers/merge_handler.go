package handlers

import (
	"context"
	"fmt"

	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/merge"
)

// MergeCommandHandler runs guest merges. Already merged guests succeed.
type MergeCommandHandler struct {
	coordinator *merge.Coordinator
}

// NewMergeCommandHandler creates a new handler instance
func NewMergeCommandHandler(coordinator *merge.Coordinator) *MergeCommandHandler {
	return &MergeCommandHandler{coordinator: coordinator}
}

// Handle executes a merge command
func (h *MergeCommandHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.MergeGuestCommand)
	if !ok {
		return fmt.Errorf("merge handler cannot handle %T", cmd)
	}
	outcome, err := h.coordinator.Merge(ctx, c.GuestID, c.TargetUserID)
	if err != nil {
		return err
	}
	if c.Outcome != nil {
		*c.Outcome = outcome
	}
	return nil
}
