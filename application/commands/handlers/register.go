package handlers

import (
	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
)

// Register wires every command type to its handler.
func Register(
	b *bus.CommandBus,
	memories *MemoryCommandHandler,
	tags *TagCommandHandler,
	conversations *ConversationCommandHandler,
	merges *MergeCommandHandler,
) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.UploadMemoryCommand{}, memories},
		{commands.UpdateMemoryCommand{}, memories},
		{commands.DeleteMemoryCommand{}, memories},
		{commands.ReprocessMemoryCommand{}, memories},
		{commands.AttachTagCommand{}, memories},
		{commands.DetachTagCommand{}, memories},
		{commands.CreateTagCommand{}, tags},
		{commands.UpdateTagCommand{}, tags},
		{commands.DeleteTagCommand{}, tags},
		{commands.CreateConversationCommand{}, conversations},
		{commands.RenameConversationCommand{}, conversations},
		{commands.DeleteConversationCommand{}, conversations},
		{commands.AddMessageCommand{}, conversations},
		{commands.MergeGuestCommand{}, merges},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}
