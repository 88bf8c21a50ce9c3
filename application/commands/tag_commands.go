package commands

import (
	"github.com/dharun-sukumar/Audio-Rag/application/services"

	"github.com/google/uuid"
)

// CreateTagCommand creates a tag with a caller chosen id.
type CreateTagCommand struct {
	TagID  uuid.UUID
	UserID uuid.UUID
	Input  services.TagInput
}

func (c CreateTagCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"tag_id": c.TagID, "user_id": c.UserID})
}

// UpdateTagCommand renames or recolors a tag.
type UpdateTagCommand struct {
	TagID  uuid.UUID
	UserID uuid.UUID
	Update services.TagUpdate
}

func (c UpdateTagCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"tag_id": c.TagID, "user_id": c.UserID})
}

// DeleteTagCommand removes a tag.
type DeleteTagCommand struct {
	TagID  uuid.UUID
	UserID uuid.UUID
}

func (c DeleteTagCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"tag_id": c.TagID, "user_id": c.UserID})
}
