package commands

import (
	"github.com/dharun-sukumar/Audio-Rag/application/merge"
	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// MergeGuestCommand folds a guest's data into the authenticated target.
// Outcome, when set, receives how a successful merge ended.
type MergeGuestCommand struct {
	GuestID      string
	TargetUserID uuid.UUID
	Outcome      *merge.Outcome
}

func (c MergeGuestCommand) Validate() error {
	if !identity.ValidGuestID(c.GuestID) {
		return appErrors.NewValidationError("guest_id is invalid")
	}
	return requireIDs(map[string]uuid.UUID{"user_id": c.TargetUserID})
}
