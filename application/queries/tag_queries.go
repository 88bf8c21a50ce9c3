package queries

import (
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// GetTagQuery loads one tag owned by the user.
type GetTagQuery struct {
	UserID uuid.UUID
	TagID  uuid.UUID
}

// Validate validates the GetTagQuery
func (q GetTagQuery) Validate() error {
	if q.UserID == uuid.Nil || q.TagID == uuid.Nil {
		return appErrors.NewValidationError("user and tag id are required")
	}
	return nil
}

// ListTagsQuery lists the user's tags with their memory counts.
type ListTagsQuery struct {
	UserID uuid.UUID
}

// Validate validates the ListTagsQuery
func (q ListTagsQuery) Validate() error {
	if q.UserID == uuid.Nil {
		return appErrors.NewValidationError("user id is required")
	}
	return nil
}
