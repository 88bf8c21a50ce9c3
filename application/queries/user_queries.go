package queries

import (
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// GetUserQuery loads a user record.
type GetUserQuery struct {
	UserID uuid.UUID
}

// Validate validates the GetUserQuery
func (q GetUserQuery) Validate() error {
	if q.UserID == uuid.Nil {
		return appErrors.NewValidationError("user id is required")
	}
	return nil
}
