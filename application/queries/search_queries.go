package queries

import (
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// MaxSearchResults caps how many chunks one search returns.
const MaxSearchResults = 50

// SearchMemoriesQuery finds the indexed chunks of the user's memories most
// similar to Text.
type SearchMemoriesQuery struct {
	UserID uuid.UUID
	Text   string
	Limit  int
}

// Validate validates the SearchMemoriesQuery
func (q SearchMemoriesQuery) Validate() error {
	if q.UserID == uuid.Nil {
		return appErrors.NewValidationError("user id is required")
	}
	if q.Text == "" {
		return appErrors.NewValidationError("search text is required")
	}
	if q.Limit < 1 || q.Limit > MaxSearchResults {
		return appErrors.NewValidationError("limit must be between 1 and 50")
	}
	return nil
}
