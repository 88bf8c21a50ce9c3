package queries

import (
	"strings"

	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// MaxQuestionLength caps the question sent to the language model.
const MaxQuestionLength = 2000

// AskQuery answers a question from the user's own memories.
type AskQuery struct {
	UserID   uuid.UUID
	Question string
}

// Validate validates the AskQuery
func (q AskQuery) Validate() error {
	if q.UserID == uuid.Nil {
		return appErrors.NewValidationError("user id is required")
	}
	if strings.TrimSpace(q.Question) == "" {
		return appErrors.NewValidationError("query is required")
	}
	if len(q.Question) > MaxQuestionLength {
		return appErrors.NewValidationError("query must be at most 2000 characters")
	}
	return nil
}
