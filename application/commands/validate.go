package commands

import (
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// requireIDs returns a validation error naming a nil id, if any.
func requireIDs(ids map[string]uuid.UUID) error {
	for name, id := range ids {
		if id == uuid.Nil {
			return appErrors.NewValidationError(name + " is required")
		}
	}
	return nil
}
