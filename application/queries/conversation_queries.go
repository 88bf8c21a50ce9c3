package queries

import (
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// GetConversationQuery loads one conversation owned by the user.
type GetConversationQuery struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
}

// Validate validates the GetConversationQuery
func (q GetConversationQuery) Validate() error {
	if q.UserID == uuid.Nil || q.ConversationID == uuid.Nil {
		return appErrors.NewValidationError("user and conversation id are required")
	}
	return nil
}

// ListConversationsQuery lists the user's conversations.
type ListConversationsQuery struct {
	UserID     uuid.UUID
	Pagination common.PaginationParams
}

// Validate validates the ListConversationsQuery
func (q ListConversationsQuery) Validate() error {
	if q.UserID == uuid.Nil {
		return appErrors.NewValidationError("user id is required")
	}
	return nil
}

// ListMessagesQuery lists the messages of one conversation.
type ListMessagesQuery struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
	Pagination     common.PaginationParams
}

// Validate validates the ListMessagesQuery
func (q ListMessagesQuery) Validate() error {
	if q.UserID == uuid.Nil || q.ConversationID == uuid.Nil {
		return appErrors.NewValidationError("user and conversation id are required")
	}
	return nil
}
