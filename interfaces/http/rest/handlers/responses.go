package handlers

import (
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/conversation"
	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/domain/tag"

	"github.com/google/uuid"
)

// MemoryResponse is the wire form of a memory.
type MemoryResponse struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	MediaType    string      `json:"media_type"`
	ContentType  string      `json:"content_type"`
	Topic        string      `json:"topic,omitempty"`
	Mood         *int        `json:"mood,omitempty"`
	People       []string    `json:"people"`
	MemoryDate   *time.Time  `json:"memory_date,omitempty"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	FailedStage  string      `json:"failed_stage,omitempty"`
	TagIDs       []uuid.UUID `json:"tag_ids"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func newMemoryResponse(m *memory.Memory) MemoryResponse {
	people := m.People
	if people == nil {
		people = []string{}
	}
	tagIDs := m.TagIDs
	if tagIDs == nil {
		tagIDs = []uuid.UUID{}
	}
	return MemoryResponse{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		MediaType:    string(m.MediaType),
		ContentType:  m.ContentType,
		Topic:        m.Topic,
		Mood:         m.Mood,
		People:       people,
		MemoryDate:   m.MemoryDate,
		Status:       string(m.Status),
		ErrorMessage: m.ErrorMessage,
		FailedStage:  string(m.FailedStage),
		TagIDs:       tagIDs,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// TagResponse is the wire form of a tag.
type TagResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	MemoryCount int64     `json:"memory_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newTagResponse(t *tag.Tag) TagResponse {
	return TagResponse{
		ID:          t.ID,
		Name:        t.Name,
		Color:       t.Color,
		MemoryCount: t.MemoryCount,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// ConversationResponse is the wire form of a conversation.
type ConversationResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newConversationResponse(c *conversation.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:           c.ID,
		Title:        c.Title,
		MessageCount: c.MessageCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// MessageResponse is the wire form of a conversation message.
type MessageResponse struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func newMessageResponse(m *conversation.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

// UserResponse is the wire form of the resolved caller.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	IsGuest   bool      `json:"is_guest"`
	GuestID   string    `json:"guest_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Picture:   u.Picture,
		IsGuest:   u.IsGuest,
		GuestID:   u.GuestID,
		CreatedAt: u.CreatedAt,
	}
}

// SearchHitResponse is one search result.
type SearchHitResponse struct {
	MemoryID   uuid.UUID `json:"memory_id"`
	Text       string    `json:"text"`
	Similarity float32   `json:"similarity"`
	Start      *float64  `json:"start,omitempty"`
	End        *float64  `json:"end,omitempty"`
}

func newSearchHitResponse(h ports.SearchHit) SearchHitResponse {
	return SearchHitResponse{
		MemoryID:   h.MemoryID,
		Text:       h.Text,
		Similarity: h.Similarity,
		Start:      h.Start,
		End:        h.End,
	}
}

// mapSlice converts every element of in with fn.
func mapSlice[T any, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

// itemsResponse wraps listings that carry no total.
type itemsResponse[T any] struct {
	Items []T `json:"items"`
}
