package sqlstore

import (
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/conversation"
	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/domain/tag"

	"github.com/google/uuid"
)

// Rows carry foreign keys as plain columns. Cascades are done explicitly
// in the repository that deletes the parent.

type userRecord struct {
	ID          uuid.UUID `gorm:"type:text;primaryKey"`
	Email       *string   `gorm:"uniqueIndex"`
	ExternalUID *string   `gorm:"column:external_uid;uniqueIndex"`
	Name        string
	Picture     string
	IsGuest     bool    `gorm:"not null;default:false"`
	GuestID     *string `gorm:"uniqueIndex"`
	LastSeenAt  *time.Time
	CreatedAt   time.Time
}

func (userRecord) TableName() string { return "users" }

type memoryRecord struct {
	ID            uuid.UUID `gorm:"type:text;primaryKey"`
	UserID        uuid.UUID `gorm:"type:text;not null;index"`
	Title         string    `gorm:"size:255"`
	Description   string
	MediaType     string `gorm:"not null"`
	ContentType   string
	SourceKey     string `gorm:"not null"`
	AudioKey      string
	TranscriptKey string
	Topic         string `gorm:"size:100;index"`
	Mood          *int
	People        []string `gorm:"serializer:json"`
	MemoryDate    *time.Time
	Status        string `gorm:"not null;index"`
	ErrorMessage  string
	FailedStage   string
	RunSeq        int64 `gorm:"not null;default:0"`
	ClaimedAt     *time.Time `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (memoryRecord) TableName() string { return "memories" }

type tagRecord struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	UserID    uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_tags_user_name"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:idx_tags_user_name"`
	Color     string    `gorm:"size:7"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (tagRecord) TableName() string { return "tags" }

type memoryTagRecord struct {
	MemoryID uuid.UUID `gorm:"type:text;primaryKey"`
	TagID    uuid.UUID `gorm:"type:text;primaryKey;index"`
}

func (memoryTagRecord) TableName() string { return "memory_tags" }

type conversationRecord struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	UserID    uuid.UUID `gorm:"type:text;not null;index"`
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (conversationRecord) TableName() string { return "conversations" }

type messageRecord struct {
	ID             uuid.UUID `gorm:"type:text;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:text;not null;index"`
	Role           string    `gorm:"not null"`
	Content        string
	CreatedAt      time.Time `gorm:"index"`
}

func (messageRecord) TableName() string { return "messages" }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toUserRecord(u *identity.User) *userRecord {
	return &userRecord{
		ID:          u.ID,
		Email:       nullable(u.Email),
		ExternalUID: nullable(u.ExternalUID),
		Name:        u.Name,
		Picture:     u.Picture,
		IsGuest:     u.IsGuest,
		GuestID:     nullable(u.GuestID),
		LastSeenAt:  u.LastSeenAt,
		CreatedAt:   u.CreatedAt,
	}
}

func (r *userRecord) toDomain() *identity.User {
	return &identity.User{
		ID:          r.ID,
		Email:       deref(r.Email),
		ExternalUID: deref(r.ExternalUID),
		Name:        r.Name,
		Picture:     r.Picture,
		IsGuest:     r.IsGuest,
		GuestID:     deref(r.GuestID),
		LastSeenAt:  r.LastSeenAt,
		CreatedAt:   r.CreatedAt,
	}
}

func toMemoryRecord(m *memory.Memory) *memoryRecord {
	return &memoryRecord{
		ID:            m.ID,
		UserID:        m.UserID,
		Title:         m.Title,
		Description:   m.Description,
		MediaType:     string(m.MediaType),
		ContentType:   m.ContentType,
		SourceKey:     m.SourceKey,
		AudioKey:      m.AudioKey,
		TranscriptKey: m.TranscriptKey,
		Topic:         m.Topic,
		Mood:          m.Mood,
		People:        m.People,
		MemoryDate:    m.MemoryDate,
		Status:        string(m.Status),
		ErrorMessage:  m.ErrorMessage,
		FailedStage:   string(m.FailedStage),
		RunSeq:        m.RunSeq,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (r *memoryRecord) toDomain(tagIDs []uuid.UUID) *memory.Memory {
	return &memory.Memory{
		ID:            r.ID,
		UserID:        r.UserID,
		Title:         r.Title,
		Description:   r.Description,
		MediaType:     memory.MediaType(r.MediaType),
		ContentType:   r.ContentType,
		SourceKey:     r.SourceKey,
		AudioKey:      r.AudioKey,
		TranscriptKey: r.TranscriptKey,
		Topic:         r.Topic,
		Mood:          r.Mood,
		People:        r.People,
		MemoryDate:    r.MemoryDate,
		Status:        memory.Status(r.Status),
		ErrorMessage:  r.ErrorMessage,
		FailedStage:   memory.Stage(r.FailedStage),
		RunSeq:        r.RunSeq,
		TagIDs:        tagIDs,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toTagRecord(t *tag.Tag) *tagRecord {
	return &tagRecord{
		ID:        t.ID,
		UserID:    t.UserID,
		Name:      t.Name,
		Color:     t.Color,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (r *tagRecord) toDomain() *tag.Tag {
	return &tag.Tag{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Color:     r.Color,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *conversationRecord) toDomain() *conversation.Conversation {
	return &conversation.Conversation{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *messageRecord) toDomain() *conversation.Message {
	return &conversation.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           conversation.Role(r.Role),
		Content:        r.Content,
		CreatedAt:      r.CreatedAt,
	}
}
