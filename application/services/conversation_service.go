package services

import (
	"context"
	"errors"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/conversation"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"
	"github.com/dharun-sukumar/Audio-Rag/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultConversationTitle = "New conversation"

// MessageInput is a message as submitted by a client.
type MessageInput struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

// ConversationInput creates a conversation, optionally seeded with messages.
type ConversationInput struct {
	Title    string         `json:"title" validate:"max=255"`
	Messages []MessageInput `json:"messages" validate:"omitempty,dive"`
}

// ConversationService manages conversations and their messages.
type ConversationService struct {
	conversations ports.ConversationRepository
	guestLimit    int
	logger        *zap.Logger
	now           func() time.Time
}

// NewConversationService creates a new conversation service. guestLimit
// caps how many conversations a guest may own; zero means the default.
func NewConversationService(conversations ports.ConversationRepository, guestLimit int, logger *zap.Logger) *ConversationService {
	if guestLimit <= 0 {
		guestLimit = conversation.DefaultGuestLimit
	}
	return &ConversationService{
		conversations: conversations,
		guestLimit:    guestLimit,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create starts a conversation for caller. A guest that already owns the
// limit is refused before anything is written.
func (s *ConversationService) Create(ctx context.Context, caller common.Caller, id uuid.UUID, in ConversationInput) (*conversation.Conversation, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}

	now := s.now()
	c := &conversation.Conversation{
		ID:        id,
		UserID:    caller.UserID,
		Title:     in.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Title == "" {
		c.Title = defaultConversationTitle
	}

	msgs := make([]*conversation.Message, 0, len(in.Messages))
	for _, mi := range in.Messages {
		msgs = append(msgs, &conversation.Message{
			ID:             uuid.New(),
			ConversationID: c.ID,
			Role:           conversation.Role(mi.Role),
			Content:        mi.Content,
			CreatedAt:      now,
		})
	}

	limit := 0
	if caller.IsGuest {
		limit = s.guestLimit
	}
	if err := s.conversations.Create(ctx, c, msgs, limit); err != nil {
		if errors.Is(err, conversation.ErrLimitReached) {
			s.logger.Info("guest conversation limit reached", zap.String("user_id", caller.UserID.String()))
			return nil, appErrors.NewForbiddenError("guest conversation limit reached, sign in to continue").
				WithCode("GUEST_LIMIT_REACHED")
		}
		return nil, err
	}
	return c, nil
}

// Get returns a conversation owned by userID.
func (s *ConversationService) Get(ctx context.Context, userID, id uuid.UUID) (*conversation.Conversation, error) {
	return s.conversations.GetForUser(ctx, userID, id)
}

// List returns the user's conversations, most recently updated first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID, page common.PaginationParams) ([]*conversation.Conversation, error) {
	return s.conversations.ListByUser(ctx, userID, page.Normalize())
}

// Rename changes a conversation title.
func (s *ConversationService) Rename(ctx context.Context, userID, id uuid.UUID, title string) (*conversation.Conversation, error) {
	if err := utils.ValidateStruct(struct {
		Title string `json:"title" validate:"required,max=255"`
	}{title}); err != nil {
		return nil, err
	}
	if err := s.conversations.UpdateTitle(ctx, userID, id, title); err != nil {
		return nil, err
	}
	return s.conversations.GetForUser(ctx, userID, id)
}

// Delete removes a conversation and all of its messages.
func (s *ConversationService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.conversations.Delete(ctx, userID, id)
}

// AddMessage appends a message. id may be uuid.Nil to have one generated.
func (s *ConversationService) AddMessage(ctx context.Context, userID, conversationID, id uuid.UUID, in MessageInput) (*conversation.Message, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	msg := &conversation.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           conversation.Role(in.Role),
		Content:        in.Content,
		CreatedAt:      s.now(),
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if err := s.conversations.AddMessage(ctx, userID, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Messages returns one page of a conversation's messages, oldest first.
func (s *ConversationService) Messages(ctx context.Context, userID, conversationID uuid.UUID, page common.PaginationParams) ([]*conversation.Message, error) {
	return s.conversations.ListMessages(ctx, userID, conversationID, page.Normalize())
}
