package sqlstore

import (
	"context"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/conversation"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationRepository implements ports.ConversationRepository.
type ConversationRepository struct {
	db *gorm.DB
}

func (r *ConversationRepository) Create(ctx context.Context, c *conversation.Conversation, msgs []*conversation.Message, limit int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if limit > 0 {
			var count int64
			if err := tx.Model(&conversationRecord{}).Where("user_id = ?", c.UserID).Count(&count).Error; err != nil {
				return err
			}
			if conversation.GuestLimitReached(count, limit) {
				return conversation.ErrLimitReached
			}
		}

		rec := &conversationRecord{
			ID:        c.ID,
			UserID:    c.UserID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		if len(msgs) == 0 {
			return nil
		}
		rows := make([]messageRecord, 0, len(msgs))
		for _, m := range msgs {
			rows = append(rows, messageRecord{
				ID:             m.ID,
				ConversationID: c.ID,
				Role:           string(m.Role),
				Content:        m.Content,
				CreatedAt:      m.CreatedAt,
			})
		}
		return tx.Create(&rows).Error
	})
	if err == nil {
		c.MessageCount = int64(len(msgs))
	}
	return translate("create conversation", "conversation", err)
}

func (r *ConversationRepository) GetForUser(ctx context.Context, userID, id uuid.UUID) (*conversation.Conversation, error) {
	var rec conversationRecord
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&rec).Error
	if err != nil {
		return nil, translate("get conversation", "conversation", err)
	}

	c := rec.toDomain()
	if err := r.db.WithContext(ctx).Model(&messageRecord{}).Where("conversation_id = ?", id).Count(&c.MessageCount).Error; err != nil {
		return nil, translate("count messages", "message", err)
	}
	return c, nil
}

type conversationWithCount struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int64
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, page common.PaginationParams) ([]*conversation.Conversation, error) {
	page = page.Normalize()

	var rows []conversationWithCount
	err := r.withCounts(ctx, userID).
		Order("conversations.updated_at DESC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, translate("list conversations", "conversation", err)
	}
	return toConversations(rows), nil
}

// ListCreatedBetween returns the owner's conversations created in [from, to),
// newest first.
func (r *ConversationRepository) ListCreatedBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*conversation.Conversation, error) {
	var rows []conversationWithCount
	err := r.withCounts(ctx, userID).
		Where("conversations.created_at >= ? AND conversations.created_at < ?", from.UTC(), to.UTC()).
		Order("conversations.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate("list conversations by date", "conversation", err)
	}
	return toConversations(rows), nil
}

func (r *ConversationRepository) withCounts(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&conversationRecord{}).
		Select("conversations.*, COUNT(messages.id) AS message_count").
		Joins("LEFT JOIN messages ON messages.conversation_id = conversations.id").
		Where("conversations.user_id = ?", userID).
		Group("conversations.id")
}

func toConversations(rows []conversationWithCount) []*conversation.Conversation {
	out := make([]*conversation.Conversation, 0, len(rows))
	for i := range rows {
		row := rows[i]
		out = append(out, &conversation.Conversation{
			ID:           row.ID,
			UserID:       row.UserID,
			Title:        row.Title,
			MessageCount: row.MessageCount,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return out
}

func (r *ConversationRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&conversationRecord{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, translate("count conversations", "conversation", err)
	}
	return count, nil
}

func (r *ConversationRepository) UpdateTitle(ctx context.Context, userID, id uuid.UUID, title string) error {
	res := r.db.WithContext(ctx).Model(&conversationRecord{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return translate("update conversation", "conversation", res.Error)
	}
	if res.RowsAffected == 0 {
		return appErrors.NewNotFoundError("conversation")
	}
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&conversationRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return appErrors.NewNotFoundError("conversation")
		}
		return tx.Where("conversation_id = ?", id).Delete(&messageRecord{}).Error
	})
	return translate("delete conversation", "conversation", err)
}

func (r *ConversationRepository) AddMessage(ctx context.Context, userID uuid.UUID, msg *conversation.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&conversationRecord{}).
			Where("id = ? AND user_id = ?", msg.ConversationID, userID).
			Update("updated_at", time.Now().UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return appErrors.NewNotFoundError("conversation")
		}

		return tx.Create(&messageRecord{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Role:           string(msg.Role),
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
		}).Error
	})
	return translate("add message", "message", err)
}

func (r *ConversationRepository) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, page common.PaginationParams) ([]*conversation.Message, error) {
	if _, err := r.GetForUser(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	page = page.Normalize()
	var rows []messageRecord
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, translate("list messages", "message", err)
	}

	out := make([]*conversation.Message, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
