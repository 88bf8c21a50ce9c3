package sqlstore

import (
	"context"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	"github.com/dharun-sukumar/Audio-Rag/domain/tag"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MergeStore implements ports.MergeStore.
type MergeStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// InMergeTransaction runs fn in one write transaction. The transaction is
// committed only when fn returns nil.
func (s *MergeStore) InMergeTransaction(ctx context.Context, fn func(tx ports.MergeTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&mergeTx{db: tx})
	})
}

// IsRetryable reports SQLITE_BUSY and SQLITE_LOCKED.
func (s *MergeStore) IsRetryable(err error) bool {
	return isConflict(err)
}

type mergeTx struct {
	db *gorm.DB
}

func (t *mergeTx) lockUserWhere(ctx context.Context, query string, arg interface{}) (*identity.User, error) {
	var rec userRecord
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(query, arg).
		Take(&rec).Error
	if err != nil {
		return nil, translate("lock user", "user", err)
	}
	return rec.toDomain(), nil
}

func (t *mergeTx) LockGuest(ctx context.Context, guestID string) (*identity.User, error) {
	return t.lockUserWhere(ctx, "guest_id = ?", guestID)
}

func (t *mergeTx) LockUser(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return t.lockUserWhere(ctx, "id = ?", id)
}

func (t *mergeTx) ReassignConversations(ctx context.Context, from, to uuid.UUID) (int64, error) {
	res := t.db.WithContext(ctx).Model(&conversationRecord{}).
		Where("user_id = ?", from).
		Update("user_id", to)
	return res.RowsAffected, translate("reassign conversations", "conversation", res.Error)
}

func (t *mergeTx) ReassignMemories(ctx context.Context, from, to uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := t.db.WithContext(ctx).Model(&memoryRecord{}).Where("user_id = ?", from).Pluck("id", &ids).Error; err != nil {
		return nil, translate("list guest memories", "memory", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err := t.db.WithContext(ctx).Model(&memoryRecord{}).
		Where("user_id = ?", from).
		Update("user_id", to).Error
	if err != nil {
		return nil, translate("reassign memories", "memory", err)
	}
	return ids, nil
}

func (t *mergeTx) ListTags(ctx context.Context, userID uuid.UUID) ([]*tag.Tag, error) {
	var recs []tagRecord
	if err := t.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&recs).Error; err != nil {
		return nil, translate("list tags", "tag", err)
	}
	out := make([]*tag.Tag, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}
	return out, nil
}

func (t *mergeTx) FindTagByName(ctx context.Context, userID uuid.UUID, name string) (*tag.Tag, error) {
	var rec tagRecord
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, tag.NormalizeName(name)).
		Take(&rec).Error
	if err != nil {
		return nil, translate("find tag", "tag", err)
	}
	return rec.toDomain(), nil
}

func (t *mergeTx) RepointMemoryTags(ctx context.Context, from, to uuid.UUID) (int64, error) {
	res := t.db.WithContext(ctx).Exec(`
		INSERT INTO memory_tags (memory_id, tag_id)
		SELECT mt.memory_id, ? FROM memory_tags mt
		WHERE mt.tag_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM memory_tags existing
			WHERE existing.memory_id = mt.memory_id AND existing.tag_id = ?
		  )`, to, from, to)
	if res.Error != nil {
		return 0, translate("repoint memory tags", "memory tag", res.Error)
	}

	if err := t.db.WithContext(ctx).Where("tag_id = ?", from).Delete(&memoryTagRecord{}).Error; err != nil {
		return 0, translate("drop guest memory tags", "memory tag", err)
	}
	return res.RowsAffected, nil
}

func (t *mergeTx) DeleteTag(ctx context.Context, id uuid.UUID) error {
	err := t.db.WithContext(ctx).Where("id = ?", id).Delete(&tagRecord{}).Error
	return translate("delete tag", "tag", err)
}

func (t *mergeTx) TransferTag(ctx context.Context, id, to uuid.UUID) error {
	err := t.db.WithContext(ctx).Model(&tagRecord{}).Where("id = ?", id).Update("user_id", to).Error
	return translate("transfer tag", "tag", err)
}

func (t *mergeTx) ClearGuestIdentity(ctx context.Context, userID uuid.UUID) error {
	err := t.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"guest_id": nil, "is_guest": false}).Error
	return translate("clear guest identity", "user", err)
}

func (t *mergeTx) DeleteUser(ctx context.Context, id uuid.UUID) error {
	err := t.db.WithContext(ctx).Where("id = ?", id).Delete(&userRecord{}).Error
	return translate("delete user", "user", err)
}
