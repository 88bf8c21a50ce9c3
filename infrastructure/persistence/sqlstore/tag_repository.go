package sqlstore

import (
	"context"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/tag"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TagRepository implements ports.TagRepository.
type TagRepository struct {
	db *gorm.DB
}

func (r *TagRepository) Create(ctx context.Context, t *tag.Tag) error {
	err := r.db.WithContext(ctx).Create(toTagRecord(t)).Error
	if isUniqueViolation(err) {
		return appErrors.NewConflictError("tag with name '" + t.Name + "' already exists").WithCause(err)
	}
	return translate("create tag", "tag", err)
}

func (r *TagRepository) GetForUser(ctx context.Context, userID, id uuid.UUID) (*tag.Tag, error) {
	var rec tagRecord
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&rec).Error
	if err != nil {
		return nil, translate("get tag", "tag", err)
	}

	t := rec.toDomain()
	if err := r.db.WithContext(ctx).Table("memory_tags").Where("tag_id = ?", id).Count(&t.MemoryCount).Error; err != nil {
		return nil, translate("count tagged memories", "tag", err)
	}
	return t, nil
}

// tagWithCount lists its columns explicitly; gorm does not map fields of
// an unexported embedded struct.
type tagWithCount struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	MemoryCount int64
}

func (r *TagRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*tag.Tag, error) {
	var rows []tagWithCount
	err := r.db.WithContext(ctx).Model(&tagRecord{}).
		Select("tags.*, COUNT(memory_tags.memory_id) AS memory_count").
		Joins("LEFT JOIN memory_tags ON memory_tags.tag_id = tags.id").
		Where("tags.user_id = ?", userID).
		Group("tags.id").
		Order("tags.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate("list tags", "tag", err)
	}

	out := make([]*tag.Tag, 0, len(rows))
	for i := range rows {
		row := rows[i]
		out = append(out, &tag.Tag{
			ID:          row.ID,
			UserID:      row.UserID,
			Name:        row.Name,
			Color:       row.Color,
			MemoryCount: row.MemoryCount,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *TagRepository) Update(ctx context.Context, t *tag.Tag) error {
	res := r.db.WithContext(ctx).Model(&tagRecord{}).
		Where("id = ? AND user_id = ?", t.ID, t.UserID).
		Select("name", "color", "updated_at").
		Updates(toTagRecord(t))
	if isUniqueViolation(res.Error) {
		return appErrors.NewConflictError("tag with name '" + t.Name + "' already exists").WithCause(res.Error)
	}
	if res.Error != nil {
		return translate("update tag", "tag", res.Error)
	}
	if res.RowsAffected == 0 {
		return appErrors.NewNotFoundError("tag")
	}
	return nil
}

func (r *TagRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&tagRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return appErrors.NewNotFoundError("tag")
		}
		return tx.Where("tag_id = ?", id).Delete(&memoryTagRecord{}).Error
	})
	return translate("delete tag", "tag", err)
}

func (r *TagRepository) CountOwned(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&tagRecord{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Count(&count).Error
	if err != nil {
		return 0, translate("count tags", "tag", err)
	}
	return count, nil
}
