package sqlstore

import (
	"context"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemoryRepository implements ports.MemoryRepository.
type MemoryRepository struct {
	db *gorm.DB
}

func (r *MemoryRepository) Create(ctx context.Context, m *memory.Memory) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toMemoryRecord(m)).Error; err != nil {
			return err
		}
		return insertMemoryTags(tx, m.ID, m.TagIDs)
	})
	return translate("create memory", "memory", err)
}

func insertMemoryTags(tx *gorm.DB, memoryID uuid.UUID, tagIDs []uuid.UUID) error {
	if len(tagIDs) == 0 {
		return nil
	}
	rows := make([]memoryTagRecord, 0, len(tagIDs))
	for _, id := range tagIDs {
		rows = append(rows, memoryTagRecord{MemoryID: memoryID, TagID: id})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*memory.Memory, error) {
	return r.get(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *MemoryRepository) GetForUser(ctx context.Context, userID, id uuid.UUID) (*memory.Memory, error) {
	return r.get(ctx, r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID))
}

func (r *MemoryRepository) get(ctx context.Context, q *gorm.DB) (*memory.Memory, error) {
	var rec memoryRecord
	if err := q.Take(&rec).Error; err != nil {
		return nil, translate("get memory", "memory", err)
	}
	tags, err := r.tagIDs(ctx, []uuid.UUID{rec.ID})
	if err != nil {
		return nil, err
	}
	return rec.toDomain(tags[rec.ID]), nil
}

func (r *MemoryRepository) tagIDs(ctx context.Context, memoryIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return out, nil
	}

	var rows []memoryTagRecord
	if err := r.db.WithContext(ctx).Where("memory_id IN ?", memoryIDs).Find(&rows).Error; err != nil {
		return nil, translate("load memory tags", "memory tag", err)
	}
	for _, row := range rows {
		out[row.MemoryID] = append(out[row.MemoryID], row.TagID)
	}
	return out, nil
}

func (r *MemoryRepository) List(ctx context.Context, userID uuid.UUID, filter memory.ListFilter, page common.PaginationParams) ([]*memory.Memory, int64, error) {
	page = page.Normalize()

	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&memoryRecord{}).Where("user_id = ?", userID)
		if filter.MediaType != "" {
			q = q.Where("media_type = ?", string(filter.MediaType))
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Topic != "" {
			q = q.Where("topic LIKE ?", "%"+filter.Topic+"%")
		}
		if filter.Mood != nil {
			q = q.Where("mood = ?", *filter.Mood)
		}
		if filter.Search != "" {
			term := "%" + filter.Search + "%"
			q = q.Where("(title LIKE ? OR description LIKE ? OR topic LIKE ?)", term, term, term)
		}
		if len(filter.TagIDs) > 0 {
			sub := r.db.Model(&memoryTagRecord{}).Select("memory_id").Where("tag_id IN ?", filter.TagIDs)
			q = q.Where("id IN (?)", sub)
		}
		if filter.StartDate != nil {
			q = q.Where("created_at >= ?", *filter.StartDate)
		}
		if filter.EndDate != nil {
			q = q.Where("created_at <= ?", *filter.EndDate)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, translate("count memories", "memory", err)
	}

	var recs []memoryRecord
	err := query().Order("created_at DESC").Offset(page.Offset()).Limit(page.PageSize).Find(&recs).Error
	if err != nil {
		return nil, 0, translate("list memories", "memory", err)
	}

	ids := make([]uuid.UUID, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	tags, err := r.tagIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*memory.Memory, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain(tags[recs[i].ID]))
	}
	return out, total, nil
}

// ListCreatedBetween returns the owner's memories created in [from, to),
// newest first.
func (r *MemoryRepository) ListCreatedBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*memory.Memory, error) {
	var recs []memoryRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from.UTC(), to.UTC()).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, translate("list memories by date", "memory", err)
	}

	out := make([]*memory.Memory, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain(nil))
	}
	return out, nil
}

func (r *MemoryRepository) UpdateMetadata(ctx context.Context, m *memory.Memory) error {
	res := r.db.WithContext(ctx).Model(&memoryRecord{}).
		Where("id = ? AND user_id = ?", m.ID, m.UserID).
		Select("title", "description", "topic", "mood", "people", "memory_date", "updated_at").
		Updates(toMemoryRecord(m))
	if res.Error != nil {
		return translate("update memory", "memory", res.Error)
	}
	if res.RowsAffected == 0 {
		return appErrors.NewNotFoundError("memory")
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&memoryRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return appErrors.NewNotFoundError("memory")
		}
		return tx.Where("memory_id = ?", id).Delete(&memoryTagRecord{}).Error
	})
	return translate("delete memory", "memory", err)
}

func (r *MemoryRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&memoryRecord{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, translate("check memory", "memory", err)
	}
	return count > 0, nil
}

func (r *MemoryRepository) AddTag(ctx context.Context, memoryID, tagID uuid.UUID) error {
	err := insertMemoryTags(r.db.WithContext(ctx), memoryID, []uuid.UUID{tagID})
	return translate("add memory tag", "memory tag", err)
}

func (r *MemoryRepository) RemoveTag(ctx context.Context, memoryID, tagID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("memory_id = ? AND tag_id = ?", memoryID, tagID).
		Delete(&memoryTagRecord{}).Error
	return translate("remove memory tag", "memory tag", err)
}

func (r *MemoryRepository) ReplaceTags(ctx context.Context, memoryID uuid.UUID, tagIDs []uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("memory_id = ?", memoryID).Delete(&memoryTagRecord{}).Error; err != nil {
			return err
		}
		return insertMemoryTags(tx, memoryID, tagIDs)
	})
	return translate("replace memory tags", "memory tag", err)
}

func (r *MemoryRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*memory.Memory, error) {
	var recs []memoryRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(memory.StatusPending), cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, translate("list pending memories", "memory", err)
	}

	out := make([]*memory.Memory, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain(nil))
	}
	return out, nil
}
