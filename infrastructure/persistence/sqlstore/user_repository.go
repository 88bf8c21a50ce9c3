package sqlstore

import (
	"context"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository implements ports.UserRepository.
type UserRepository struct {
	db *gorm.DB
}

func (r *UserRepository) getBy(ctx context.Context, column string, value interface{}) (*identity.User, error) {
	var rec userRecord
	err := r.db.WithContext(ctx).Where(column+" = ?", value).Take(&rec).Error
	if err != nil {
		return nil, translate("get user", "user", err)
	}
	return rec.toDomain(), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByExternalUID(ctx context.Context, uid string) (*identity.User, error) {
	if uid == "" {
		return nil, appErrors.NewNotFoundError("user")
	}
	return r.getBy(ctx, "external_uid", uid)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return nil, appErrors.NewNotFoundError("user")
	}
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) GetByGuestID(ctx context.Context, guestID string) (*identity.User, error) {
	if guestID == "" {
		return nil, appErrors.NewNotFoundError("user")
	}
	return r.getBy(ctx, "guest_id", guestID)
}

func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	user.Email = identity.NormalizeEmail(user.Email)
	err := r.db.WithContext(ctx).Create(toUserRecord(user)).Error
	return translate("create user", "user", err)
}

func (r *UserRepository) AttachExternalUID(ctx context.Context, id uuid.UUID, uid, name, picture string) error {
	updates := map[string]interface{}{"external_uid": uid}
	if name != "" {
		updates["name"] = name
	}
	if picture != "" {
		updates["picture"] = picture
	}

	res := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate("attach external uid", "user", res.Error)
	}
	if res.RowsAffected == 0 {
		return appErrors.NewNotFoundError("user")
	}
	return nil
}

func (r *UserRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Update("last_seen_at", at).Error
	return translate("touch last seen", "user", err)
}
