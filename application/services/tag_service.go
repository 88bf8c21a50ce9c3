package services

import (
	"context"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/tag"
	"github.com/dharun-sukumar/Audio-Rag/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TagInput carries the user editable fields of a tag.
type TagInput struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Color string `json:"color" validate:"omitempty,tagcolor"`
}

// TagUpdate is a partial tag change; nil fields are left alone.
type TagUpdate struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Color *string `json:"color" validate:"omitempty,tagcolor"`
}

// TagService manages user tags. Names are unique per user; the store
// enforces it and reports duplicates as a conflict.
type TagService struct {
	tags   ports.TagRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewTagService creates a new tag service
func NewTagService(tags ports.TagRepository, logger *zap.Logger) *TagService {
	return &TagService{
		tags:   tags,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a tag. id may be uuid.Nil to have one generated.
func (s *TagService) Create(ctx context.Context, userID, id uuid.UUID, in TagInput) (*tag.Tag, error) {
	in.Name = tag.NormalizeName(in.Name)
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}

	t := tag.New(userID, in.Name, in.Color, s.now())
	if id != uuid.Nil {
		t.ID = id
	}
	if err := s.tags.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Debug("tag created", zap.String("tag_id", t.ID.String()), zap.String("user_id", userID.String()))
	return t, nil
}

// Get returns a tag owned by userID.
func (s *TagService) Get(ctx context.Context, userID, id uuid.UUID) (*tag.Tag, error) {
	return s.tags.GetForUser(ctx, userID, id)
}

// List returns the user's tags ordered by name, with memory counts.
func (s *TagService) List(ctx context.Context, userID uuid.UUID) ([]*tag.Tag, error) {
	return s.tags.ListByUser(ctx, userID)
}

// Update renames or recolors a tag.
func (s *TagService) Update(ctx context.Context, userID, id uuid.UUID, update TagUpdate) (*tag.Tag, error) {
	if update.Name != nil {
		name := tag.NormalizeName(*update.Name)
		update.Name = &name
	}
	if err := utils.ValidateStruct(update); err != nil {
		return nil, err
	}

	t, err := s.tags.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.Color != nil {
		t.Color = *update.Color
	}
	t.UpdatedAt = s.now()

	if err := s.tags.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a tag and its memory associations.
func (s *TagService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.tags.Delete(ctx, userID, id)
}
