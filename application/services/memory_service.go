package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ingestion"
	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/events"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"
	"github.com/dharun-sukumar/Audio-Rag/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadInput is an accepted upload waiting to be stored.
type UploadInput struct {
	// MemoryID is optional; callers that need the id before the upload
	// completes may choose it.
	MemoryID    uuid.UUID
	UserID      uuid.UUID
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Metadata    memory.Metadata
}

// MemoryService covers the memory operations exposed to users. Processing
// state is owned by the ingestion pipeline; this service only creates
// pending memories and resets failed ones.
type MemoryService struct {
	memories  ports.MemoryRepository
	statuses  ports.ProcessingStatusStore
	tags      ports.TagRepository
	storage   ports.ObjectStorage
	indexer   ports.VectorIndexer
	scheduler ingestion.Scheduler
	publisher ports.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewMemoryService creates a new memory service
func NewMemoryService(
	memories ports.MemoryRepository,
	statuses ports.ProcessingStatusStore,
	tags ports.TagRepository,
	storage ports.ObjectStorage,
	indexer ports.VectorIndexer,
	scheduler ingestion.Scheduler,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *MemoryService {
	return &MemoryService{
		memories:  memories,
		statuses:  statuses,
		tags:      tags,
		storage:   storage,
		indexer:   indexer,
		scheduler: scheduler,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the file, records a pending memory and schedules its
// processing. The returned memory is always pending; a failed scheduling
// attempt is left to the pending sweeper.
func (s *MemoryService) Upload(ctx context.Context, in UploadInput) (*memory.Memory, error) {
	mediaType, ok := memory.DetectMediaType(in.ContentType)
	if !ok {
		return nil, appErrors.NewValidationError(fmt.Sprintf("unsupported file type: %s", in.ContentType))
	}

	meta := in.Metadata.Normalize()
	if err := utils.ValidateStruct(meta); err != nil {
		return nil, err
	}
	meta.TagIDs = uniqueIDs(meta.TagIDs)
	if err := s.checkTagsOwned(ctx, in.UserID, meta.TagIDs); err != nil {
		return nil, err
	}

	key := memory.SourceKey(in.UserID, in.Filename)
	if err := s.storage.Put(ctx, key, in.Body, in.Size, in.ContentType); err != nil {
		s.logger.Error("failed to store upload", zap.String("user_id", in.UserID.String()), zap.Error(err))
		return nil, appErrors.NewExternalError("object storage", err)
	}

	m := memory.New(in.UserID, mediaType, in.ContentType, key, meta, s.now())
	if in.MemoryID != uuid.Nil {
		m.ID = in.MemoryID
	}
	if err := s.memories.Create(ctx, m); err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("memory uploaded",
		zap.String("memory_id", m.ID.String()),
		zap.String("user_id", m.UserID.String()),
		zap.String("media_type", string(m.MediaType)),
	)

	created := *m
	if err := s.scheduler.Submit(ctx, m.ID, m.UserID); err != nil {
		s.logger.Warn("ingestion not scheduled, leaving memory for the sweeper",
			zap.String("memory_id", m.ID.String()), zap.Error(err))
	}
	return &created, nil
}

// Get returns a memory owned by userID.
func (s *MemoryService) Get(ctx context.Context, userID, id uuid.UUID) (*memory.Memory, error) {
	return s.memories.GetForUser(ctx, userID, id)
}

// List returns one page of the user's memories and the total match count.
func (s *MemoryService) List(ctx context.Context, userID uuid.UUID, filter memory.ListFilter, page common.PaginationParams) ([]*memory.Memory, int64, error) {
	return s.memories.List(ctx, userID, filter, page.Normalize())
}

// Update applies a metadata change. Processing fields are never touched.
func (s *MemoryService) Update(ctx context.Context, userID, id uuid.UUID, update memory.Update) (*memory.Memory, error) {
	if err := utils.ValidateStruct(update); err != nil {
		return nil, err
	}

	m, err := s.memories.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if update.TagIDs != nil {
		tagIDs := uniqueIDs(update.TagIDs)
		if err := s.checkTagsOwned(ctx, userID, tagIDs); err != nil {
			return nil, err
		}
		if err := s.memories.ReplaceTags(ctx, m.ID, tagIDs); err != nil {
			return nil, err
		}
		m.TagIDs = tagIDs
	}

	update.Apply(m, s.now())
	if err := s.memories.UpdateMetadata(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes the memory row first, then its artifacts and index
// documents. Cleanup failures are logged and do not fail the request.
func (s *MemoryService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m, err := s.memories.GetForUser(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.memories.Delete(ctx, userID, id); err != nil {
		return err
	}

	cleanupCtx := context.WithoutCancel(ctx)
	for _, key := range m.ArtifactKeys() {
		if err := s.storage.Delete(cleanupCtx, key); err != nil {
			s.logger.Warn("failed to delete memory artifact",
				zap.String("memory_id", id.String()), zap.String("key", key), zap.Error(err))
		}
	}
	if err := s.indexer.DeleteMemory(cleanupCtx, userID, id); err != nil {
		s.logger.Warn("failed to delete memory from index", zap.String("memory_id", id.String()), zap.Error(err))
	}
	if err := s.publisher.Publish(cleanupCtx, events.NewMemoryDeleted(id, userID, s.now())); err != nil {
		s.logger.Warn("failed to publish memory deleted", zap.String("memory_id", id.String()), zap.Error(err))
	}

	s.logger.Info("memory deleted", zap.String("memory_id", id.String()), zap.String("user_id", userID.String()))
	return nil
}

// Reprocess resubmits a failed memory. The next run starts from the first
// applicable stage.
func (s *MemoryService) Reprocess(ctx context.Context, userID, id uuid.UUID) (*memory.Memory, error) {
	m, err := s.memories.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.statuses.Reset(ctx, m.ID); err != nil {
		return nil, err
	}
	reset, err := s.memories.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.scheduler.Submit(ctx, m.ID, m.UserID); err != nil {
		s.logger.Warn("reprocess not scheduled, leaving memory for the sweeper",
			zap.String("memory_id", m.ID.String()), zap.Error(err))
	}
	return reset, nil
}

// AttachTag associates a tag with a memory. Both must belong to userID.
func (s *MemoryService) AttachTag(ctx context.Context, userID, memoryID, tagID uuid.UUID) error {
	if _, err := s.memories.GetForUser(ctx, userID, memoryID); err != nil {
		return err
	}
	if _, err := s.tags.GetForUser(ctx, userID, tagID); err != nil {
		return err
	}
	return s.memories.AddTag(ctx, memoryID, tagID)
}

// DetachTag removes a tag from a memory.
func (s *MemoryService) DetachTag(ctx context.Context, userID, memoryID, tagID uuid.UUID) error {
	if _, err := s.memories.GetForUser(ctx, userID, memoryID); err != nil {
		return err
	}
	return s.memories.RemoveTag(ctx, memoryID, tagID)
}

func (s *MemoryService) checkTagsOwned(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	owned, err := s.tags.CountOwned(ctx, userID, ids)
	if err != nil {
		return err
	}
	if owned != int64(len(ids)) {
		return appErrors.NewValidationError("one or more tags not found")
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
