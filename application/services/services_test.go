package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
	"github.com/dharun-sukumar/Audio-Rag/domain/events"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/persistence/sqlstore"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/persistence/sqlstore/sqlstoretest"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func (s *memStorage) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type nopIndexer struct {
	deleted []uuid.UUID
}

func (i *nopIndexer) IndexMemory(context.Context, uuid.UUID, uuid.UUID, []ports.Chunk) error {
	return nil
}

func (i *nopIndexer) DeleteMemory(_ context.Context, _, id uuid.UUID) error {
	i.deleted = append(i.deleted, id)
	return nil
}

func (i *nopIndexer) ReassignOwner(context.Context, uuid.UUID, uuid.UUID, []uuid.UUID) error {
	return nil
}

type stubScheduler struct {
	submitted []uuid.UUID
	err       error
}

func (s *stubScheduler) Submit(_ context.Context, id, _ uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, id)
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.DomainEvent) error         { return nil }
func (nopPublisher) PublishBatch(context.Context, []events.DomainEvent) error { return nil }

type serviceFixture struct {
	store     *sqlstore.Store
	storage   *memStorage
	indexer   *nopIndexer
	scheduler *stubScheduler
	memories  *services.MemoryService
	tags      *services.TagService
	convs     *services.ConversationService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := sqlstoretest.New(t)
	f := &serviceFixture{
		store:     store,
		storage:   &memStorage{objects: map[string][]byte{}},
		indexer:   &nopIndexer{},
		scheduler: &stubScheduler{},
	}
	logger := zap.NewNop()
	f.memories = services.NewMemoryService(store.Memories(), store.Statuses(), store.Tags(),
		f.storage, f.indexer, f.scheduler, nopPublisher{}, logger)
	f.tags = services.NewTagService(store.Tags(), logger)
	f.convs = services.NewConversationService(store.Conversations(), 0, logger)
	return f
}

func (f *serviceFixture) upload(t *testing.T, userID uuid.UUID, contentType string, meta memory.Metadata) *memory.Memory {
	t.Helper()
	m, err := f.memories.Upload(context.Background(), services.UploadInput{
		UserID:      userID,
		Filename:    "clip",
		ContentType: contentType,
		Size:        5,
		Body:        strings.NewReader("hello"),
		Metadata:    meta,
	})
	require.NoError(t, err)
	return m
}

func intPtr(v int) *int { return &v }

func TestMemoryService(t *testing.T) {
	ctx := context.Background()

	t.Run("UploadDetectsMediaTypeAndSchedules", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()

		m := f.upload(t, user, "video/mp4", memory.Metadata{Title: "  Beach  ", Mood: intPtr(4), People: []string{"Ana", " "}})

		assert.Equal(t, memory.MediaTypeVideo, m.MediaType)
		assert.Equal(t, memory.StatusPending, m.Status)
		assert.Equal(t, "Beach", m.Title)
		assert.Equal(t, []string{"Ana"}, m.People)
		assert.True(t, strings.HasPrefix(m.SourceKey, "memories/"+user.String()+"/"))
		assert.Equal(t, []uuid.UUID{m.ID}, f.scheduler.submitted)
	})

	t.Run("UploadRejectsInvalidInput", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		foreign, err := f.tags.Create(ctx, uuid.New(), uuid.Nil, services.TagInput{Name: "Theirs"})
		require.NoError(t, err)

		tests := []struct {
			name        string
			contentType string
			meta        memory.Metadata
		}{
			{name: "UnsupportedType", contentType: "application/pdf"},
			{name: "MoodOutOfRange", contentType: "audio/mpeg", meta: memory.Metadata{Mood: intPtr(6)}},
			{name: "ForeignTag", contentType: "audio/mpeg", meta: memory.Metadata{TagIDs: []uuid.UUID{foreign.ID}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.memories.Upload(ctx, services.UploadInput{
					UserID: user, Filename: "x", ContentType: tt.contentType,
					Body: strings.NewReader("x"), Metadata: tt.meta,
				})
				require.Error(t, err)
				assert.True(t, appErrors.IsValidation(err))
			})
		}
		assert.Zero(t, f.storage.len(), "rejected uploads must not be stored")
		assert.Empty(t, f.scheduler.submitted)
	})

	t.Run("UploadSucceedsWhenSchedulingFails", func(t *testing.T) {
		f := newServiceFixture(t)
		f.scheduler.err = errors.New("queue full")

		m := f.upload(t, uuid.New(), "text/plain", memory.Metadata{})
		assert.Equal(t, memory.StatusPending, m.Status)
	})

	t.Run("OtherUsersCannotSeeMemory", func(t *testing.T) {
		f := newServiceFixture(t)
		m := f.upload(t, uuid.New(), "audio/mpeg", memory.Metadata{})

		_, err := f.memories.Get(ctx, uuid.New(), m.ID)
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("UpdateReplacesTags", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		a, err := f.tags.Create(ctx, user, uuid.Nil, services.TagInput{Name: "a"})
		require.NoError(t, err)
		b, err := f.tags.Create(ctx, user, uuid.Nil, services.TagInput{Name: "b"})
		require.NoError(t, err)
		m := f.upload(t, user, "text/plain", memory.Metadata{TagIDs: []uuid.UUID{a.ID}})

		title := "Renamed"
		updated, err := f.memories.Update(ctx, user, m.ID, memory.Update{Title: &title, TagIDs: []uuid.UUID{b.ID, b.ID}})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)

		reloaded, err := f.memories.Get(ctx, user, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", reloaded.Title)
		assert.Equal(t, []uuid.UUID{b.ID}, reloaded.TagIDs)
		assert.Equal(t, memory.StatusPending, reloaded.Status)
	})

	t.Run("DeleteIgnoresStorageErrors", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		m := f.upload(t, user, "audio/mpeg", memory.Metadata{})
		f.storage.deleteErr = errors.New("bucket unavailable")

		require.NoError(t, f.memories.Delete(ctx, user, m.ID))
		assert.Equal(t, []uuid.UUID{m.ID}, f.indexer.deleted)

		_, err := f.memories.Get(ctx, user, m.ID)
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("DeleteRemovesArtifacts", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		m := f.upload(t, user, "audio/mpeg", memory.Metadata{})
		require.Equal(t, 1, f.storage.len())

		require.NoError(t, f.memories.Delete(ctx, user, m.ID))
		assert.Zero(t, f.storage.len())
	})

	t.Run("ReprocessOnlyFailed", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		m := f.upload(t, user, "audio/mpeg", memory.Metadata{})

		_, err := f.memories.Reprocess(ctx, user, m.ID)
		require.Error(t, err)
		assert.True(t, appErrors.IsConflict(err))

		run, err := f.store.Statuses().Claim(ctx, m.ID)
		require.NoError(t, err)
		require.NoError(t, f.store.Statuses().Fail(ctx, m.ID, run, memory.StageTranscribe, "transcribe stage failed: boom"))

		reset, err := f.memories.Reprocess(ctx, user, m.ID)
		require.NoError(t, err)
		assert.Equal(t, memory.StatusPending, reset.Status)
		assert.Equal(t, []uuid.UUID{m.ID, m.ID}, f.scheduler.submitted)
	})

	t.Run("AttachTagRequiresOwnership", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		m := f.upload(t, user, "text/plain", memory.Metadata{})
		mine, err := f.tags.Create(ctx, user, uuid.Nil, services.TagInput{Name: "mine"})
		require.NoError(t, err)
		theirs, err := f.tags.Create(ctx, uuid.New(), uuid.Nil, services.TagInput{Name: "theirs"})
		require.NoError(t, err)

		require.NoError(t, f.memories.AttachTag(ctx, user, m.ID, mine.ID))
		require.NoError(t, f.memories.AttachTag(ctx, user, m.ID, mine.ID), "attaching twice is harmless")
		assert.True(t, appErrors.IsNotFound(f.memories.AttachTag(ctx, user, m.ID, theirs.ID)))

		reloaded, err := f.memories.Get(ctx, user, m.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{mine.ID}, reloaded.TagIDs)

		require.NoError(t, f.memories.DetachTag(ctx, user, m.ID, mine.ID))
		reloaded, err = f.memories.Get(ctx, user, m.ID)
		require.NoError(t, err)
		assert.Empty(t, reloaded.TagIDs)
	})
}

func TestTagService(t *testing.T) {
	ctx := context.Background()

	t.Run("DuplicateNameConflicts", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()

		_, err := f.tags.Create(ctx, user, uuid.Nil, services.TagInput{Name: "Work", Color: "#FF5733"})
		require.NoError(t, err)

		_, err = f.tags.Create(ctx, user, uuid.Nil, services.TagInput{Name: "  Work "})
		require.Error(t, err)
		assert.True(t, appErrors.IsConflict(err))

		tags, err := f.tags.List(ctx, user)
		require.NoError(t, err)
		assert.Len(t, tags, 1)
	})

	t.Run("SameNameForDifferentUsers", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.tags.Create(ctx, uuid.New(), uuid.Nil, services.TagInput{Name: "Work"})
		require.NoError(t, err)
		_, err = f.tags.Create(ctx, uuid.New(), uuid.Nil, services.TagInput{Name: "Work"})
		require.NoError(t, err)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		f := newServiceFixture(t)
		tests := []struct {
			name string
			in   services.TagInput
		}{
			{name: "BlankName", in: services.TagInput{Name: "   "}},
			{name: "LongName", in: services.TagInput{Name: strings.Repeat("x", 101)}},
			{name: "BadColor", in: services.TagInput{Name: "ok", Color: "red"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.tags.Create(ctx, uuid.New(), uuid.Nil, tt.in)
				assert.True(t, appErrors.IsValidation(err))
			})
		}
	})

	t.Run("RenameToExistingConflicts", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		_, err := f.tags.Create(ctx, user, uuid.Nil, services.TagInput{Name: "a"})
		require.NoError(t, err)
		b, err := f.tags.Create(ctx, user, uuid.Nil, services.TagInput{Name: "b"})
		require.NoError(t, err)

		name := "a"
		_, err = f.tags.Update(ctx, user, b.ID, services.TagUpdate{Name: &name})
		assert.True(t, appErrors.IsConflict(err))

		color := "#000000"
		updated, err := f.tags.Update(ctx, user, b.ID, services.TagUpdate{Color: &color})
		require.NoError(t, err)
		assert.Equal(t, "#000000", updated.Color)
	})
}

func TestConversationService(t *testing.T) {
	ctx := context.Background()

	t.Run("GuestLimitBoundary", func(t *testing.T) {
		f := newServiceFixture(t)
		guest := common.Caller{UserID: uuid.New(), IsGuest: true, GuestID: "g-1"}

		for i := 0; i < 3; i++ {
			_, err := f.convs.Create(ctx, guest, uuid.Nil, services.ConversationInput{})
			require.NoError(t, err, "conversation %d", i+1)
		}

		_, err := f.convs.Create(ctx, guest, uuid.Nil, services.ConversationInput{})
		require.Error(t, err)
		assert.True(t, appErrors.IsForbidden(err))
		assert.Equal(t, int64(3), sqlstoretest.Count(t, f.store, "conversations"))
	})

	t.Run("AuthenticatedUsersAreNotLimited", func(t *testing.T) {
		f := newServiceFixture(t)
		caller := common.Caller{UserID: uuid.New(), Email: "a@example.com"}
		for i := 0; i < 5; i++ {
			_, err := f.convs.Create(ctx, caller, uuid.Nil, services.ConversationInput{})
			require.NoError(t, err)
		}
	})

	t.Run("MessagesAndCascade", func(t *testing.T) {
		f := newServiceFixture(t)
		caller := common.Caller{UserID: uuid.New()}

		c, err := f.convs.Create(ctx, caller, uuid.Nil, services.ConversationInput{
			Title:    "Trip",
			Messages: []services.MessageInput{{Role: "user", Content: "hi"}},
		})
		require.NoError(t, err)

		_, err = f.convs.AddMessage(ctx, caller.UserID, c.ID, uuid.Nil, services.MessageInput{Role: "robot", Content: "x"})
		assert.True(t, appErrors.IsValidation(err))

		_, err = f.convs.AddMessage(ctx, caller.UserID, c.ID, uuid.Nil, services.MessageInput{Role: "assistant", Content: "hello"})
		require.NoError(t, err)

		_, err = f.convs.AddMessage(ctx, uuid.New(), c.ID, uuid.Nil, services.MessageInput{Role: "user", Content: "intrude"})
		assert.True(t, appErrors.IsNotFound(err))

		msgs, err := f.convs.Messages(ctx, caller.UserID, c.ID, common.DefaultPaginationParams())
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "hi", msgs[0].Content)

		require.NoError(t, f.convs.Delete(ctx, caller.UserID, c.ID))
		assert.Zero(t, sqlstoretest.Count(t, f.store, "messages"))
	})

	t.Run("Rename", func(t *testing.T) {
		f := newServiceFixture(t)
		caller := common.Caller{UserID: uuid.New()}
		c, err := f.convs.Create(ctx, caller, uuid.Nil, services.ConversationInput{})
		require.NoError(t, err)
		assert.Equal(t, "New conversation", c.Title)

		renamed, err := f.convs.Rename(ctx, caller.UserID, c.ID, "Plans")
		require.NoError(t, err)
		assert.Equal(t, "Plans", renamed.Title)

		_, err = f.convs.Rename(ctx, caller.UserID, c.ID, "")
		assert.True(t, appErrors.IsValidation(err))
	})
}
