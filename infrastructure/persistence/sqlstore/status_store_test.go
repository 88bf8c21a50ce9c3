package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/persistence/sqlstore/sqlstoretest"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingMemory(t *testing.T, ctx context.Context, repo interface {
	Create(context.Context, *memory.Memory) error
}, mt memory.MediaType) *memory.Memory {
	t.Helper()
	m := memory.New(uuid.New(), mt, "video/mp4", "memories/src", memory.Metadata{Title: "Trip"}, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, m))
	return m
}

func TestStatusStoreLifecycle(t *testing.T) {
	store := sqlstoretest.New(t)
	memories := store.Memories()
	statuses := store.Statuses()
	ctx := context.Background()

	t.Run("ClaimThenComplete", func(t *testing.T) {
		m := newPendingMemory(t, ctx, memories, memory.MediaTypeVideo)

		run, err := statuses.Claim(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), run)

		require.NoError(t, statuses.SaveArtifact(ctx, m.ID, run, memory.ArtifactAudio, "memories/audio.mp3"))
		require.NoError(t, statuses.Complete(ctx, m.ID, run))

		got, err := memories.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, memory.StatusCompleted, got.Status)
		assert.Equal(t, "memories/audio.mp3", got.AudioKey)
	})

	t.Run("SecondClaimIsRejectedWhileProcessing", func(t *testing.T) {
		m := newPendingMemory(t, ctx, memories, memory.MediaTypeAudio)

		_, err := statuses.Claim(ctx, m.ID)
		require.NoError(t, err)

		_, err = statuses.Claim(ctx, m.ID)
		assert.ErrorIs(t, err, memory.ErrAlreadyInFlight)
	})

	t.Run("NoTransitionAfterTerminal", func(t *testing.T) {
		m := newPendingMemory(t, ctx, memories, memory.MediaTypeText)

		run, err := statuses.Claim(ctx, m.ID)
		require.NoError(t, err)
		require.NoError(t, statuses.Fail(ctx, m.ID, run, memory.StageIndex, "index stage failed: boom"))

		assert.ErrorIs(t, statuses.Complete(ctx, m.ID, run), memory.ErrStaleRun)

		_, err = statuses.Claim(ctx, m.ID)
		assert.ErrorIs(t, err, memory.ErrTerminal)

		got, err := memories.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, memory.StatusFailed, got.Status)
		assert.Equal(t, memory.StageIndex, got.FailedStage)
	})

	t.Run("ResetStartsNewRun", func(t *testing.T) {
		m := newPendingMemory(t, ctx, memories, memory.MediaTypeText)

		first, err := statuses.Claim(ctx, m.ID)
		require.NoError(t, err)
		require.NoError(t, statuses.Fail(ctx, m.ID, first, memory.StageIndex, "index stage failed"))
		require.NoError(t, statuses.Reset(ctx, m.ID))

		second, err := statuses.Claim(ctx, m.ID)
		require.NoError(t, err)
		assert.Greater(t, second, first)

		// A write from the old run must not land.
		assert.ErrorIs(t, statuses.Fail(ctx, m.ID, first, memory.StageIndex, "late"), memory.ErrStaleRun)
		require.NoError(t, statuses.Complete(ctx, m.ID, second))
	})

	t.Run("ResetRejectsCompleted", func(t *testing.T) {
		m := newPendingMemory(t, ctx, memories, memory.MediaTypeText)

		run, err := statuses.Claim(ctx, m.ID)
		require.NoError(t, err)
		require.NoError(t, statuses.Complete(ctx, m.ID, run))

		err = statuses.Reset(ctx, m.ID)
		require.Error(t, err)
		assert.True(t, appErrors.IsConflict(err))
	})

	t.Run("DeletedMemoryIsNotResurrected", func(t *testing.T) {
		m := newPendingMemory(t, ctx, memories, memory.MediaTypeText)

		run, err := statuses.Claim(ctx, m.ID)
		require.NoError(t, err)
		require.NoError(t, memories.Delete(ctx, m.UserID, m.ID))

		err = statuses.Complete(ctx, m.ID, run)
		require.Error(t, err)
		assert.True(t, appErrors.IsNotFound(err))

		exists, err := memories.Exists(ctx, m.ID)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
