package services_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/services"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type signingStorage struct {
	*memStorage
	ttl time.Duration
}

func (s *signingStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.ttl = ttl
	return "https://cdn.example/" + key, nil
}

func TestMemoryMedia(t *testing.T) {
	ctx := context.Background()

	t.Run("VideoAudioFollowsExtraction", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		m := f.upload(t, user, "video/mp4", memory.Metadata{})

		_, err := f.memories.Media(ctx, user, m.ID, memory.MediaTypeAudio)
		require.True(t, appErrors.IsNotFound(err))
		assert.Equal(t, "audio extraction in progress", appErrors.GetAppError(err).Message)

		run, err := f.store.Statuses().Claim(ctx, m.ID)
		require.NoError(t, err)
		require.NoError(t, f.store.Statuses().SaveArtifact(ctx, m.ID, run, memory.ArtifactAudio, "audio/x.mp3"))

		file, err := f.memories.Media(ctx, user, m.ID, memory.MediaTypeAudio)
		require.NoError(t, err)
		assert.Equal(t, "audio/x.mp3", file.Key)
		assert.Equal(t, "audio/mpeg", file.ContentType)

		file, err = f.memories.Media(ctx, user, m.ID, memory.MediaTypeVideo)
		require.NoError(t, err)
		assert.Equal(t, m.SourceKey, file.Key)
	})

	t.Run("FailedVideoWithoutAudio", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		m := f.upload(t, user, "video/mp4", memory.Metadata{})
		run, err := f.store.Statuses().Claim(ctx, m.ID)
		require.NoError(t, err)
		require.NoError(t, f.store.Statuses().Fail(ctx, m.ID, run, memory.StageExtract, "ffmpeg failed"))

		_, err = f.memories.Media(ctx, user, m.ID, memory.MediaTypeAudio)
		require.True(t, appErrors.IsNotFound(err))
		assert.Equal(t, "audio not available for this video", appErrors.GetAppError(err).Message)
	})

	t.Run("OpenMediaStreamsSource", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		m := f.upload(t, user, "audio/mpeg", memory.Metadata{})

		body, file, err := f.memories.OpenMedia(ctx, user, m.ID, memory.MediaTypeAudio)
		require.NoError(t, err)
		defer body.Close()
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
		assert.Equal(t, "audio/mpeg", file.ContentType)

		_, _, err = f.memories.OpenMedia(ctx, uuid.New(), m.ID, memory.MediaTypeAudio)
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("URLIsEmptyWithoutSigner", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		m := f.upload(t, user, "audio/mpeg", memory.Metadata{})

		url, err := f.memories.MediaURL(ctx, user, m.ID, memory.MediaTypeAudio)
		require.NoError(t, err)
		assert.Empty(t, url)
	})

	t.Run("URLIsSignedWhenSupported", func(t *testing.T) {
		f := newServiceFixture(t)
		signer := &signingStorage{memStorage: f.storage}
		svc := services.NewMemoryService(f.store.Memories(), f.store.Statuses(), f.store.Tags(),
			signer, f.indexer, f.scheduler, nopPublisher{}, zap.NewNop())
		user := uuid.New()
		m := f.upload(t, user, "audio/mpeg", memory.Metadata{})

		url, err := svc.MediaURL(ctx, user, m.ID, memory.MediaTypeAudio)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/"+m.SourceKey, url)
		assert.Equal(t, services.MediaURLTTL, signer.ttl)
	})

	t.Run("TranscriptMissingUntilProcessed", func(t *testing.T) {
		f := newServiceFixture(t)
		user := uuid.New()
		m := f.upload(t, user, "audio/mpeg", memory.Metadata{})

		_, err := f.memories.Transcript(ctx, user, m.ID)
		require.True(t, appErrors.IsNotFound(err))

		f.storage.objects["t.json"] = []byte(`{"text":"hi","words":[]}`)
		run, err := f.store.Statuses().Claim(ctx, m.ID)
		require.NoError(t, err)
		require.NoError(t, f.store.Statuses().SaveArtifact(ctx, m.ID, run, memory.ArtifactTranscript, "t.json"))

		transcript, err := f.memories.Transcript(ctx, user, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "hi", transcript.Text)
	})
}
