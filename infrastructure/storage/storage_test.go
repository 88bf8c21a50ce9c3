package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		key := "memories/u1/abc_clip.mp3"
		require.NoError(t, store.Put(ctx, key, strings.NewReader("audio"), 5, "audio/mpeg"))

		rc, err := store.Get(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "audio", string(data))

		require.NoError(t, store.Delete(ctx, key))
		_, err = store.Get(ctx, key)
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("DeleteMissingIsNoop", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "memories/nope"))
	})

	t.Run("RejectsEscapingKeys", func(t *testing.T) {
		err := store.Put(ctx, "../outside", strings.NewReader("x"), 1, "")
		assert.True(t, appErrors.IsValidation(err))
	})
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := NewS3Store(client, "bucket", zap.NewNop())

	require.NoError(t, store.Put(ctx, "k", strings.NewReader("video"), 5, "video/mp4"))
	assert.Equal(t, "video/mp4", client.types["k"])

	rc, err := store.Get(ctx, "k")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "video", string(data))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.True(t, appErrors.IsNotFound(err))
}

type fakePresigner struct {
	key     string
	expires time.Duration
}

func (p *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	p.key = aws.ToString(in.Key)
	p.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://" + aws.ToString(in.Bucket) + ".example/" + p.key + "?sig=1"}, nil
}

func TestS3SignedURL(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}

	t.Run("WithoutPresigner", func(t *testing.T) {
		_, err := NewS3Store(client, "bucket", zap.NewNop()).SignedURL(ctx, "k", time.Hour)
		assert.Error(t, err)
	})

	t.Run("SignsGet", func(t *testing.T) {
		presigner := &fakePresigner{}
		store := NewS3Store(client, "bucket", zap.NewNop()).WithPresigner(presigner)

		url, err := store.SignedURL(ctx, "audio/a.mp3", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "https://bucket.example/audio/a.mp3?sig=1", url)
		assert.Equal(t, "audio/a.mp3", presigner.key)
		assert.Equal(t, 15*time.Minute, presigner.expires)
	})
}
