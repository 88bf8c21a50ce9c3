package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MediaURLTTL is how long a signed download link stays valid.
const MediaURLTTL = time.Hour

// maxTextContent caps how much of a text memory is returned.
const maxTextContent = 10 << 20

// MediaFile is one stored, playable file of a memory.
type MediaFile struct {
	Key         string
	ContentType string
}

// Media resolves the file served for kind, which is MediaTypeAudio or
// MediaTypeVideo. The audio of a video is its extracted track.
func (s *MemoryService) Media(ctx context.Context, userID, id uuid.UUID, kind memory.MediaType) (*MediaFile, error) {
	m, err := s.memories.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return mediaFile(m, kind)
}

func mediaFile(m *memory.Memory, kind memory.MediaType) (*MediaFile, error) {
	switch kind {
	case memory.MediaTypeVideo:
		if m.MediaType != memory.MediaTypeVideo {
			return nil, appErrors.NewValidationError("this memory is not a video")
		}
		return &MediaFile{Key: m.SourceKey, ContentType: m.ContentType}, nil
	case memory.MediaTypeAudio:
		switch m.MediaType {
		case memory.MediaTypeText:
			return nil, appErrors.NewValidationError("text memories do not have audio files")
		case memory.MediaTypeAudio:
			return &MediaFile{Key: m.SourceKey, ContentType: m.ContentType}, nil
		}
		if m.AudioKey != "" {
			return &MediaFile{Key: m.AudioKey, ContentType: "audio/mpeg"}, nil
		}
		if !m.Status.IsTerminal() {
			return nil, appErrors.NewNotFoundError("audio").WithMessage("audio extraction in progress")
		}
		return nil, appErrors.NewNotFoundError("audio").WithMessage("audio not available for this video")
	default:
		return nil, appErrors.NewValidationError(fmt.Sprintf("unknown media kind %q", kind))
	}
}

// MediaURL returns a signed link to the file for kind. It returns an empty
// string when the object store cannot sign links; callers then stream the
// file through OpenMedia.
func (s *MemoryService) MediaURL(ctx context.Context, userID, id uuid.UUID, kind memory.MediaType) (string, error) {
	file, err := s.Media(ctx, userID, id, kind)
	if err != nil {
		return "", err
	}
	signer, ok := s.storage.(ports.URLSigner)
	if !ok {
		return "", nil
	}
	url, err := signer.SignedURL(ctx, file.Key, MediaURLTTL)
	if err != nil {
		s.logger.Error("failed to sign media url", zap.String("memory_id", id.String()), zap.Error(err))
		return "", appErrors.NewExternalError("object storage", err)
	}
	return url, nil
}

// OpenMedia opens the file for kind. The caller closes the reader.
func (s *MemoryService) OpenMedia(ctx context.Context, userID, id uuid.UUID, kind memory.MediaType) (io.ReadCloser, *MediaFile, error) {
	file, err := s.Media(ctx, userID, id, kind)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.open(ctx, file.Key, "file")
	if err != nil {
		return nil, nil, err
	}
	return body, file, nil
}

// Text returns the content of a text memory.
func (s *MemoryService) Text(ctx context.Context, userID, id uuid.UUID) (string, error) {
	m, err := s.memories.GetForUser(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if m.MediaType != memory.MediaTypeText {
		return "", appErrors.NewValidationError("this memory is not a text memory")
	}

	body, err := s.open(ctx, m.SourceKey, "text")
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxTextContent))
	if err != nil {
		return "", appErrors.NewExternalError("object storage", err)
	}
	return string(data), nil
}

// Transcript returns the stored transcript of an audio or video memory.
func (s *MemoryService) Transcript(ctx context.Context, userID, id uuid.UUID) (*ports.Transcript, error) {
	m, err := s.memories.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if m.TranscriptKey == "" {
		return nil, appErrors.NewNotFoundError("transcript").WithMessage("transcript not available yet")
	}

	body, err := s.open(ctx, m.TranscriptKey, "transcript")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var transcript ports.Transcript
	if err := json.NewDecoder(body).Decode(&transcript); err != nil {
		return nil, appErrors.NewInternalError("stored transcript is unreadable").WithCause(err)
	}
	return &transcript, nil
}

func (s *MemoryService) open(ctx context.Context, key, resource string) (io.ReadCloser, error) {
	body, err := s.storage.Get(ctx, key)
	if err == nil {
		return body, nil
	}
	if appErrors.IsNotFound(err) {
		return nil, appErrors.NewNotFoundError(resource)
	}
	s.logger.Error("failed to read stored object", zap.String("key", key), zap.Error(err))
	return nil, appErrors.NewExternalError("object storage", err)
}
