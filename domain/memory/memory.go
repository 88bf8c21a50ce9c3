package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaType is the kind of content a memory was uploaded as.
type MediaType string

const (
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
	MediaTypeText  MediaType = "text"
)

// ParseMediaType parses a stored or user supplied media type.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaTypeAudio, MediaTypeVideo, MediaTypeText:
		return MediaType(s), nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// DetectMediaType maps an upload content type to a media type using its
// top level prefix. ok is false for anything that is not audio, video or text.
func DetectMediaType(contentType string) (MediaType, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return MediaTypeAudio, true
	case strings.HasPrefix(ct, "video/"):
		return MediaTypeVideo, true
	case strings.HasPrefix(ct, "text/"):
		return MediaTypeText, true
	default:
		return "", false
	}
}

// Memory is an uploaded piece of content owned by exactly one user.
type Memory struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Title         string
	Description   string
	MediaType     MediaType
	ContentType   string
	SourceKey     string
	AudioKey      string
	TranscriptKey string
	Topic         string
	Mood          *int
	People        []string
	MemoryDate    *time.Time

	Status       Status
	ErrorMessage string
	FailedStage  Stage
	RunSeq       int64

	TagIDs []uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New builds a pending memory for a freshly stored upload.
func New(userID uuid.UUID, mediaType MediaType, contentType, sourceKey string, meta Metadata, now time.Time) *Memory {
	return &Memory{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       meta.Title,
		Description: meta.Description,
		MediaType:   mediaType,
		ContentType: contentType,
		SourceKey:   sourceKey,
		Topic:       meta.Topic,
		Mood:        meta.Mood,
		People:      meta.People,
		MemoryDate:  meta.MemoryDate,
		Status:      StatusPending,
		TagIDs:      meta.TagIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ArtifactKeys lists every storage key this memory references.
func (m *Memory) ArtifactKeys() []string {
	keys := make([]string, 0, 3)
	for _, k := range []string{m.SourceKey, m.AudioKey, m.TranscriptKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Stages returns the stages that apply to this memory's media type, in order.
func (m *Memory) Stages() []Stage {
	return StagesFor(m.MediaType)
}

// SourceKey builds the storage key for an uploaded file.
func SourceKey(userID uuid.UUID, filename string) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		name = "upload"
	}
	return fmt.Sprintf("memories/%s/%s_%s", userID, uuid.NewString(), name)
}

// DerivedKey builds the storage key for an artifact produced by a stage.
func DerivedKey(m *Memory, kind ArtifactKind, ext string) string {
	return fmt.Sprintf("memories/%s/%s/%s%s", m.UserID, m.ID, kind, ext)
}
