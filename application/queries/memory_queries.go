package queries

import (
	"io"

	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// GetMemoryQuery loads one memory owned by the user.
type GetMemoryQuery struct {
	UserID   uuid.UUID
	MemoryID uuid.UUID
}

// Validate validates the GetMemoryQuery
func (q GetMemoryQuery) Validate() error {
	if q.UserID == uuid.Nil || q.MemoryID == uuid.Nil {
		return appErrors.NewValidationError("user and memory id are required")
	}
	return nil
}

// ListMemoriesQuery lists the user's memories matching Filter.
type ListMemoriesQuery struct {
	UserID     uuid.UUID
	Filter     memory.ListFilter
	Pagination common.PaginationParams
}

// Validate validates the ListMemoriesQuery
func (q ListMemoriesQuery) Validate() error {
	if q.UserID == uuid.Nil {
		return appErrors.NewValidationError("user id is required")
	}
	if q.Filter.Mood != nil && (*q.Filter.Mood < 1 || *q.Filter.Mood > 5) {
		return appErrors.NewValidationError("mood must be between 1 and 5")
	}
	return nil
}

// ListMemoriesResult is one page of memories.
type ListMemoriesResult struct {
	Memories   []*memory.Memory
	Total      int64
	Pagination common.PaginationParams
}

// GetMediaURLQuery asks for a download link to a memory's audio or video.
type GetMediaURLQuery struct {
	UserID   uuid.UUID
	MemoryID uuid.UUID
	Kind     memory.MediaType
}

// Validate validates the GetMediaURLQuery
func (q GetMediaURLQuery) Validate() error {
	return validateMediaQuery(q.UserID, q.MemoryID, q.Kind)
}

// MediaURLResult carries a signed link. URL is empty when the object store
// cannot sign links.
type MediaURLResult struct {
	URL string
}

// OpenMediaQuery opens a memory's audio or video for streaming.
type OpenMediaQuery struct {
	UserID   uuid.UUID
	MemoryID uuid.UUID
	Kind     memory.MediaType
}

// Validate validates the OpenMediaQuery
func (q OpenMediaQuery) Validate() error {
	return validateMediaQuery(q.UserID, q.MemoryID, q.Kind)
}

// MediaContent is an open media file. The receiver closes Body.
type MediaContent struct {
	Body        io.ReadCloser
	ContentType string
}

func validateMediaQuery(userID, memoryID uuid.UUID, kind memory.MediaType) error {
	if userID == uuid.Nil || memoryID == uuid.Nil {
		return appErrors.NewValidationError("user and memory id are required")
	}
	if kind != memory.MediaTypeAudio && kind != memory.MediaTypeVideo {
		return appErrors.NewValidationError("media kind must be audio or video")
	}
	return nil
}

// GetMemoryTextQuery loads the content of a text memory.
type GetMemoryTextQuery struct {
	UserID   uuid.UUID
	MemoryID uuid.UUID
}

// Validate validates the GetMemoryTextQuery
func (q GetMemoryTextQuery) Validate() error {
	if q.UserID == uuid.Nil || q.MemoryID == uuid.Nil {
		return appErrors.NewValidationError("user and memory id are required")
	}
	return nil
}

// GetTranscriptQuery loads the stored transcript of a memory.
type GetTranscriptQuery struct {
	UserID   uuid.UUID
	MemoryID uuid.UUID
}

// Validate validates the GetTranscriptQuery
func (q GetTranscriptQuery) Validate() error {
	if q.UserID == uuid.Nil || q.MemoryID == uuid.Nil {
		return appErrors.NewValidationError("user and memory id are required")
	}
	return nil
}
