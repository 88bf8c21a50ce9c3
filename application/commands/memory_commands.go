package commands

import (
	"io"

	"github.com/dharun-sukumar/Audio-Rag/domain/memory"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
)

// UploadMemoryCommand stores an upload as a new pending memory. The caller
// picks MemoryID so it can read the memory back afterwards.
type UploadMemoryCommand struct {
	MemoryID    uuid.UUID
	UserID      uuid.UUID
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Metadata    memory.Metadata

	// Created, when set, receives the memory as stored before ingestion was
	// scheduled. A read back may already observe a later status.
	Created *memory.Memory
}

func (c UploadMemoryCommand) Validate() error {
	if err := requireIDs(map[string]uuid.UUID{"memory_id": c.MemoryID, "user_id": c.UserID}); err != nil {
		return err
	}
	if c.Body == nil {
		return appErrors.NewValidationError("file is required")
	}
	return nil
}

// UpdateMemoryCommand changes a memory's user editable metadata.
type UpdateMemoryCommand struct {
	MemoryID uuid.UUID
	UserID   uuid.UUID
	Update   memory.Update
}

func (c UpdateMemoryCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"memory_id": c.MemoryID, "user_id": c.UserID})
}

// DeleteMemoryCommand removes a memory with its artifacts and index documents.
type DeleteMemoryCommand struct {
	MemoryID uuid.UUID
	UserID   uuid.UUID
}

func (c DeleteMemoryCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"memory_id": c.MemoryID, "user_id": c.UserID})
}

// ReprocessMemoryCommand resubmits a failed memory.
type ReprocessMemoryCommand struct {
	MemoryID uuid.UUID
	UserID   uuid.UUID

	// Reset, when set, receives the memory as it was put back to pending.
	Reset *memory.Memory
}

func (c ReprocessMemoryCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"memory_id": c.MemoryID, "user_id": c.UserID})
}

// AttachTagCommand associates one of the user's tags with a memory.
type AttachTagCommand struct {
	MemoryID uuid.UUID
	TagID    uuid.UUID
	UserID   uuid.UUID
}

func (c AttachTagCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"memory_id": c.MemoryID, "tag_id": c.TagID, "user_id": c.UserID})
}

// DetachTagCommand removes a tag from a memory.
type DetachTagCommand struct {
	MemoryID uuid.UUID
	TagID    uuid.UUID
	UserID   uuid.UUID
}

func (c DetachTagCommand) Validate() error {
	return requireIDs(map[string]uuid.UUID{"memory_id": c.MemoryID, "tag_id": c.TagID, "user_id": c.UserID})
}
