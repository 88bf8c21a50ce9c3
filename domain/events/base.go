package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something that has happened and may interest other services.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	TypeMemoryIngestionRequested = "memory.ingestion.requested"
	TypeMemoryProcessed          = "memory.processed"
	TypeMemoryProcessingFailed   = "memory.processing_failed"
	TypeMemoryDeleted            = "memory.deleted"
	TypeAccountMerged            = "account.merged"
)

// MemoryIngestionRequested asks a worker to run the pipeline for a memory.
type MemoryIngestionRequested struct {
	BaseEvent
	MemoryID uuid.UUID `json:"memory_id"`
	UserID   uuid.UUID `json:"user_id"`
}

func NewMemoryIngestionRequested(memoryID, userID uuid.UUID, ts time.Time) MemoryIngestionRequested {
	return MemoryIngestionRequested{
		BaseEvent: BaseEvent{AggregateID: memoryID.String(), EventType: TypeMemoryIngestionRequested, Timestamp: ts, Version: 1},
		MemoryID:  memoryID,
		UserID:    userID,
	}
}

// MemoryProcessed is raised when a pipeline run completes.
type MemoryProcessed struct {
	BaseEvent
	MemoryID   uuid.UUID `json:"memory_id"`
	UserID     uuid.UUID `json:"user_id"`
	RunSeq     int64     `json:"run_seq"`
	ChunkCount int       `json:"chunk_count"`
}

func NewMemoryProcessed(memoryID, userID uuid.UUID, run int64, chunks int, ts time.Time) MemoryProcessed {
	return MemoryProcessed{
		BaseEvent:  BaseEvent{AggregateID: memoryID.String(), EventType: TypeMemoryProcessed, Timestamp: ts, Version: 1},
		MemoryID:   memoryID,
		UserID:     userID,
		RunSeq:     run,
		ChunkCount: chunks,
	}
}

// MemoryProcessingFailed is raised when a pipeline stage fails.
type MemoryProcessingFailed struct {
	BaseEvent
	MemoryID uuid.UUID `json:"memory_id"`
	UserID   uuid.UUID `json:"user_id"`
	RunSeq   int64     `json:"run_seq"`
	Stage    string    `json:"stage"`
}

func NewMemoryProcessingFailed(memoryID, userID uuid.UUID, run int64, stage string, ts time.Time) MemoryProcessingFailed {
	return MemoryProcessingFailed{
		BaseEvent: BaseEvent{AggregateID: memoryID.String(), EventType: TypeMemoryProcessingFailed, Timestamp: ts, Version: 1},
		MemoryID:  memoryID,
		UserID:    userID,
		RunSeq:    run,
		Stage:     stage,
	}
}

// MemoryDeleted is raised after a memory row and its artifacts are removed.
type MemoryDeleted struct {
	BaseEvent
	MemoryID uuid.UUID `json:"memory_id"`
	UserID   uuid.UUID `json:"user_id"`
}

func NewMemoryDeleted(memoryID, userID uuid.UUID, ts time.Time) MemoryDeleted {
	return MemoryDeleted{
		BaseEvent: BaseEvent{AggregateID: memoryID.String(), EventType: TypeMemoryDeleted, Timestamp: ts, Version: 1},
		MemoryID:  memoryID,
		UserID:    userID,
	}
}

// AccountMerged is raised when a guest account has been folded into a user.
type AccountMerged struct {
	BaseEvent
	TargetUserID  uuid.UUID `json:"target_user_id"`
	GuestUserID   uuid.UUID `json:"guest_user_id"`
	Conversations int64     `json:"conversations"`
	Memories      int64     `json:"memories"`
	TagsMoved     int       `json:"tags_moved"`
	TagsMerged    int       `json:"tags_merged"`
}

func NewAccountMerged(target, guest uuid.UUID, convs, mems int64, moved, merged int, ts time.Time) AccountMerged {
	return AccountMerged{
		BaseEvent:     BaseEvent{AggregateID: target.String(), EventType: TypeAccountMerged, Timestamp: ts, Version: 1},
		TargetUserID:  target,
		GuestUserID:   guest,
		Conversations: convs,
		Memories:      mems,
		TagsMoved:     moved,
		TagsMerged:    merged,
	}
}
